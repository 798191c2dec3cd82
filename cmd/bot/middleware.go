package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/wardenlabs/warden/cmd/bot/monitoring"
	"github.com/wardenlabs/warden/pkg/logging"
	"github.com/wardenlabs/warden/pkg/request"
)

// commandController resolves a slash command's subcommand to a processor.
type commandController func(a IApp, sub string) (commandProcessor, error)

// commandProcessor handles one interaction.
type commandProcessor func(a IApp, i *discordgo.InteractionCreate) error

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(handler Controller, a IApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
				)
				cw.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(cw).Encode(request.NewMessage("Internal server error")); err != nil {
					a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Log().Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		defer func() {
			// Run the deferred function after the request has been handled, as the status code will not be available until then.
			monitoring.HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			monitoring.HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// interactionHandler dispatches interactions to the registered slash command
// controllers and button processors.
func interactionHandler(a IApp, controllers map[string]commandController, buttons map[string]commandProcessor) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic handling interaction",
					slog.String(logging.KeyError, fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
				)
				if err := respondSlashError(a, i); err != nil {
					a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			handleSlashCommand(a, controllers, i)
		case discordgo.InteractionMessageComponent:
			handleButton(a, buttons, i)
		}
	}
}

func handleSlashCommand(a IApp, controllers map[string]commandController, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	a.Log().Debug("Handling interaction", slog.String(logging.KeyCommand, data.Name))

	controller, ok := controllers[data.Name]
	if !ok {
		a.Log().Error("No controller found for command", slog.String(logging.KeyCommand, data.Name))
		if err := respondSlashError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	sub := ""
	if opts := data.Options; len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = opts[0].Name
	}

	label := data.Name
	if sub != "" {
		label += " " + sub
	}

	now := time.Now().UTC()
	outcome := "ok"
	defer func() {
		monitoring.TotalCommands.WithLabelValues(label, outcome).Inc()
		monitoring.CommandDuration.WithLabelValues(label).Observe(time.Since(now).Seconds())
	}()

	processor, err := controller(a, sub)
	if err != nil {
		outcome = "error"
		a.Log().Error("Error getting processor for command",
			slog.String(logging.KeyCommand, label),
			slog.String(logging.KeyError, err.Error()))
		if err := respondSlashError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	if err := processor(a, i); err != nil {
		outcome = "error"
		a.Log().Error("Error processing command",
			slog.String(logging.KeyCommand, label),
			slog.String(logging.KeyError, err.Error()))
		if err := respondSlashError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
	}
}

func handleButton(a IApp, buttons map[string]commandProcessor, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	processor, ok := buttons[customID]
	if !ok {
		// Prefixed buttons carry their argument after the colon.
		if idx := strings.Index(customID, ":"); idx >= 0 {
			processor, ok = buttons[customID[:idx+1]]
		}
	}
	if !ok {
		a.Log().Error("No processor found for button", slog.String("button", customID))
		if err := respondSlashError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	if err := processor(a, i); err != nil {
		a.Log().Error("Error processing button",
			slog.String("button", customID),
			slog.String(logging.KeyError, err.Error()))
		if err := respondSlashError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
	}
}
