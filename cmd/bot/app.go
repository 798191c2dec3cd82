package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wardenlabs/warden/cmd/bot/config"
	"github.com/wardenlabs/warden/cmd/bot/monitoring"
	"github.com/wardenlabs/warden/pkg/dataaccess"
	"github.com/wardenlabs/warden/pkg/dataaccess/connection"
	"github.com/wardenlabs/warden/pkg/logging"
	"github.com/wardenlabs/warden/pkg/permissions"
	"github.com/wardenlabs/warden/pkg/request"
	"github.com/wardenlabs/warden/pkg/tickets"
)

// Monitoring server paths.
const (
	PathMetrics = "/metrics"
	PathHealth  = "/health"
)

// IApp is the interface the controllers work against.
type IApp interface {
	// Log returns the logger.
	Log() *slog.Logger

	// Session returns the discord session.
	Session() *discordgo.Session

	// Config returns the runtime configuration.
	Config() *config.Config

	// Store returns the persistence layer.
	Store() dataaccess.Store

	// Perms returns the permission service.
	Perms() *permissions.Service

	// Tickets returns the ticket manager.
	Tickets() *tickets.Manager
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the monitoring server.
	r *mux.Router

	// svr is the monitoring server.
	svr *http.Server

	// cfg is the runtime configuration.
	cfg *config.Config

	// s is the discord session.
	s *discordgo.Session

	// store is the persistence layer.
	store dataaccess.Store

	// perms is the permission service.
	perms *permissions.Service

	// tickets is the ticket manager.
	tickets *tickets.Manager
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		Logger: l,
		r:      r,
	}
}

func (a *App) Run(cfg *config.Config) error {
	a.cfg = cfg

	if err := a.openStore(); err != nil {
		return fmt.Errorf("error opening store: %w", err)
	}
	a.perms = permissions.NewService(a.Logger, a.store)

	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	// The ticket manager grants the bot's own user access to every ticket
	// channel, so it needs the real bot user rather than the application ID.
	botUser, err := a.s.User("@me")
	if err != nil {
		return fmt.Errorf("error getting bot user: %w", err)
	}
	a.tickets = tickets.NewManager(a.Logger, a.s, a.store, botUser.ID)

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
	})

	a.RegisterDiscordHandlers()

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	a.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Process shutdown signal.
	for sig := range c {
		a.Info("Received shutdown signal", slog.String("signal", sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + a.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsAllWithoutPrivileged | discordgo.IntentGuildMembers

	a.s = dg
	return nil
}

// openStore builds the Store from the configured backend.
func (a *App) openStore() error {
	switch a.cfg.StoreBackend {
	case config.BackendJSON:
		store, err := dataaccess.NewJSONStore(a.Logger, a.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("error opening json store: %w", err)
		}
		a.store = store
	case config.BackendMongo:
		conn := &connection.MongoDB{ConnectionString: a.cfg.MongoURI}
		client, err := conn.Connect()
		if err != nil {
			return fmt.Errorf("error connecting to mongo: %w", err)
		}
		a.store = dataaccess.NewMongoStore(a.Logger, client)
	default:
		return fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}

	a.Info("Store ready", slog.String(logging.KeyDal, a.cfg.StoreBackend))
	return nil
}

func (a *App) runServer() {
	go func() {
		a.Info("Starting monitoring server", slog.String("addr", a.svr.Addr))
		if err := a.svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	// PathMetrics is the path for metrics.
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)

	// PathHealth is the path for health check.
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:    ":" + a.cfg.MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "")
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Gateway event metrics. The Event handler fires for every event.
	a.s.AddHandler(func(_ *discordgo.Session, e *discordgo.Event) {
		if e.Type != "" {
			monitoring.TotalDiscordEvents.WithLabelValues(e.Type).Inc()
		}
	})

	// Interaction create handler.
	a.s.AddHandler(interactionHandler(a,
		// Slash Controllers
		map[string]commandController{
			permsCmd.Name:       permsCmdController,
			ticketCmd.Name:      ticketCmdController,
			ticketSetupCmd.Name: ticketSetupCmdController,
			modCmd.Name:         modCmdController,
		},
		// Button Processors
		map[string]commandProcessor{
			tickets.ButtonOpenPrefix: openTicketButton,
			tickets.ButtonClose:      closeTicketButton,
			tickets.ButtonClaim:      claimTicketButton,
		}))
}

func (a *App) registerSlashCommands() error {
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	ctx := context.Background()
	for _, g := range guilds {
		if err := a.registerGuildCommands(ctx, g.ID); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) registerGuildCommands(ctx context.Context, guildID string) error {
	for _, cmd := range slashCommands() {
		if err := commandRegistrationLimit.Wait(ctx); err != nil {
			return fmt.Errorf("error waiting for rate limit: %w", err)
		}
		if _, err := a.s.ApplicationCommandCreate(a.cfg.ApplicationID, guildID, cmd); err != nil {
			return fmt.Errorf("error creating %s command for guild %s: %w", cmd.Name, guildID, err)
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	ctx := context.Background()
	for _, guild := range guilds {
		registered, err := a.s.ApplicationCommands(a.cfg.ApplicationID, guild.ID)
		if err != nil {
			return fmt.Errorf("error listing commands for guild %s: %w", guild.ID, err)
		}
		for _, cmd := range registered {
			if err := commandRegistrationLimit.Wait(ctx); err != nil {
				return fmt.Errorf("error waiting for rate limit: %w", err)
			}
			if err := a.s.ApplicationCommandDelete(a.cfg.ApplicationID, guild.ID, cmd.ID); err != nil {
				return fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, guild.ID, err)
			}
		}
	}
	return nil
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Store() dataaccess.Store {
	return a.store
}

func (a *App) Perms() *permissions.Service {
	return a.perms
}

func (a *App) Tickets() *tickets.Manager {
	return a.tickets
}
