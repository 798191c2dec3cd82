package main

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// commandRegistrationLimit throttles command registration calls so joining a
// batch of guilds does not trip Discord's rate limits.
var commandRegistrationLimit = rate.NewLimiter(rate.Every(500*time.Millisecond), 2)

// slashCommands returns every slash command the bot registers.
func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		permsCmd,
		ticketCmd,
		ticketSetupCmd,
		modCmd,
	}
}
