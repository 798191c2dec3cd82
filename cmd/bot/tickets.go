package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenlabs/warden/pkg/logging"
	"github.com/wardenlabs/warden/pkg/messages"
	"github.com/wardenlabs/warden/pkg/permissions"
	"github.com/wardenlabs/warden/pkg/tickets"
)

const (
	// TicketCmdName is the command for controlling tickets.
	TicketCmdName = "ticket"

	// TicketSetupCmdName is the command for bootstrapping the ticket system.
	TicketSetupCmdName = "ticketsetup"
)

// Subcommands of the ticket command.
const (
	TicketSetRoleCmdName = "setrole"
	TicketCloseCmdName   = "close"
	TicketClaimCmdName   = "claim"
	TicketAddCmdName     = "add"
	TicketRemoveCmdName  = "remove"
	TicketStatsCmdName   = "stats"
)

var (
	// ticketCmd is the command for controlling tickets.
	ticketCmd = &discordgo.ApplicationCommand{
		Name:        TicketCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for controlling tickets.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        TicketSetRoleCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Set the support role with access to all tickets.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "role",
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "The support role.",
						Required:    true,
					},
				},
			},
			{
				Name:        TicketCloseCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Close the ticket in this channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "reason",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "Why the ticket is being closed.",
					},
				},
			},
			{
				Name:        TicketClaimCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Claim the ticket in this channel.",
			},
			{
				Name:        TicketAddCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Add a user to the ticket in this channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "user",
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "The user to add.",
						Required:    true,
					},
				},
			},
			{
				Name:        TicketRemoveCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Remove a user from the ticket in this channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "user",
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "The user to remove.",
						Required:    true,
					},
				},
			},
			{
				Name:        TicketStatsCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Show ticket statistics for this server.",
			},
		},
	}

	// ticketSetupCmd bootstraps the ticket system in a guild.
	ticketSetupCmd = &discordgo.ApplicationCommand{
		Name:        TicketSetupCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Set up (or repair) the ticket system for this server.",
	}
)

func ticketCmdController(_ IApp, sub string) (commandProcessor, error) {
	switch sub {
	case TicketSetRoleCmdName:
		return ticketSetRoleHandler, nil
	case TicketCloseCmdName:
		return ticketCloseHandler, nil
	case TicketClaimCmdName:
		return ticketClaimHandler, nil
	case TicketAddCmdName:
		return ticketAddHandler, nil
	case TicketRemoveCmdName:
		return ticketRemoveHandler, nil
	case TicketStatsCmdName:
		return ticketStatsHandler, nil
	default:
		return nil, fmt.Errorf("unknown ticket subcommand %q", sub)
	}
}

func ticketSetupCmdController(_ IApp, _ string) (commandProcessor, error) {
	return ticketSetupHandler, nil
}

// requireLevel resolves the actor and responds ephemerally when they are below
// the wanted level. The returned bool reports whether the command may proceed.
func requireLevel(a IApp, i *discordgo.InteractionCreate, level int, denied string) (bool, error) {
	actor, err := actorSnapshot(a, i)
	if err != nil {
		return false, err
	}

	actorLevel, err := a.Perms().Level(context.Background(), i.GuildID, actor)
	if err != nil {
		return false, err
	}

	if actorLevel < level {
		return false, respondEphemeral(a, i, denied)
	}
	return true, nil
}

func ticketSetupHandler(a IApp, i *discordgo.InteractionCreate) error {
	ok, err := requireLevel(a, i, permissions.LevelAdmin, messages.ErrAdministratorOnly)
	if err != nil || !ok {
		return err
	}

	res, err := a.Tickets().Setup(context.Background(), i.GuildID)
	if err != nil {
		return respondSlashFailure(a, i, err)
	}

	lines := []string{
		fmt.Sprintf("Category: <#%s>", res.CategoryID),
		fmt.Sprintf("Panel: <#%s>", res.PanelChannelID),
	}
	if res.LogChannelFailed {
		lines = append(lines, "Log channel: could not be created, ticket actions will not be logged.")
	} else {
		lines = append(lines, fmt.Sprintf("Log channel: <#%s>", res.LogChannelID))
	}

	return respondEmbedEphemeral(a, i, &discordgo.MessageEmbed{
		Title:       "Ticket System Ready",
		Description: strings.Join(lines, "\n"),
	})
}

func ticketSetRoleHandler(a IApp, i *discordgo.InteractionCreate) error {
	ok, err := requireLevel(a, i, permissions.LevelAdmin, messages.ErrAdministratorOnly)
	if err != nil || !ok {
		return err
	}

	role := optionMap(subOptions(i))["role"].RoleValue(nil, "")

	if err := a.Tickets().SetSupportRole(context.Background(), i.GuildID, role.ID); err != nil {
		return fmt.Errorf("error setting support role: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@&%s> is now the support role for new tickets.", role.ID))
}

// closeTicket responds to the interaction and winds the ticket down in the
// background so the grace window does not block the gateway handler.
func closeTicket(a IApp, i *discordgo.InteractionCreate, reason string) error {
	isTicket, err := a.Tickets().IsTicket(context.Background(), i.GuildID, i.ChannelID)
	if err != nil {
		return err
	}
	if !isTicket {
		return respondEphemeral(a, i, messages.ErrNotATicket)
	}

	if err := respondEphemeral(a, i, "Closing this ticket."); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}

	go func() {
		if err := a.Tickets().Close(context.Background(), i.GuildID, i.ChannelID, i.Member.User.ID, reason); err != nil && !errors.Is(err, tickets.ErrNotATicket) {
			a.Log().Error("Error closing ticket",
				slog.String(logging.KeyGuild, i.GuildID),
				slog.String(logging.KeyChannel, i.ChannelID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	}()
	return nil
}

func ticketCloseHandler(a IApp, i *discordgo.InteractionCreate) error {
	reason := ""
	if opt, ok := optionMap(subOptions(i))["reason"]; ok {
		reason = opt.StringValue()
	}
	return closeTicket(a, i, reason)
}

func claimTicket(a IApp, i *discordgo.InteractionCreate) error {
	err := a.Tickets().Claim(context.Background(), i.GuildID, i.ChannelID, i.Member.User.ID, i.Member.Roles)
	switch {
	case errors.Is(err, tickets.ErrNotConfigured):
		return respondEphemeral(a, i, messages.ErrNotConfigured)
	case errors.Is(err, tickets.ErrNotATicket):
		return respondEphemeral(a, i, messages.ErrNotATicket)
	case errors.Is(err, tickets.ErrMissingSupportRole):
		return respondEphemeral(a, i, messages.ErrMissingSupportRole)
	case err != nil:
		return err
	}

	return respondEphemeral(a, i, "You have claimed this ticket.")
}

func ticketClaimHandler(a IApp, i *discordgo.InteractionCreate) error {
	return claimTicket(a, i)
}

func ticketAddHandler(a IApp, i *discordgo.InteractionCreate) error {
	ok, err := requireLevel(a, i, permissions.LevelSupport, "You need to be on the support team to manage ticket participants.")
	if err != nil || !ok {
		return err
	}

	user := optionMap(subOptions(i))["user"].UserValue(nil)

	err = a.Tickets().AddParticipant(context.Background(), i.GuildID, i.ChannelID, user.ID)
	switch {
	case errors.Is(err, tickets.ErrNotATicket):
		return respondEphemeral(a, i, messages.ErrNotATicket)
	case err != nil:
		return err
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been added to this ticket.", user.ID))
}

func ticketRemoveHandler(a IApp, i *discordgo.InteractionCreate) error {
	ok, err := requireLevel(a, i, permissions.LevelSupport, "You need to be on the support team to manage ticket participants.")
	if err != nil || !ok {
		return err
	}

	user := optionMap(subOptions(i))["user"].UserValue(nil)

	err = a.Tickets().RemoveParticipant(context.Background(), i.GuildID, i.ChannelID, user.ID)
	switch {
	case errors.Is(err, tickets.ErrNotATicket):
		return respondEphemeral(a, i, messages.ErrNotATicket)
	case err != nil:
		return err
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been removed from this ticket.", user.ID))
}

func ticketStatsHandler(a IApp, i *discordgo.InteractionCreate) error {
	stats, err := a.Tickets().GetStats(context.Background(), i.GuildID)
	if err != nil {
		return err
	}

	supportRole := "not set"
	if stats.SupportRoleID != "" {
		supportRole = "<@&" + stats.SupportRoleID + ">"
	}

	return respondEmbedEphemeral(a, i, &discordgo.MessageEmbed{
		Title: "Ticket Statistics",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Issued", Value: fmt.Sprintf("%d", stats.Issued), Inline: true},
			{Name: "Open", Value: fmt.Sprintf("%d", stats.Open), Inline: true},
			{Name: "Closed", Value: fmt.Sprintf("%d", stats.Closed), Inline: true},
			{Name: "Support Role", Value: supportRole},
		},
	})
}

// openTicketButton handles the panel buttons. The ticket type key follows the
// custom ID prefix.
func openTicketButton(a IApp, i *discordgo.InteractionCreate) error {
	typeKey := strings.TrimPrefix(i.MessageComponentData().CustomID, tickets.ButtonOpenPrefix)

	ticket, err := a.Tickets().Open(context.Background(), i.GuildID, i.Member.User.ID, typeKey)
	dup := new(tickets.DuplicateTicketError)
	switch {
	case errors.Is(err, tickets.ErrNotConfigured):
		return respondEphemeral(a, i, messages.ErrNotConfigured)
	case errors.As(err, &dup):
		return respondEphemeral(a, i, fmt.Sprintf("You already have an open ticket: <#%s>.", dup.ChannelID))
	case errors.Is(err, tickets.ErrUnknownTicketType):
		return respondEphemeral(a, i, "That ticket type is not available.")
	case err != nil:
		return respondSlashFailure(a, i, err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Your ticket has been opened: <#%s>.", ticket.ChannelID))
}

func closeTicketButton(a IApp, i *discordgo.InteractionCreate) error {
	return closeTicket(a, i, "")
}

func claimTicketButton(a IApp, i *discordgo.InteractionCreate) error {
	return claimTicket(a, i)
}
