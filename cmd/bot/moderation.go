package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenlabs/warden/pkg/custom"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/permissions"
)

// ModCmdName is the command for moderation actions.
const ModCmdName = "mod"

// Subcommands of the mod command.
const (
	KickCmdName       = "kick"
	BanCmdName        = "ban"
	TimeoutCmdName    = "timeout"
	WarnCmdName       = "warn"
	WarnsCmdName      = "warns"
	ClearWarnsCmdName = "clearwarns"
)

// sanctionOptions is the user plus optional reason shared by the sanctions.
func sanctionOptions(reasonRequired bool) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Name:        "user",
			Type:        discordgo.ApplicationCommandOptionUser,
			Description: "The user to sanction.",
			Required:    true,
		},
		{
			Name:        "reason",
			Type:        discordgo.ApplicationCommandOptionString,
			Description: "Why the sanction is applied.",
			Required:    reasonRequired,
		},
	}
}

// modCmd is the command for moderation actions.
var modCmd = &discordgo.ApplicationCommand{
	Name:        ModCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "Moderation actions.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        KickCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Kick a user from the server.",
			Options:     sanctionOptions(false),
		},
		{
			Name:        BanCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Ban a user from the server.",
			Options:     sanctionOptions(false),
		},
		{
			Name:        TimeoutCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Time a user out.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "user",
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "The user to sanction.",
					Required:    true,
				},
				{
					Name:        "minutes",
					Type:        discordgo.ApplicationCommandOptionInteger,
					Description: "How long the timeout lasts.",
					Required:    true,
				},
				{
					Name:        "reason",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "Why the sanction is applied.",
				},
			},
		},
		{
			Name:        WarnCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Warn a user.",
			Options:     sanctionOptions(true),
		},
		{
			Name:        WarnsCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "List a user's warnings.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "user",
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "The user to look up.",
					Required:    true,
				},
			},
		},
		{
			Name:        ClearWarnsCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Clear all warnings for a user.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "user",
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "The user to clear.",
					Required:    true,
				},
			},
		},
	},
}

func modCmdController(_ IApp, sub string) (commandProcessor, error) {
	switch sub {
	case KickCmdName:
		return kickHandler, nil
	case BanCmdName:
		return banHandler, nil
	case TimeoutCmdName:
		return timeoutHandler, nil
	case WarnCmdName:
		return warnHandler, nil
	case WarnsCmdName:
		return warnsHandler, nil
	case ClearWarnsCmdName:
		return clearWarnsHandler, nil
	default:
		return nil, fmt.Errorf("unknown mod subcommand %q", sub)
	}
}

// gateSanction runs the level gate for the command and the moderation rules
// against the target. It responds ephemerally on denial; the returned target
// ID is empty when the command must not proceed.
func gateSanction(a IApp, i *discordgo.InteractionCreate, command string) (string, error) {
	ctx := context.Background()

	g, err := fetchGuild(a, i.GuildID)
	if err != nil {
		return "", err
	}
	actor := memberSnapshot(g, i.Member)

	ok, err := a.Perms().CanRun(ctx, i.GuildID, actor, command)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", respondEphemeral(a, i, fmt.Sprintf("You need to be %s (level %d) to use this command.",
			permissions.LevelName(permissions.RequiredLevel(command)), permissions.RequiredLevel(command)))
	}

	targetUser := optionMap(subOptions(i))["user"].UserValue(nil)
	target, err := snapshotByID(a, g, targetUser.ID)
	if err != nil {
		return "", err
	}

	allowed, reason, err := a.Perms().CanModerate(ctx, i.GuildID, actor, target)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", respondEphemeral(a, i, "Denied: "+reason)
	}

	return targetUser.ID, nil
}

func reasonOption(i *discordgo.InteractionCreate) string {
	if opt, ok := optionMap(subOptions(i))["reason"]; ok {
		return opt.StringValue()
	}
	return ""
}

func kickHandler(a IApp, i *discordgo.InteractionCreate) error {
	targetID, err := gateSanction(a, i, KickCmdName)
	if err != nil || targetID == "" {
		return err
	}

	reason := reasonOption(i)
	if err := a.Session().GuildMemberDeleteWithReason(i.GuildID, targetID, reason); err != nil {
		return respondSlashFailure(a, i, err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been kicked.", targetID))
}

func banHandler(a IApp, i *discordgo.InteractionCreate) error {
	targetID, err := gateSanction(a, i, BanCmdName)
	if err != nil || targetID == "" {
		return err
	}

	reason := reasonOption(i)
	if err := a.Session().GuildBanCreateWithReason(i.GuildID, targetID, reason, 0); err != nil {
		return respondSlashFailure(a, i, err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been banned.", targetID))
}

func timeoutHandler(a IApp, i *discordgo.InteractionCreate) error {
	targetID, err := gateSanction(a, i, TimeoutCmdName)
	if err != nil || targetID == "" {
		return err
	}

	minutes := optionMap(subOptions(i))["minutes"].IntValue()
	until := time.Now().UTC().Add(time.Duration(minutes) * time.Minute)

	if err := a.Session().GuildMemberTimeout(i.GuildID, targetID, &until); err != nil {
		return respondSlashFailure(a, i, err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been timed out for %d minutes.", targetID, minutes))
}

func warnHandler(a IApp, i *discordgo.InteractionCreate) error {
	targetID, err := gateSanction(a, i, WarnCmdName)
	if err != nil || targetID == "" {
		return err
	}

	warn := &entities.Warn{
		GuildID:     i.GuildID,
		UserID:      targetID,
		ModeratorID: i.Member.User.ID,
		Reason:      reasonOption(i),
		CreatedAt:   custom.Datetime(time.Now().UTC()),
	}
	if err := a.Store().AddWarn(context.Background(), warn); err != nil {
		return respondSlashFailure(a, i, err)
	}

	warns, err := a.Store().GetWarns(context.Background(), i.GuildID, targetID)
	if err != nil {
		return fmt.Errorf("error counting warns: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been warned. They now have %d warning(s).", targetID, len(warns)))
}

func warnsHandler(a IApp, i *discordgo.InteractionCreate) error {
	ctx := context.Background()

	actor, err := actorSnapshot(a, i)
	if err != nil {
		return err
	}
	ok, err := a.Perms().CanRun(ctx, i.GuildID, actor, WarnsCmdName)
	if err != nil {
		return err
	}
	if !ok {
		return respondEphemeral(a, i, fmt.Sprintf("You need to be %s (level %d) to use this command.",
			permissions.LevelName(permissions.RequiredLevel(WarnsCmdName)), permissions.RequiredLevel(WarnsCmdName)))
	}

	targetUser := optionMap(subOptions(i))["user"].UserValue(nil)

	warns, err := a.Store().GetWarns(ctx, i.GuildID, targetUser.ID)
	if err != nil {
		return fmt.Errorf("error getting warns: %w", err)
	}

	if len(warns) == 0 {
		return respondEphemeral(a, i, fmt.Sprintf("<@%s> has no warnings.", targetUser.ID))
	}

	lines := make([]string, 0, len(warns))
	for n, w := range warns {
		lines = append(lines, fmt.Sprintf("%d. %s (by <@%s> at %s)", n+1, w.Reason, w.ModeratorID, w.CreatedAt.String()))
	}

	return respondEmbedEphemeral(a, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Warnings (%d)", len(warns)),
		Description: strings.Join(lines, "\n"),
	})
}

func clearWarnsHandler(a IApp, i *discordgo.InteractionCreate) error {
	ctx := context.Background()

	actor, err := actorSnapshot(a, i)
	if err != nil {
		return err
	}
	ok, err := a.Perms().CanRun(ctx, i.GuildID, actor, ClearWarnsCmdName)
	if err != nil {
		return err
	}
	if !ok {
		return respondEphemeral(a, i, fmt.Sprintf("You need to be %s (level %d) to use this command.",
			permissions.LevelName(permissions.RequiredLevel(ClearWarnsCmdName)), permissions.RequiredLevel(ClearWarnsCmdName)))
	}

	targetUser := optionMap(subOptions(i))["user"].UserValue(nil)

	removed, err := a.Store().ClearWarns(ctx, i.GuildID, targetUser.ID)
	if err != nil {
		return fmt.Errorf("error clearing warns: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Cleared %d warning(s) for <@%s>.", removed, targetUser.ID))
}
