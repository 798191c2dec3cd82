package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenlabs/warden/pkg/permissions"
)

// PermsCmdName is the command for managing the permission system.
const PermsCmdName = "perms"

// Subcommands of the perms command.
const (
	AddOwnerCmdName      = "addowner"
	RemoveOwnerCmdName   = "removeowner"
	AddAdminCmdName      = "addadmin"
	RemoveAdminCmdName   = "removeadmin"
	AddGSCmdName         = "addgs"
	RemoveGSCmdName      = "removegs"
	AddModCmdName        = "addmod"
	RemoveModCmdName     = "removemod"
	AddSupportCmdName    = "addsupport"
	RemoveSupportCmdName = "removesupport"
	SetRoleCmdName       = "setrole"
	DelRoleCmdName       = "delrole"
	ShowCmdName          = "show"
	MyLevelCmdName       = "mylevel"
)

// userOption is a required user option shared by the tier subcommands.
func userOption(desc string) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Name:        "user",
			Type:        discordgo.ApplicationCommandOptionUser,
			Description: desc,
			Required:    true,
		},
	}
}

// permsCmd is the command for managing the permission system.
var permsCmd = &discordgo.ApplicationCommand{
	Name:        PermsCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "Manage the bot's permission tiers.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        AddOwnerCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Grant a user bot owner (level 5).",
			Options:     userOption("The user to grant."),
		},
		{
			Name:        RemoveOwnerCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Revoke a user's bot owner tier.",
			Options:     userOption("The user to revoke."),
		},
		{
			Name:        AddAdminCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Grant a user administrator (level 4).",
			Options:     userOption("The user to grant."),
		},
		{
			Name:        RemoveAdminCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Revoke a user's administrator tier.",
			Options:     userOption("The user to revoke."),
		},
		{
			Name:        AddGSCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Grant a user GS management (level 3).",
			Options:     userOption("The user to grant."),
		},
		{
			Name:        RemoveGSCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Revoke a user's GS management tier.",
			Options:     userOption("The user to revoke."),
		},
		{
			Name:        AddModCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Grant a user moderator (level 2).",
			Options:     userOption("The user to grant."),
		},
		{
			Name:        RemoveModCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Revoke a user's moderator tier.",
			Options:     userOption("The user to revoke."),
		},
		{
			Name:        AddSupportCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Grant a user support (level 1).",
			Options:     userOption("The user to grant."),
		},
		{
			Name:        RemoveSupportCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Revoke a user's support tier.",
			Options:     userOption("The user to revoke."),
		},
		{
			Name:        SetRoleCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Map a Discord role to a trust level (0-4).",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "role",
					Type:        discordgo.ApplicationCommandOptionRole,
					Description: "The role to configure.",
					Required:    true,
				},
				{
					Name:        "level",
					Type:        discordgo.ApplicationCommandOptionInteger,
					Description: "The trust level, 0 to 4.",
					Required:    true,
				},
			},
		},
		{
			Name:        DelRoleCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Remove a role's trust level mapping.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "role",
					Type:        discordgo.ApplicationCommandOptionRole,
					Description: "The role to clear.",
					Required:    true,
				},
			},
		},
		{
			Name:        ShowCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Show the permission configuration.",
		},
		{
			Name:        MyLevelCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "Show your trust level.",
		},
	},
}

func permsCmdController(_ IApp, sub string) (commandProcessor, error) {
	switch sub {
	case AddOwnerCmdName:
		return grantTier(permissions.TierOwner), nil
	case RemoveOwnerCmdName:
		return revokeTier(permissions.TierOwner), nil
	case AddAdminCmdName:
		return grantTier(permissions.TierAdmin), nil
	case RemoveAdminCmdName:
		return revokeTier(permissions.TierAdmin), nil
	case AddGSCmdName:
		return grantTier(permissions.TierGS), nil
	case RemoveGSCmdName:
		return revokeTier(permissions.TierGS), nil
	case AddModCmdName:
		return grantTier(permissions.TierModerator), nil
	case RemoveModCmdName:
		return revokeTier(permissions.TierModerator), nil
	case AddSupportCmdName:
		return grantTier(permissions.TierSupport), nil
	case RemoveSupportCmdName:
		return revokeTier(permissions.TierSupport), nil
	case SetRoleCmdName:
		return setRoleLevelHandler, nil
	case DelRoleCmdName:
		return delRoleLevelHandler, nil
	case ShowCmdName:
		return showPermsHandler, nil
	case MyLevelCmdName:
		return myLevelHandler, nil
	default:
		return nil, fmt.Errorf("unknown perms subcommand %q", sub)
	}
}

func grantTier(tier permissions.Tier) commandProcessor {
	return func(a IApp, i *discordgo.InteractionCreate) error {
		actor, err := actorSnapshot(a, i)
		if err != nil {
			return err
		}

		target := optionMap(subOptions(i))["user"].UserValue(nil)

		err = a.Perms().Grant(context.Background(), i.GuildID, tier, actor, target.ID)
		switch {
		case errors.Is(err, permissions.ErrAlreadyGranted):
			return respondEphemeral(a, i, fmt.Sprintf("<@%s> already holds the %s tier.", target.ID, tier))
		case errors.Is(err, permissions.ErrPermissionDenied):
			return respondEphemeral(a, i, err.Error())
		case err != nil:
			return err
		}

		return respondEphemeral(a, i, fmt.Sprintf("<@%s> is now %s (level %d).",
			target.ID, permissions.LevelName(tier.Level()), tier.Level()))
	}
}

func revokeTier(tier permissions.Tier) commandProcessor {
	return func(a IApp, i *discordgo.InteractionCreate) error {
		actor, err := actorSnapshot(a, i)
		if err != nil {
			return err
		}

		target := optionMap(subOptions(i))["user"].UserValue(nil)

		err = a.Perms().Revoke(context.Background(), i.GuildID, tier, actor, target.ID)
		switch {
		case errors.Is(err, permissions.ErrNotGranted):
			return respondEphemeral(a, i, fmt.Sprintf("<@%s> does not hold the %s tier.", target.ID, tier))
		case errors.Is(err, permissions.ErrPermissionDenied):
			return respondEphemeral(a, i, err.Error())
		case err != nil:
			return err
		}

		return respondEphemeral(a, i, fmt.Sprintf("<@%s> no longer holds the %s tier.", target.ID, tier))
	}
}

func setRoleLevelHandler(a IApp, i *discordgo.InteractionCreate) error {
	actor, err := actorSnapshot(a, i)
	if err != nil {
		return err
	}

	opts := optionMap(subOptions(i))
	role := opts["role"].RoleValue(nil, "")
	level := int(opts["level"].IntValue())

	err = a.Perms().SetRoleLevel(context.Background(), i.GuildID, actor, role.ID, level)
	switch {
	case errors.Is(err, permissions.ErrInvalidLevel):
		return respondEphemeral(a, i, "Role levels run from 0 to 4.")
	case errors.Is(err, permissions.ErrPermissionDenied):
		return respondEphemeral(a, i, err.Error())
	case err != nil:
		return err
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@&%s> now grants %s (level %d).",
		role.ID, permissions.LevelName(level), level))
}

func delRoleLevelHandler(a IApp, i *discordgo.InteractionCreate) error {
	actor, err := actorSnapshot(a, i)
	if err != nil {
		return err
	}

	role := optionMap(subOptions(i))["role"].RoleValue(nil, "")

	err = a.Perms().ClearRoleLevel(context.Background(), i.GuildID, actor, role.ID)
	switch {
	case errors.Is(err, permissions.ErrRoleNotConfigured):
		return respondEphemeral(a, i, fmt.Sprintf("<@&%s> has no configured level.", role.ID))
	case errors.Is(err, permissions.ErrPermissionDenied):
		return respondEphemeral(a, i, err.Error())
	case err != nil:
		return err
	}

	return respondEphemeral(a, i, fmt.Sprintf("<@&%s> no longer grants a level.", role.ID))
}

func showPermsHandler(a IApp, i *discordgo.InteractionCreate) error {
	rec, err := a.Perms().Record(context.Background(), i.GuildID)
	if err != nil {
		return err
	}

	mentionList := func(ids []string) string {
		if len(ids) == 0 {
			return "none"
		}
		mentions := make([]string, 0, len(ids))
		for _, id := range ids {
			mentions = append(mentions, "<@"+id+">")
		}
		return strings.Join(mentions, ", ")
	}

	roleLines := make([]string, 0, len(rec.RoleLevels))
	for roleID, level := range rec.RoleLevels {
		roleLines = append(roleLines, fmt.Sprintf("<@&%s> = %s (%d)", roleID, permissions.LevelName(level), level))
	}
	roleText := "none"
	if len(roleLines) > 0 {
		roleText = strings.Join(roleLines, "\n")
	}

	return respondEmbedEphemeral(a, i, &discordgo.MessageEmbed{
		Title: "Permission Configuration",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Bot Owners (5)", Value: mentionList(rec.Owners)},
			{Name: "Administrators (4)", Value: mentionList(rec.Admins)},
			{Name: "GS Management (3)", Value: mentionList(rec.GSUsers)},
			{Name: "Moderators (2)", Value: mentionList(rec.Moderators)},
			{Name: "Supports (1)", Value: mentionList(rec.Supports)},
			{Name: "Role Levels", Value: roleText},
		},
	})
}

func myLevelHandler(a IApp, i *discordgo.InteractionCreate) error {
	actor, err := actorSnapshot(a, i)
	if err != nil {
		return err
	}

	level, err := a.Perms().Level(context.Background(), i.GuildID, actor)
	if err != nil {
		return err
	}

	return respondEphemeral(a, i, fmt.Sprintf("You are %s (level %d).", permissions.LevelName(level), level))
}
