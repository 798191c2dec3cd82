package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenlabs/warden/pkg/logging"
	"github.com/wardenlabs/warden/pkg/messages"
	"github.com/wardenlabs/warden/pkg/permissions"
)

// maxErrorDisplay caps how much of an error is echoed back to the user, well
// under Discord's message limit.
const maxErrorDisplay = 500

func respondSlashError(a IApp, i *discordgo.InteractionCreate) error {
	return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
}

// displayError renders an error for an ephemeral reply.
func displayError(err error) string {
	text := err.Error()
	if len(text) > maxErrorDisplay {
		text = text[:maxErrorDisplay] + "..."
	}
	return text
}

// respondSlashFailure tells the invoking user what actually went wrong. Used
// when the command's main action fails against Discord or the store, so the
// user sees the cause rather than a canned apology.
func respondSlashFailure(a IApp, i *discordgo.InteractionCreate, err error) error {
	a.Log().Error("Command action failed",
		slog.String(logging.KeyError, err.Error()),
	)
	return respondEphemeral(a, i, "Something went wrong: "+displayError(err))
}

func respondEphemeral(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondEmbedEphemeral(a IApp, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

// subOptions returns the options of the invoked subcommand, or the top-level
// options for commands without subcommands.
func subOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	if len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return opts[0].Options
	}
	return opts
}

// optionMap indexes options by name.
func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

// fetchGuild returns the guild with its roles, preferring the session state
// over a REST call.
func fetchGuild(a IApp, guildID string) (*discordgo.Guild, error) {
	if g, err := a.Session().State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return g, nil
	}
	g, err := a.Session().Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error getting guild: %w", err)
	}
	return g, nil
}

// memberSnapshot builds the resolver's view of a member from the guild's role
// table.
func memberSnapshot(g *discordgo.Guild, m *discordgo.Member) permissions.Member {
	snap := permissions.Member{
		ID:           m.User.ID,
		RoleIDs:      m.Roles,
		IsGuildOwner: g.OwnerID == m.User.ID,
	}
	for _, r := range g.Roles {
		if !slices.Contains(m.Roles, r.ID) {
			continue
		}
		if r.Permissions&discordgo.PermissionAdministrator != 0 {
			snap.HasNativeAdmin = true
		}
		if r.Position > snap.TopRolePosition {
			snap.TopRolePosition = r.Position
		}
	}
	return snap
}

// snapshotByID fetches a member by ID and snapshots them.
func snapshotByID(a IApp, g *discordgo.Guild, userID string) (permissions.Member, error) {
	m, err := a.Session().GuildMember(g.ID, userID)
	if err != nil {
		return permissions.Member{}, fmt.Errorf("error getting member: %w", err)
	}
	return memberSnapshot(g, m), nil
}

// actorSnapshot snapshots the member behind an interaction.
func actorSnapshot(a IApp, i *discordgo.InteractionCreate) (permissions.Member, error) {
	g, err := fetchGuild(a, i.GuildID)
	if err != nil {
		return permissions.Member{}, err
	}
	return memberSnapshot(g, i.Member), nil
}
