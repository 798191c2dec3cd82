package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

// SetupResult reports what the bootstrap ended up with.
type SetupResult struct {
	// CategoryID is the ticket category.
	CategoryID string

	// LogChannelID is the log channel, empty when creation failed.
	LogChannelID string

	// PanelChannelID is the channel holding the panel message.
	PanelChannelID string

	// PanelMessageID is the freshly posted panel message.
	PanelMessageID string

	// LogChannelFailed is set when the log channel could not be created. The
	// rest of the setup still completes.
	LogChannelFailed bool
}

// typeOrder fixes the panel button ordering for the stock types. Custom types
// sort after them by key.
var typeOrder = []string{
	entities.TicketTypeSupport,
	entities.TicketTypeReport,
	entities.TicketTypePartnership,
	entities.TicketTypeOther,
}

// Setup bootstraps (or repairs) the ticket system for a guild. It is
// idempotent: pieces that already exist are kept, missing pieces are
// recreated. The category is foundational and its creation failure aborts;
// the log channel is best effort; the panel message is always reposted, with
// the old one deleted when possible.
func (m *Manager) Setup(ctx context.Context, guildID string) (*SetupResult, error) {
	unlock := m.locks.Lock(guildID)
	defer unlock()

	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing
	res := new(SetupResult)

	if !m.channelExists(cfg.CategoryID) {
		cat, err := m.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name: "Tickets",
			Type: discordgo.ChannelTypeGuildCategory,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ticket category: %w", err)
		}
		cfg.CategoryID = cat.ID
	}
	res.CategoryID = cfg.CategoryID

	if !m.channelExists(cfg.LogChannelID) {
		overwrites := []*discordgo.PermissionOverwrite{
			{
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    m.botUserID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: ticketMemberPermissions,
			},
		}
		if cfg.SupportRoleID != "" {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID:    cfg.SupportRoleID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
			})
		}

		logCh, err := m.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:                 "ticket-logs",
			Type:                 discordgo.ChannelTypeGuildText,
			ParentID:             cfg.CategoryID,
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			// A guild without a log channel still gets working tickets.
			m.l.Warn("Failed to create ticket log channel",
				slog.String(logging.KeyGuild, guildID),
				slog.String(logging.KeyError, err.Error()),
			)
			res.LogChannelFailed = true
			cfg.LogChannelID = ""
		} else {
			cfg.LogChannelID = logCh.ID
		}
	}
	res.LogChannelID = cfg.LogChannelID

	if !m.channelExists(cfg.PanelChannelID) {
		panelCh, err := m.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:     "open-a-ticket",
			Type:     discordgo.ChannelTypeGuildText,
			ParentID: cfg.CategoryID,
			PermissionOverwrites: []*discordgo.PermissionOverwrite{
				{
					ID:    guildID,
					Type:  discordgo.PermissionOverwriteTypeRole,
					Allow: discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
					Deny:  discordgo.PermissionSendMessages,
				},
				{
					ID:    m.botUserID,
					Type:  discordgo.PermissionOverwriteTypeMember,
					Allow: ticketMemberPermissions,
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating panel channel: %w", err)
		}
		cfg.PanelChannelID = panelCh.ID
		cfg.PanelMessageID = ""
	}
	res.PanelChannelID = cfg.PanelChannelID

	// The panel is always reposted so it reflects the current types. Deleting
	// the previous one is best effort.
	if cfg.PanelMessageID != "" {
		if err := m.session.ChannelMessageDelete(cfg.PanelChannelID, cfg.PanelMessageID); err != nil && !isUnknownChannel(err) {
			m.l.Warn("Failed to delete old panel message",
				slog.String(logging.KeyGuild, guildID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	}

	panel, err := m.session.ChannelMessageSendComplex(cfg.PanelChannelID, panelMessage(cfg))
	if err != nil {
		return nil, fmt.Errorf("error posting panel message: %w", err)
	}
	cfg.PanelMessageID = panel.ID
	res.PanelMessageID = panel.ID

	if err := m.dal.SaveGuild(ctx, guild); err != nil {
		return nil, fmt.Errorf("error saving guild: %w", err)
	}

	m.l.Info("Ticket system set up",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyChannel, cfg.PanelChannelID),
	)
	return res, nil
}

// channelExists reports whether a recorded channel ID still resolves.
func (m *Manager) channelExists(id string) bool {
	if id == "" {
		return false
	}
	_, err := m.session.Channel(id)
	return err == nil
}

// panelMessage builds the ticket panel with one button per enabled type.
func panelMessage(cfg *entities.TicketingConfig) *discordgo.MessageSend {
	keys := make([]string, 0, len(cfg.Types))
	for key := range cfg.Types {
		if !slices.Contains(typeOrder, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	keys = append(append([]string(nil), typeOrder...), keys...)

	buttons := make([]discordgo.MessageComponent, 0, len(keys))
	for _, key := range keys {
		tt, ok := cfg.Types[key]
		if !ok || !tt.Enabled {
			continue
		}
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("%s %s", tt.Emoji, tt.Name),
			Style:    discordgo.SecondaryButton,
			CustomID: ButtonOpenPrefix + key,
		})
	}

	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "🎫 Open a Ticket",
				Description: "Pick the kind of help you need and a private channel will be opened for you.",
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: buttons},
		},
	}
}
