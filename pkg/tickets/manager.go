// Package tickets implements the ticket lifecycle. A ticket is a private text
// channel under a configured category; the guild record tracks at most one
// open ticket per user and a counter that only ever increases.
package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenlabs/warden/pkg/dataaccess"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

// Component IDs for the ticket buttons.
const (
	// ButtonOpenPrefix prefixes the panel buttons; the ticket type key follows.
	ButtonOpenPrefix = "ticket_open:"

	// ButtonClose is the close button inside a ticket channel.
	ButtonClose = "ticket_close_btn"

	// ButtonClaim is the claim button inside a ticket channel.
	ButtonClaim = "ticket_claim_btn"
)

// closeGrace is how long a closed ticket channel stays readable before it is
// deleted.
const closeGrace = 5 * time.Second

// ticketMemberPermissions are the permissions granted to everyone who should
// see inside a ticket channel.
const ticketMemberPermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionAttachFiles |
	discordgo.PermissionEmbedLinks

// Ticket describes a freshly opened ticket.
type Ticket struct {
	// ChannelID is the ID of the ticket channel.
	ChannelID string

	// Number is the ticket's sequence number.
	Number int

	// Type is the ticket type key.
	Type string
}

// Manager drives the ticket lifecycle against the guild store and the Discord
// session. All guild record writes go through the per-guild keyed mutex.
type Manager struct {
	// l is the logger.
	l *slog.Logger

	// session is the Discord transport.
	session Session

	// dal is the guild record store.
	dal dataaccess.GuildDal

	// locks serializes read-modify-write cycles per guild.
	locks *dataaccess.KeyedMutex

	// botUserID is the bot's own user ID, granted access to every ticket.
	botUserID string

	// graceDelay is the wait between announcing a close and deleting the
	// channel.
	graceDelay time.Duration
}

// NewManager creates a new ticket manager.
func NewManager(l *slog.Logger, session Session, dal dataaccess.GuildDal, botUserID string) *Manager {
	return &Manager{
		l:          l,
		session:    session,
		dal:        dal,
		locks:      dataaccess.NewKeyedMutex(),
		botUserID:  botUserID,
		graceDelay: closeGrace,
	}
}

// Open opens a ticket of the given type for a user. A user can hold at most
// one open ticket; if their recorded ticket channel no longer exists the stale
// entry is healed and the open proceeds. The ticket number is taken from the
// guild counter and is never reused, even when channel creation fails.
func (m *Manager) Open(ctx context.Context, guildID, userID, typeKey string) (*Ticket, error) {
	unlock := m.locks.Lock(guildID)
	defer unlock()

	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing

	if cfg.CategoryID == "" {
		return nil, ErrNotConfigured
	}

	tt, ok := cfg.Types[typeKey]
	if !ok || !tt.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicketType, typeKey)
	}

	if existing, ok := cfg.OpenTickets[userID]; ok {
		switch _, err := m.session.Channel(existing); {
		case err == nil:
			return nil, &DuplicateTicketError{ChannelID: existing}
		case !isUnknownChannel(err):
			return nil, fmt.Errorf("error checking existing ticket: %w", err)
		}

		// The recorded channel is gone. Heal the entry and carry on.
		m.l.Info("Healing stale open ticket entry",
			slog.String(logging.KeyGuild, guildID),
			slog.String(logging.KeyUser, userID),
			slog.String(logging.KeyChannel, existing),
		)
		delete(cfg.OpenTickets, userID)
	}

	cfg.TicketCounter++
	number := cfg.TicketCounter

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   guildID, // @everyone shares the guild's ID
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: ticketMemberPermissions,
		},
		{
			ID:    m.botUserID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: ticketMemberPermissions | discordgo.PermissionManageChannels,
		},
	}
	if cfg.SupportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    cfg.SupportRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: ticketMemberPermissions,
		})
	}

	ch, err := m.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 fmt.Sprintf("ticket-%04d", number),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                fmt.Sprintf("%s ticket for <@%s>", tt.Name, userID),
		ParentID:             cfg.CategoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		// The number is burned regardless so a retry cannot collide with a
		// half-created channel.
		if saveErr := m.dal.SaveGuild(ctx, guild); saveErr != nil {
			m.l.Error("Failed to persist burned ticket number",
				slog.String(logging.KeyGuild, guildID),
				slog.String(logging.KeyError, saveErr.Error()),
			)
		}
		return nil, fmt.Errorf("error creating ticket channel: %w", err)
	}

	cfg.OpenTickets[userID] = ch.ID
	if err := m.dal.SaveGuild(ctx, guild); err != nil {
		return nil, fmt.Errorf("error saving guild: %w", err)
	}

	m.postWelcome(ch.ID, userID, tt, cfg.SupportRoleID)
	m.logAction(cfg, fmt.Sprintf("%s Ticket #%04d (<#%s>) opened by <@%s>", tt.Emoji, number, ch.ID, userID))

	m.l.Info("Ticket opened",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyUser, userID),
		slog.String(logging.KeyChannel, ch.ID),
		slog.Int("number", number),
	)

	return &Ticket{ChannelID: ch.ID, Number: number, Type: typeKey}, nil
}

// Close closes the ticket living in channelID. The open entry is removed and
// persisted first, the close is announced, and after a short grace window the
// channel is deleted. A channel that disappeared in the meantime is fine.
func (m *Manager) Close(ctx context.Context, guildID, channelID, actorID, reason string) error {
	unlock := m.locks.Lock(guildID)

	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		unlock()
		return fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing

	ownerID := ""
	for userID, chID := range cfg.OpenTickets {
		if chID == channelID {
			ownerID = userID
			break
		}
	}
	if ownerID != "" {
		delete(cfg.OpenTickets, ownerID)
		if err := m.dal.SaveGuild(ctx, guild); err != nil {
			unlock()
			return fmt.Errorf("error saving guild: %w", err)
		}
	} else if !m.inTicketCategory(cfg, channelID) {
		// No entry points here. Channels still under the ticket category are
		// orphans left behind by a healed entry and must stay closeable.
		unlock()
		return ErrNotATicket
	}

	// The lock is released before the grace window; the owner is free to open
	// a new ticket while the old channel winds down.
	unlock()

	text := fmt.Sprintf("🔒 Ticket closed by <@%s>. This channel will be deleted shortly.", actorID)
	if reason != "" {
		text += " Reason: " + reason
	}
	if _, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: text}); err != nil && !isUnknownChannel(err) {
		m.l.Warn("Failed to announce ticket close",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
	openedBy := "an unknown user"
	if ownerID != "" {
		openedBy = "<@" + ownerID + ">"
	}
	m.logAction(cfg, fmt.Sprintf("🔒 Ticket <#%s> (opened by %s) closed by <@%s>", channelID, openedBy, actorID))

	select {
	case <-time.After(m.graceDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := m.session.ChannelDelete(channelID); err != nil && !isUnknownChannel(err) {
		return fmt.Errorf("error deleting ticket channel: %w", err)
	}

	m.l.Info("Ticket closed",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyChannel, channelID),
		slog.String(logging.KeyUser, ownerID),
	)
	return nil
}

// Claim announces that a support member has taken the ticket. Claiming holds
// no state; a later claim simply supersedes the announcement.
func (m *Manager) Claim(ctx context.Context, guildID, channelID, actorID string, actorRoles []string) error {
	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing

	if cfg.CategoryID == "" {
		return ErrNotConfigured
	}
	if !isTicketChannel(cfg, channelID) {
		return ErrNotATicket
	}
	if cfg.SupportRoleID == "" || !slices.Contains(actorRoles, cfg.SupportRoleID) {
		return ErrMissingSupportRole
	}

	if _, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("🙋 <@%s> has claimed this ticket.", actorID),
	}); err != nil {
		return fmt.Errorf("error announcing claim: %w", err)
	}
	m.logAction(cfg, fmt.Sprintf("🙋 Ticket <#%s> claimed by <@%s>", channelID, actorID))
	return nil
}

// AddParticipant grants a user access to a ticket channel.
func (m *Manager) AddParticipant(ctx context.Context, guildID, channelID, userID string) error {
	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing

	if !isTicketChannel(cfg, channelID) {
		return ErrNotATicket
	}

	if err := m.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, ticketMemberPermissions, 0); err != nil {
		return fmt.Errorf("error granting channel access: %w", err)
	}

	if _, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("➕ <@%s> has been added to the ticket.", userID),
	}); err != nil {
		m.l.Warn("Failed to announce participant add",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
	return nil
}

// RemoveParticipant revokes a user's access to a ticket channel.
func (m *Manager) RemoveParticipant(ctx context.Context, guildID, channelID, userID string) error {
	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing

	if !isTicketChannel(cfg, channelID) {
		return ErrNotATicket
	}

	if err := m.session.ChannelPermissionDelete(channelID, userID); err != nil {
		return fmt.Errorf("error revoking channel access: %w", err)
	}

	if _, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("➖ <@%s> has been removed from the ticket.", userID),
	}); err != nil {
		m.l.Warn("Failed to announce participant removal",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
	return nil
}

// SetSupportRole sets the role with standing access to new tickets. Existing
// ticket channels keep the overwrites they were created with.
func (m *Manager) SetSupportRole(ctx context.Context, guildID, roleID string) error {
	unlock := m.locks.Lock(guildID)
	defer unlock()

	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}

	guild.Ticketing.SupportRoleID = roleID
	if err := m.dal.SaveGuild(ctx, guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}
	return nil
}

// IsTicket reports whether channelID is a ticket channel, either a tracked
// open ticket or an orphan still sitting under the ticket category.
func (m *Manager) IsTicket(ctx context.Context, guildID, channelID string) (bool, error) {
	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("error getting guild: %w", err)
	}
	cfg := &guild.Ticketing
	if isTicketChannel(cfg, channelID) {
		return true, nil
	}
	return m.inTicketCategory(cfg, channelID), nil
}

// Stats summarises a guild's ticket activity.
type Stats struct {
	// Issued is how many tickets have ever been issued.
	Issued int

	// Open is how many tickets are currently open.
	Open int

	// Closed is how many issued tickets are no longer open.
	Closed int

	// SupportRoleID is the configured support role, if any.
	SupportRoleID string
}

// GetStats reports the guild's ticket activity.
func (m *Manager) GetStats(ctx context.Context, guildID string) (*Stats, error) {
	guild, err := m.dal.GetGuildByID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error getting guild: %w", err)
	}

	cfg := guild.Ticketing
	return &Stats{
		Issued:        cfg.TicketCounter,
		Open:          len(cfg.OpenTickets),
		Closed:        cfg.TicketCounter - len(cfg.OpenTickets),
		SupportRoleID: cfg.SupportRoleID,
	}, nil
}

// inTicketCategory reports whether channelID lives under the configured ticket
// category. The panel and log channels live there too and never count.
func (m *Manager) inTicketCategory(cfg *entities.TicketingConfig, channelID string) bool {
	if cfg.CategoryID == "" || channelID == cfg.PanelChannelID || channelID == cfg.LogChannelID {
		return false
	}
	ch, err := m.session.Channel(channelID)
	return err == nil && ch.ParentID == cfg.CategoryID
}

// isTicketChannel reports whether channelID is a currently open ticket.
func isTicketChannel(cfg *entities.TicketingConfig, channelID string) bool {
	for _, chID := range cfg.OpenTickets {
		if chID == channelID {
			return true
		}
	}
	return false
}

// postWelcome drops the opening message with the close and claim buttons into
// a fresh ticket channel, tagging the requester and the support role when one
// is configured. Failures are logged, not fatal; the ticket exists.
func (m *Manager) postWelcome(channelID, userID string, tt entities.TicketType, supportRoleID string) {
	content := fmt.Sprintf("<@%s>", userID)
	if supportRoleID != "" {
		content += fmt.Sprintf(" <@&%s>", supportRoleID)
	}

	_, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       fmt.Sprintf("%s %s", tt.Emoji, tt.Name),
				Description: "Thanks for opening a ticket. A member of the team will be with you shortly.",
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "🔒 Close",
						Style:    discordgo.DangerButton,
						CustomID: ButtonClose,
					},
					discordgo.Button{
						Label:    "🙋 Claim",
						Style:    discordgo.PrimaryButton,
						CustomID: ButtonClaim,
					},
				},
			},
		},
	})
	if err != nil {
		m.l.Warn("Failed to post ticket welcome message",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
}

// logAction writes a line to the guild's ticket log channel, if one is
// configured. Log failures never fail the action they describe.
func (m *Manager) logAction(cfg *entities.TicketingConfig, text string) {
	if cfg.LogChannelID == "" {
		return
	}
	if _, err := m.session.ChannelMessageSendComplex(cfg.LogChannelID, &discordgo.MessageSend{Content: text}); err != nil {
		m.l.Warn("Failed to write to ticket log channel",
			slog.String(logging.KeyChannel, cfg.LogChannelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
}
