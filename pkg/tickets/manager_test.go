package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

// memGuildDal is an in-memory GuildDal for tests.
type memGuildDal struct {
	mu     sync.Mutex
	guilds map[string]*entities.Guild
}

func newMemGuildDal() *memGuildDal {
	return &memGuildDal{guilds: make(map[string]*entities.Guild)}
}

func (d *memGuildDal) GetGuildByID(_ context.Context, guildID string) (*entities.Guild, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return entities.NewGuild(guildID), nil
	}
	buf, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	clone := new(entities.Guild)
	if err := json.Unmarshal(buf, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

func (d *memGuildDal) SaveGuild(_ context.Context, g *entities.Guild) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.guilds[g.ID] = g
	return nil
}

// sentMessage pairs a channel with the message sent to it.
type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
}

// mockSession fakes the Discord transport in memory.
type mockSession struct {
	mu           sync.Mutex
	nextID       int
	channels     map[string]*discordgo.Channel
	sent         []sentMessage
	deleted      []string
	deletedMsgs  [][2]string
	permsSet     map[string][]string
	permsDeleted map[string][]string
	failCreate   bool
}

func newMockSession() *mockSession {
	return &mockSession{
		channels:     make(map[string]*discordgo.Channel),
		permsSet:     make(map[string][]string),
		permsDeleted: make(map[string][]string),
	}
}

func unknownChannelErr() error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}
}

func (s *mockSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	return ch, nil
}

func (s *mockSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return nil, fmt.Errorf("channel create refused")
	}
	s.nextID++
	ch := &discordgo.Channel{
		ID:       fmt.Sprintf("ch-%d", s.nextID),
		GuildID:  guildID,
		Name:     data.Name,
		Type:     data.Type,
		ParentID: data.ParentID,
	}
	s.channels[ch.ID] = ch
	return ch, nil
}

func (s *mockSession) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	delete(s.channels, channelID)
	s.deleted = append(s.deleted, channelID)
	return ch, nil
}

func (s *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.sent = append(s.sent, sentMessage{channelID: channelID, data: data})
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", s.nextID), ChannelID: channelID}, nil
}

func (s *mockSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedMsgs = append(s.deletedMsgs, [2]string{channelID, messageID})
	return nil
}

func (s *mockSession) ChannelPermissionSet(channelID, targetID string, _ discordgo.PermissionOverwriteType, _, _ int64, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permsSet[channelID] = append(s.permsSet[channelID], targetID)
	return nil
}

func (s *mockSession) ChannelPermissionDelete(channelID, targetID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permsDeleted[channelID] = append(s.permsDeleted[channelID], targetID)
	return nil
}

func (s *mockSession) messagesTo(channelID string) []*discordgo.MessageSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*discordgo.MessageSend, 0)
	for _, m := range s.sent {
		if m.channelID == channelID {
			out = append(out, m.data)
		}
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *mockSession, *memGuildDal) {
	t.Helper()
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	session := newMockSession()
	dal := newMemGuildDal()
	m := NewManager(l, session, dal, "bot-user")
	m.graceDelay = 0
	return m, session, dal
}

func mustSetup(t *testing.T, m *Manager) *SetupResult {
	t.Helper()
	res, err := m.Setup(context.Background(), "g1")
	require.NoError(t, err)
	return res
}

func TestOpenRequiresSetup(t *testing.T) {
	m, _, dal := newTestManager(t)

	_, err := m.Open(context.Background(), "g1", "u1", entities.TicketTypeSupport)
	require.ErrorIs(t, err, ErrNotConfigured)

	// No counter was burned.
	g, err := dal.GetGuildByID(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, 0, g.Ticketing.TicketCounter)
}

func TestOpenCreatesTicket(t *testing.T) {
	m, session, dal := newTestManager(t)
	res := mustSetup(t, m)
	ctx := context.Background()

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	require.Equal(t, 1, ticket.Number)

	ch, err := session.Channel(ticket.ChannelID)
	require.NoError(t, err)
	require.Equal(t, "ticket-0001", ch.Name)
	require.Equal(t, res.CategoryID, ch.ParentID)

	g, err := dal.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, ticket.ChannelID, g.Ticketing.OpenTickets["u1"])
	require.Equal(t, 1, g.Ticketing.TicketCounter)

	// A welcome message with the close and claim buttons landed in the channel.
	msgs := session.messagesTo(ticket.ChannelID)
	require.NotEmpty(t, msgs)
	require.NotEmpty(t, msgs[0].Components)
}

func TestOpenWelcomeTagsSupportRole(t *testing.T) {
	m, session, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	require.NoError(t, m.SetSupportRole(ctx, "g1", "support-role"))

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	msgs := session.messagesTo(ticket.ChannelID)
	require.NotEmpty(t, msgs)
	require.Contains(t, msgs[0].Content, "<@u1>")
	require.Contains(t, msgs[0].Content, "<@&support-role>")
}

func TestOpenWelcomeWithoutSupportRole(t *testing.T) {
	m, session, _ := newTestManager(t)
	mustSetup(t, m)

	ticket, err := m.Open(context.Background(), "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	msgs := session.messagesTo(ticket.ChannelID)
	require.NotEmpty(t, msgs)
	require.Contains(t, msgs[0].Content, "<@u1>")
	require.NotContains(t, msgs[0].Content, "<@&")
}

func TestOpenRejectsUnknownType(t *testing.T) {
	m, _, _ := newTestManager(t)
	mustSetup(t, m)

	_, err := m.Open(context.Background(), "g1", "u1", "no-such-type")
	require.ErrorIs(t, err, ErrUnknownTicketType)
}

func TestOpenDuplicateDeniedWithExistingChannel(t *testing.T) {
	m, _, dal := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	first, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	_, err = m.Open(ctx, "g1", "u1", entities.TicketTypeReport)
	dup := new(DuplicateTicketError)
	require.ErrorAs(t, err, &dup)
	require.Equal(t, first.ChannelID, dup.ChannelID)

	// The failed open did not burn a number.
	g, err := dal.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 1, g.Ticketing.TicketCounter)
}

func TestOpenHealsStaleEntry(t *testing.T) {
	m, session, dal := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	first, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	// The channel vanishes behind the bot's back.
	session.mu.Lock()
	delete(session.channels, first.ChannelID)
	session.mu.Unlock()

	second, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	require.Equal(t, 2, second.Number)
	require.NotEqual(t, first.ChannelID, second.ChannelID)

	g, err := dal.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, second.ChannelID, g.Ticketing.OpenTickets["u1"])
}

func TestOpenBurnsNumberOnCreateFailure(t *testing.T) {
	m, session, dal := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	session.mu.Lock()
	session.failCreate = true
	session.mu.Unlock()

	_, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.Error(t, err)

	g, err := dal.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 1, g.Ticketing.TicketCounter)
	require.Empty(t, g.Ticketing.OpenTickets)

	// The next successful open takes the next number.
	session.mu.Lock()
	session.failCreate = false
	session.mu.Unlock()

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	require.Equal(t, 2, ticket.Number)
}

func TestCloseRemovesEntryAndDeletesChannel(t *testing.T) {
	m, session, dal := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, "g1", ticket.ChannelID, "mod", "resolved"))

	g, err := dal.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	require.Empty(t, g.Ticketing.OpenTickets)

	session.mu.Lock()
	defer session.mu.Unlock()
	require.Contains(t, session.deleted, ticket.ChannelID)
}

func TestCloseNonTicket(t *testing.T) {
	m, _, _ := newTestManager(t)
	mustSetup(t, m)

	err := m.Close(context.Background(), "g1", "not-a-ticket", "mod", "")
	require.ErrorIs(t, err, ErrNotATicket)
}

func TestCloseOrphanedCategoryChannel(t *testing.T) {
	m, session, dal := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	// The open entry is lost (say, healed away) but the channel lives on under
	// the ticket category.
	g, err := dal.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	delete(g.Ticketing.OpenTickets, "u1")
	require.NoError(t, dal.SaveGuild(ctx, g))

	ok, err := m.IsTicket(ctx, "g1", ticket.ChannelID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Close(ctx, "g1", ticket.ChannelID, "mod", ""))

	session.mu.Lock()
	defer session.mu.Unlock()
	require.Contains(t, session.deleted, ticket.ChannelID)
}

func TestCloseRefusesHousekeepingChannels(t *testing.T) {
	m, _, _ := newTestManager(t)
	res := mustSetup(t, m)
	ctx := context.Background()

	// The panel and log channels sit under the category but are not tickets.
	require.ErrorIs(t, m.Close(ctx, "g1", res.PanelChannelID, "mod", ""), ErrNotATicket)
	require.ErrorIs(t, m.Close(ctx, "g1", res.LogChannelID, "mod", ""), ErrNotATicket)

	ok, err := m.IsTicket(ctx, "g1", res.PanelChannelID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCloseToleratesVanishedChannel(t *testing.T) {
	m, session, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	session.mu.Lock()
	delete(session.channels, ticket.ChannelID)
	session.mu.Unlock()

	require.NoError(t, m.Close(ctx, "g1", ticket.ChannelID, "mod", ""))
}

func TestReopenAfterClose(t *testing.T) {
	m, _, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	first, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, "g1", first.ChannelID, "u1", ""))

	second, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	require.Equal(t, 2, second.Number)
}

func TestReopenDuringGraceWindow(t *testing.T) {
	m, session, dal := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	// Keep the old channel alive long enough to open a new ticket beside it.
	m.graceDelay = 200 * time.Millisecond

	first, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() {
		closed <- m.Close(ctx, "g1", first.ChannelID, "u1", "")
	}()

	// Wait for the entry removal to land, then reopen while the old channel
	// still exists.
	require.Eventually(t, func() bool {
		g, err := dal.GetGuildByID(ctx, "g1")
		return err == nil && len(g.Ticketing.OpenTickets) == 0
	}, time.Second, 5*time.Millisecond)

	second, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	require.NotEqual(t, first.ChannelID, second.ChannelID)

	require.NoError(t, <-closed)

	// The old channel is gone, the new one survives.
	session.mu.Lock()
	defer session.mu.Unlock()
	require.Contains(t, session.deleted, first.ChannelID)
	require.NotContains(t, session.deleted, second.ChannelID)
}

func TestClaimRequiresSupportRole(t *testing.T) {
	m, session, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	require.NoError(t, m.SetSupportRole(ctx, "g1", "support-role"))

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	err = m.Claim(ctx, "g1", ticket.ChannelID, "helper", []string{"some-other-role"})
	require.ErrorIs(t, err, ErrMissingSupportRole)

	require.NoError(t, m.Claim(ctx, "g1", ticket.ChannelID, "helper", []string{"support-role"}))

	// The claim is an announcement; the open entry is untouched.
	msgs := session.messagesTo(ticket.ChannelID)
	require.NotEmpty(t, msgs)
	require.Contains(t, msgs[len(msgs)-1].Content, "claimed")
}

func TestClaimOutsideTicket(t *testing.T) {
	m, _, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	require.NoError(t, m.SetSupportRole(ctx, "g1", "support-role"))

	err := m.Claim(ctx, "g1", "random-channel", "helper", []string{"support-role"})
	require.ErrorIs(t, err, ErrNotATicket)
}

func TestParticipants(t *testing.T) {
	m, session, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	ticket, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)

	require.NoError(t, m.AddParticipant(ctx, "g1", ticket.ChannelID, "u2"))
	require.NoError(t, m.RemoveParticipant(ctx, "g1", ticket.ChannelID, "u2"))

	session.mu.Lock()
	defer session.mu.Unlock()
	require.Equal(t, []string{"u2"}, session.permsSet[ticket.ChannelID])
	require.Equal(t, []string{"u2"}, session.permsDeleted[ticket.ChannelID])

	require.ErrorIs(t, m.AddParticipant(ctx, "g1", "not-a-ticket", "u2"), ErrNotATicket)
}

func TestStats(t *testing.T) {
	m, _, _ := newTestManager(t)
	mustSetup(t, m)
	ctx := context.Background()

	first, err := m.Open(ctx, "g1", "u1", entities.TicketTypeSupport)
	require.NoError(t, err)
	_, err = m.Open(ctx, "g1", "u2", entities.TicketTypeReport)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, "g1", first.ChannelID, "u1", ""))

	stats, err := m.GetStats(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.Issued)
	require.Equal(t, 1, stats.Open)
	require.Equal(t, 1, stats.Closed)
}

func TestSetupIsIdempotent(t *testing.T) {
	m, session, _ := newTestManager(t)

	first := mustSetup(t, m)
	require.NotEmpty(t, first.CategoryID)
	require.NotEmpty(t, first.LogChannelID)
	require.NotEmpty(t, first.PanelChannelID)
	require.NotEmpty(t, first.PanelMessageID)
	require.False(t, first.LogChannelFailed)

	second := mustSetup(t, m)
	require.Equal(t, first.CategoryID, second.CategoryID)
	require.Equal(t, first.LogChannelID, second.LogChannelID)
	require.Equal(t, first.PanelChannelID, second.PanelChannelID)

	// The panel is reposted and the old message removed.
	require.NotEqual(t, first.PanelMessageID, second.PanelMessageID)
	session.mu.Lock()
	defer session.mu.Unlock()
	require.Contains(t, session.deletedMsgs, [2]string{first.PanelChannelID, first.PanelMessageID})
}

func TestSetupRecreatesMissingPieces(t *testing.T) {
	m, session, _ := newTestManager(t)

	first := mustSetup(t, m)

	// Someone deletes the panel channel by hand.
	session.mu.Lock()
	delete(session.channels, first.PanelChannelID)
	session.mu.Unlock()

	second := mustSetup(t, m)
	require.Equal(t, first.CategoryID, second.CategoryID)
	require.NotEqual(t, first.PanelChannelID, second.PanelChannelID)
	require.NotEmpty(t, second.PanelMessageID)
}

func TestSetupPanelListsEnabledTypes(t *testing.T) {
	m, session, dal := newTestManager(t)
	ctx := context.Background()

	// Disable one type up front.
	g := entities.NewGuild("g1")
	tt := g.Ticketing.Types[entities.TicketTypePartnership]
	tt.Enabled = false
	g.Ticketing.Types[entities.TicketTypePartnership] = tt
	require.NoError(t, dal.SaveGuild(ctx, g))

	res := mustSetup(t, m)

	msgs := session.messagesTo(res.PanelChannelID)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Components, 1)

	row, ok := msgs[0].Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 3)
	for _, c := range row.Components {
		btn, ok := c.(discordgo.Button)
		require.True(t, ok)
		require.NotEqual(t, ButtonOpenPrefix+entities.TicketTypePartnership, btn.CustomID)
	}
}
