package dataaccess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wardenlabs/warden/pkg/custom"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)

	dir := t.TempDir()
	s, err := NewJSONStore(l, dir)
	require.NoError(t, err)
	return s, dir
}

func TestJSONStoreMissingGuildYieldsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := s.GetGuildPermissions(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "g1", rec.ID)
	require.Empty(t, rec.Owners)
	require.NotNil(t, rec.RoleLevels)

	g, err := s.GetGuildByID(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 0, g.Ticketing.TicketCounter)
	require.NotNil(t, g.Ticketing.OpenTickets)
	require.Len(t, g.Ticketing.Types, 4)
}

func TestJSONStorePermissionsRoundTrip(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	rec := entities.NewGuildPermissions("g1")
	rec.Owners = append(rec.Owners, "u1")
	rec.Moderators = append(rec.Moderators, "u2", "u3")
	rec.RoleLevels["r1"] = 2
	require.NoError(t, s.SaveGuildPermissions(ctx, rec))

	// Reopen the store from disk and compare.
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)
	reopened, err := NewJSONStore(l, dir)
	require.NoError(t, err)

	got, err := reopened.GetGuildPermissions(ctx, "g1")
	require.NoError(t, err)
	require.ElementsMatch(t, rec.Owners, got.Owners)
	require.ElementsMatch(t, rec.Moderators, got.Moderators)
	require.Equal(t, rec.RoleLevels, got.RoleLevels)
}

func TestJSONStoreReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := entities.NewGuildPermissions("g1")
	rec.Owners = append(rec.Owners, "u1")
	require.NoError(t, s.SaveGuildPermissions(ctx, rec))

	got, err := s.GetGuildPermissions(ctx, "g1")
	require.NoError(t, err)
	got.Owners = append(got.Owners, "u-mutated")

	again, err := s.GetGuildPermissions(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, again.Owners)
}

func TestJSONStoreWarns(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	w := func(user, reason string) *entities.Warn {
		return &entities.Warn{GuildID: "g1", UserID: user, ModeratorID: "m1", Reason: reason, CreatedAt: custom.Datetime{}}
	}

	require.NoError(t, s.AddWarn(ctx, w("u1", "spam")))
	require.NoError(t, s.AddWarn(ctx, w("u1", "links")))
	require.NoError(t, s.AddWarn(ctx, w("u2", "other user")))

	warns, err := s.GetWarns(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Len(t, warns, 2)

	require.NoError(t, s.RemoveWarn(ctx, "g1", "u1", 0))
	warns, err = s.GetWarns(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Len(t, warns, 1)
	require.Equal(t, "links", warns[0].Reason)

	require.ErrorIs(t, s.RemoveWarn(ctx, "g1", "u1", 5), ErrWarnNotFound)

	removed, err := s.ClearWarns(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	// The other user's warns are untouched.
	warns, err = s.GetWarns(ctx, "g1", "u2")
	require.NoError(t, err)
	require.Len(t, warns, 1)
}

func TestJSONStorePing(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
