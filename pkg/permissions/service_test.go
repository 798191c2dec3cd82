package permissions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

// memoryDal is an in-memory PermissionsDal for tests.
type memoryDal struct {
	mu   sync.Mutex
	recs map[string]*entities.GuildPermissions
}

func newMemoryDal() *memoryDal {
	return &memoryDal{recs: make(map[string]*entities.GuildPermissions)}
}

func (d *memoryDal) GetGuildPermissions(_ context.Context, guildID string) (*entities.GuildPermissions, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.recs[guildID]
	if !ok {
		return entities.NewGuildPermissions(guildID), nil
	}
	clone := *rec
	clone.Owners = append([]string(nil), rec.Owners...)
	clone.Admins = append([]string(nil), rec.Admins...)
	clone.GSUsers = append([]string(nil), rec.GSUsers...)
	clone.Moderators = append([]string(nil), rec.Moderators...)
	clone.Supports = append([]string(nil), rec.Supports...)
	clone.RoleLevels = make(map[string]int, len(rec.RoleLevels))
	for k, v := range rec.RoleLevels {
		clone.RoleLevels[k] = v
	}
	return &clone, nil
}

func (d *memoryDal) SaveGuildPermissions(_ context.Context, rec *entities.GuildPermissions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recs[rec.ID] = rec
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryDal) {
	t.Helper()
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err)
	dal := newMemoryDal()
	return NewService(l, dal), dal
}

func seedOwner(t *testing.T, dal *memoryDal, guildID, ownerID string) {
	t.Helper()
	rec := entities.NewGuildPermissions(guildID)
	rec.Owners = append(rec.Owners, ownerID)
	require.NoError(t, dal.SaveGuildPermissions(context.Background(), rec))
}

func TestServiceGrantAndRevoke(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")
	owner := Member{ID: "owner"}

	require.NoError(t, s.Grant(ctx, "g1", TierAdmin, owner, "u1"))

	level, err := s.Level(ctx, "g1", Member{ID: "u1"})
	require.NoError(t, err)
	require.Equal(t, LevelAdmin, level)

	require.NoError(t, s.Revoke(ctx, "g1", TierAdmin, owner, "u1"))

	level, err = s.Level(ctx, "g1", Member{ID: "u1"})
	require.NoError(t, err)
	require.Equal(t, LevelMember, level)
}

func TestServiceGrantIdempotence(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")
	owner := Member{ID: "owner"}

	require.NoError(t, s.Grant(ctx, "g1", TierAdmin, owner, "u1"))
	require.ErrorIs(t, s.Grant(ctx, "g1", TierAdmin, owner, "u1"), ErrAlreadyGranted)

	// The record holds the user exactly once.
	rec, err := s.Record(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, rec.Admins)
}

func TestServiceRevokeNotGranted(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")

	err := s.Revoke(ctx, "g1", TierModerator, Member{ID: "owner"}, "u1")
	require.ErrorIs(t, err, ErrNotGranted)

	// Revoking twice is the same no-op.
	err = s.Revoke(ctx, "g1", TierModerator, Member{ID: "owner"}, "u1")
	require.ErrorIs(t, err, ErrNotGranted)
}

func TestServiceGrantThresholds(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")

	require.NoError(t, s.Grant(ctx, "g1", TierAdmin, Member{ID: "owner"}, "admin"))

	// An admin can manage moderators and supports.
	admin := Member{ID: "admin"}
	require.NoError(t, s.Grant(ctx, "g1", TierModerator, admin, "u1"))
	require.NoError(t, s.Grant(ctx, "g1", TierSupport, admin, "u2"))

	// But not owners, admins or gs users.
	require.ErrorIs(t, s.Grant(ctx, "g1", TierOwner, admin, "u3"), ErrPermissionDenied)
	require.ErrorIs(t, s.Grant(ctx, "g1", TierAdmin, admin, "u3"), ErrPermissionDenied)
	require.ErrorIs(t, s.Grant(ctx, "g1", TierGS, admin, "u3"), ErrPermissionDenied)

	// A moderator can manage nothing.
	mod := Member{ID: "u1"}
	require.ErrorIs(t, s.Grant(ctx, "g1", TierSupport, mod, "u4"), ErrPermissionDenied)
}

func TestServiceRoleLevels(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")
	owner := Member{ID: "owner"}

	require.NoError(t, s.SetRoleLevel(ctx, "g1", owner, "r1", LevelGS))

	level, err := s.Level(ctx, "g1", Member{ID: "u1", RoleIDs: []string{"r1"}})
	require.NoError(t, err)
	require.Equal(t, LevelGS, level)

	// Level 5 cannot come from a role.
	require.ErrorIs(t, s.SetRoleLevel(ctx, "g1", owner, "r2", LevelOwner), ErrInvalidLevel)
	require.ErrorIs(t, s.SetRoleLevel(ctx, "g1", owner, "r2", -1), ErrInvalidLevel)

	require.NoError(t, s.ClearRoleLevel(ctx, "g1", owner, "r1"))
	require.ErrorIs(t, s.ClearRoleLevel(ctx, "g1", owner, "r1"), ErrRoleNotConfigured)

	level, err = s.Level(ctx, "g1", Member{ID: "u1", RoleIDs: []string{"r1"}})
	require.NoError(t, err)
	require.Equal(t, LevelMember, level)
}

func TestServiceRoleLevelRequiresAdmin(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")

	err := s.SetRoleLevel(ctx, "g1", Member{ID: "nobody"}, "r1", LevelModerator)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestServiceConcurrentGrantsAllLand(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")
	owner := Member{ID: "owner"}

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			require.NoError(t, s.Grant(ctx, "g1", TierSupport, owner, u))
		}(u)
	}
	wg.Wait()

	rec, err := s.Record(ctx, "g1")
	require.NoError(t, err)
	require.ElementsMatch(t, users, rec.Supports)
}

func TestServiceCanRun(t *testing.T) {
	s, dal := newTestService(t)
	ctx := context.Background()
	seedOwner(t, dal, "g1", "owner")

	require.NoError(t, s.Grant(ctx, "g1", TierModerator, Member{ID: "owner"}, "mod"))

	ok, err := s.CanRun(ctx, "g1", Member{ID: "mod"}, "kick")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CanRun(ctx, "g1", Member{ID: "mod"}, "ban")
	require.NoError(t, err)
	require.False(t, ok)
}
