package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/wardenlabs/warden/pkg/dataaccess"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

// Service owns the mutable side of the permission system. All record changes
// go through the per-guild keyed mutex so concurrent grants never lose
// updates, and every change is saved before the call returns.
type Service struct {
	// l is the logger.
	l *slog.Logger

	// dal is the permission record store.
	dal dataaccess.PermissionsDal

	// locks serializes read-modify-write cycles per guild.
	locks *dataaccess.KeyedMutex
}

// NewService creates a new permission service.
func NewService(l *slog.Logger, dal dataaccess.PermissionsDal) *Service {
	return &Service{
		l:     l,
		dal:   dal,
		locks: dataaccess.NewKeyedMutex(),
	}
}

// Level resolves a member's level from the current record.
func (s *Service) Level(ctx context.Context, guildID string, m Member) (int, error) {
	rec, err := s.dal.GetGuildPermissions(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("error getting permission record: %w", err)
	}
	return ResolveLevel(rec, m), nil
}

// CanModerate resolves both members against the current record and applies
// the moderation rules.
func (s *Service) CanModerate(ctx context.Context, guildID string, actor, target Member) (bool, string, error) {
	rec, err := s.dal.GetGuildPermissions(ctx, guildID)
	if err != nil {
		return false, "", fmt.Errorf("error getting permission record: %w", err)
	}
	allowed, reason := CanModerate(rec, actor, target)
	return allowed, reason, nil
}

// CanRun reports whether the member may run the named command.
func (s *Service) CanRun(ctx context.Context, guildID string, m Member, command string) (bool, error) {
	level, err := s.Level(ctx, guildID, m)
	if err != nil {
		return false, err
	}
	return level >= RequiredLevel(command), nil
}

// Record returns the current permission record for display purposes.
func (s *Service) Record(ctx context.Context, guildID string) (*entities.GuildPermissions, error) {
	return s.dal.GetGuildPermissions(ctx, guildID)
}

// Grant adds userID to the given tier. The actor must meet the tier's grant
// threshold; granting an already-held tier is a no-op failure.
func (s *Service) Grant(ctx context.Context, guildID string, tier Tier, actor Member, userID string) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	rec, err := s.dal.GetGuildPermissions(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting permission record: %w", err)
	}

	if level := ResolveLevel(rec, actor); level < tier.grantThreshold() {
		return fmt.Errorf("%w: granting %s requires level %d, you are %d",
			ErrPermissionDenied, tier, tier.grantThreshold(), level)
	}

	set := tierSet(rec, tier)
	if slices.Contains(*set, userID) {
		return ErrAlreadyGranted
	}

	*set = append(*set, userID)
	if err := s.dal.SaveGuildPermissions(ctx, rec); err != nil {
		return fmt.Errorf("error saving permission record: %w", err)
	}

	s.l.Info("Tier granted",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyUser, userID),
		slog.String("tier", string(tier)),
	)
	return nil
}

// Revoke removes userID from the given tier. The actor must meet the tier's
// grant threshold; revoking a tier the user does not hold is a no-op failure.
func (s *Service) Revoke(ctx context.Context, guildID string, tier Tier, actor Member, userID string) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	rec, err := s.dal.GetGuildPermissions(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting permission record: %w", err)
	}

	if level := ResolveLevel(rec, actor); level < tier.grantThreshold() {
		return fmt.Errorf("%w: revoking %s requires level %d, you are %d",
			ErrPermissionDenied, tier, tier.grantThreshold(), level)
	}

	set := tierSet(rec, tier)
	idx := slices.Index(*set, userID)
	if idx < 0 {
		return ErrNotGranted
	}

	*set = slices.Delete(*set, idx, idx+1)
	if err := s.dal.SaveGuildPermissions(ctx, rec); err != nil {
		return fmt.Errorf("error saving permission record: %w", err)
	}

	s.l.Info("Tier revoked",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyUser, userID),
		slog.String("tier", string(tier)),
	)
	return nil
}

// SetRoleLevel maps a Discord role to a level between 0 and 4.
func (s *Service) SetRoleLevel(ctx context.Context, guildID string, actor Member, roleID string, level int) error {
	if level < LevelMember || level >= LevelOwner {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	unlock := s.locks.Lock(guildID)
	defer unlock()

	rec, err := s.dal.GetGuildPermissions(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting permission record: %w", err)
	}

	if actorLevel := ResolveLevel(rec, actor); actorLevel < LevelAdmin {
		return fmt.Errorf("%w: configuring roles requires level %d, you are %d",
			ErrPermissionDenied, LevelAdmin, actorLevel)
	}

	rec.RoleLevels[roleID] = level
	if err := s.dal.SaveGuildPermissions(ctx, rec); err != nil {
		return fmt.Errorf("error saving permission record: %w", err)
	}
	return nil
}

// ClearRoleLevel removes a role's configured level.
func (s *Service) ClearRoleLevel(ctx context.Context, guildID string, actor Member, roleID string) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	rec, err := s.dal.GetGuildPermissions(ctx, guildID)
	if err != nil {
		return fmt.Errorf("error getting permission record: %w", err)
	}

	if actorLevel := ResolveLevel(rec, actor); actorLevel < LevelAdmin {
		return fmt.Errorf("%w: configuring roles requires level %d, you are %d",
			ErrPermissionDenied, LevelAdmin, actorLevel)
	}

	if _, ok := rec.RoleLevels[roleID]; !ok {
		return ErrRoleNotConfigured
	}

	delete(rec.RoleLevels, roleID)
	if err := s.dal.SaveGuildPermissions(ctx, rec); err != nil {
		return fmt.Errorf("error saving permission record: %w", err)
	}
	return nil
}

// tierSet returns the record's membership set for a tier.
func tierSet(rec *entities.GuildPermissions, tier Tier) *[]string {
	switch tier {
	case TierOwner:
		return &rec.Owners
	case TierAdmin:
		return &rec.Admins
	case TierGS:
		return &rec.GSUsers
	case TierModerator:
		return &rec.Moderators
	default:
		return &rec.Supports
	}
}
