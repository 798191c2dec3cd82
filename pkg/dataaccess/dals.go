package dataaccess

import (
	"context"

	"github.com/wardenlabs/warden/pkg/entities"
)

// PermissionsDal is the data access layer for guild permission records.
type PermissionsDal interface {
	// GetGuildPermissions gets the permission record for a guild. A guild
	// without a stored record yields a defaulted record with empty sets; it is
	// not persisted until the first save.
	GetGuildPermissions(ctx context.Context, guildID string) (*entities.GuildPermissions, error)

	// SaveGuildPermissions saves a permission record. The record must be
	// durably persisted before the call returns.
	SaveGuildPermissions(ctx context.Context, rec *entities.GuildPermissions) error
}

// GuildDal is the data access layer for guild (ticketing) configuration.
type GuildDal interface {
	// GetGuildByID gets a guild by ID. A guild without a stored record yields
	// a defaulted record; it is not persisted until the first save.
	GetGuildByID(ctx context.Context, guildID string) (*entities.Guild, error)

	// SaveGuild saves a guild.
	SaveGuild(ctx context.Context, guild *entities.Guild) error
}

// WarnDal is the data access layer for warnings.
type WarnDal interface {
	// AddWarn records a warning.
	AddWarn(ctx context.Context, warn *entities.Warn) error

	// GetWarns gets all warnings for a user in a guild, oldest first.
	GetWarns(ctx context.Context, guildID, userID string) ([]*entities.Warn, error)

	// RemoveWarn removes the warning at the given position (as returned by
	// GetWarns). Returns ErrWarnNotFound if the position does not exist.
	RemoveWarn(ctx context.Context, guildID, userID string, index int) error

	// ClearWarns removes all warnings for a user and reports how many were
	// removed.
	ClearWarns(ctx context.Context, guildID, userID string) (int, error)
}

// Store is the aggregate persistence surface the bot runs against.
type Store interface {
	PermissionsDal
	GuildDal
	WarnDal

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
