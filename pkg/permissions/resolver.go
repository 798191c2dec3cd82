// Package permissions resolves the bot's trust tiers and gates moderation
// actions. Levels run from 0 (member) to 5 (bot owner) and are independent of
// Discord's native permissions, which are consulted only as a secondary
// hierarchy check.
package permissions

import (
	"fmt"
	"slices"

	"github.com/wardenlabs/warden/pkg/entities"
)

// Member is a snapshot of the guild member state the resolver needs. It is
// built once per event from the live session so the resolution itself is a
// pure function.
type Member struct {
	// ID is the ID of the member.
	ID string

	// RoleIDs are the IDs of the roles the member holds.
	RoleIDs []string

	// IsGuildOwner is whether the member owns the guild.
	IsGuildOwner bool

	// HasNativeAdmin is whether the member holds the native administrator
	// permission.
	HasNativeAdmin bool

	// TopRolePosition is the position of the member's highest role in the
	// guild's native role ordering.
	TopRolePosition int
}

// ResolveLevel resolves a member's trust level against a permission record.
// The checks form a strict waterfall; the first match wins.
func ResolveLevel(rec *entities.GuildPermissions, m Member) int {
	switch {
	case slices.Contains(rec.Owners, m.ID):
		return LevelOwner
	case m.IsGuildOwner:
		return LevelOwner
	case slices.Contains(rec.Admins, m.ID):
		return LevelAdmin
	case m.HasNativeAdmin:
		return LevelAdmin
	case slices.Contains(rec.GSUsers, m.ID):
		return LevelGS
	case slices.Contains(rec.Moderators, m.ID):
		return LevelModerator
	case slices.Contains(rec.Supports, m.ID):
		return LevelSupport
	}

	// No explicit grant; take the highest configured role level.
	max := LevelMember
	for _, roleID := range m.RoleIDs {
		if level, ok := rec.RoleLevels[roleID]; ok && level > max {
			max = level
		}
	}
	return max
}

// CanModerate reports whether actor may apply a sanction to target. When the
// action is denied the returned reason is suitable for display. A tier 5
// actor bypasses the native role hierarchy check; everyone else is subject to
// both the tier ladder and Discord's own role ordering.
func CanModerate(rec *entities.GuildPermissions, actor, target Member) (bool, string) {
	if target.ID == actor.ID {
		return false, "you cannot sanction yourself"
	}

	if target.IsGuildOwner {
		return false, "the server owner cannot be sanctioned"
	}

	actorLevel := ResolveLevel(rec, actor)
	targetLevel := ResolveLevel(rec, target)

	if targetLevel >= actorLevel {
		return false, fmt.Sprintf("you cannot sanction someone of level %s (you are %s)",
			LevelName(targetLevel), LevelName(actorLevel))
	}

	if actorLevel == LevelOwner {
		return true, ""
	}

	if target.TopRolePosition >= actor.TopRolePosition {
		return false, "you cannot sanction someone with an equal or higher Discord role"
	}

	return true, ""
}
