package entities

// GuildPermissions is the per-guild permission record. The tier sets hold user
// IDs; RoleLevels maps a Discord role ID to the level (0-4) it confers.
type GuildPermissions struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// Owners are the bot owners (level 5).
	Owners []string `json:"owners" bson:"owners"`

	// Admins are the administrators (level 4).
	Admins []string `json:"admins" bson:"admins"`

	// GSUsers are the management users (level 3).
	GSUsers []string `json:"gs_users" bson:"gs_users"`

	// Moderators are the moderators (level 2).
	Moderators []string `json:"moderators" bson:"moderators"`

	// Supports are the support members (level 1).
	Supports []string `json:"supports" bson:"supports"`

	// RoleLevels maps a role ID to the level it confers.
	RoleLevels map[string]int `json:"role_levels" bson:"role_levels"`
}

// NewGuildPermissions returns a permission record with empty sets.
func NewGuildPermissions(guildID string) *GuildPermissions {
	return &GuildPermissions{
		ID:         guildID,
		Owners:     make([]string, 0),
		Admins:     make([]string, 0),
		GSUsers:    make([]string, 0),
		Moderators: make([]string, 0),
		Supports:   make([]string, 0),
		RoleLevels: make(map[string]int),
	}
}
