package entities

import "github.com/wardenlabs/warden/pkg/custom"

// Warn is a single warning issued to a user.
type Warn struct {
	// GuildID is the ID of the guild the warning was issued in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// UserID is the ID of the warned user.
	UserID string `json:"user_id" bson:"user_id"`

	// ModeratorID is the ID of the user that issued the warning.
	ModeratorID string `json:"moderator_id" bson:"moderator_id"`

	// Reason is the reason given for the warning.
	Reason string `json:"reason" bson:"reason"`

	// CreatedAt is the time the warning was issued.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`
}
