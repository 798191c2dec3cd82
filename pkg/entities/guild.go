package entities

// Guild is the per-guild bot configuration.
type Guild struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// Ticketing is the ticketing configuration.
	Ticketing TicketingConfig `json:"ticketing" bson:"ticketing"`
}

// NewGuild returns a guild record with defaulted ticketing configuration.
func NewGuild(guildID string) *Guild {
	return &Guild{
		ID: guildID,
		Ticketing: TicketingConfig{
			OpenTickets: make(map[string]string),
			Types:       DefaultTicketTypes(),
		},
	}
}
