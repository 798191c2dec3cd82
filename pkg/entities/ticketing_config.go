package entities

// Default ticket type keys.
const (
	TicketTypeSupport     = "support"
	TicketTypeReport      = "report"
	TicketTypePartnership = "partnership"
	TicketTypeOther       = "other"
)

type TicketingConfig struct {
	// CategoryID is the ID of the category that ticket channels are created in.
	CategoryID string `json:"category_id" bson:"category_id"`

	// PanelChannelID is the ID of the channel that the panel message is in.
	PanelChannelID string `json:"panel_channel_id" bson:"panel_channel_id"`

	// PanelMessageID is the ID of the panel message.
	PanelMessageID string `json:"panel_message_id" bson:"panel_message_id"`

	// LogChannelID is the ID of the channel that ticket actions are logged to.
	LogChannelID string `json:"log_channel_id" bson:"log_channel_id"`

	// SupportRoleID is the ID of the role with standing access to all tickets.
	SupportRoleID string `json:"support_role_id" bson:"support_role_id"`

	// TicketCounter is the number of tickets issued. It only ever increases;
	// issued numbers are never reused.
	TicketCounter int `json:"ticket_counter" bson:"ticket_counter"`

	// OpenTickets maps a user ID to the ID of their currently open ticket
	// channel. At most one entry per user.
	OpenTickets map[string]string `json:"open_tickets" bson:"open_tickets"`

	// Types are the ticket types offered on the panel, keyed by type key.
	Types map[string]TicketType `json:"types" bson:"types"`
}

// TicketType describes one button on the ticket panel.
type TicketType struct {
	// Emoji is the emoji shown on the panel button.
	Emoji string `json:"emoji" bson:"emoji"`

	// Name is the display name of the ticket type.
	Name string `json:"name" bson:"name"`

	// Enabled is whether the type is offered on the panel.
	Enabled bool `json:"enabled" bson:"enabled"`
}

// DefaultTicketTypes returns the four stock ticket types.
func DefaultTicketTypes() map[string]TicketType {
	return map[string]TicketType{
		TicketTypeSupport:     {Emoji: "\U0001F4AC", Name: "General Support", Enabled: true},
		TicketTypeReport:      {Emoji: "⚠️", Name: "Report", Enabled: true},
		TicketTypePartnership: {Emoji: "\U0001F91D", Name: "Partnership", Enabled: true},
		TicketTypeOther:       {Emoji: "\U0001F4DD", Name: "Other", Enabled: true},
	}
}
