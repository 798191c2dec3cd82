package tickets

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when the guild has not run setup.
	ErrNotConfigured = errors.New("ticket system not configured")

	// ErrNotATicket is returned when a channel is not a ticket channel.
	ErrNotATicket = errors.New("channel is not a ticket")

	// ErrMissingSupportRole is returned when a claim comes from a member
	// without the support role.
	ErrMissingSupportRole = errors.New("missing support role")

	// ErrUnknownTicketType is returned when opening a ticket of a type the
	// guild does not offer.
	ErrUnknownTicketType = errors.New("unknown ticket type")
)

// DuplicateTicketError is returned when a user who already has an open ticket
// tries to open another. ChannelID points at the existing ticket.
type DuplicateTicketError struct {
	ChannelID string
}

func (e *DuplicateTicketError) Error() string {
	return fmt.Sprintf("user already has an open ticket in channel %s", e.ChannelID)
}
