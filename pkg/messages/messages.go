// Package messages holds the canned user-facing strings the bot responds with.
package messages

const (
	// ErrUserErrorProcessing is sent when a command fails for an internal reason.
	ErrUserErrorProcessing = "Something went wrong processing that, please try again."

	// ErrNotConfigured is sent when the ticket system has not been set up.
	ErrNotConfigured = "The ticket system is not configured for this server. Ask an administrator to run /ticketsetup."

	// ErrNotATicket is sent when a ticket command is used outside a ticket channel.
	ErrNotATicket = "This command can only be used inside a ticket channel."

	// ErrMissingSupportRole is sent when a user without the support role tries to claim.
	ErrMissingSupportRole = "You need the support role to claim tickets."

	// ErrAdministratorOnly is sent when a non-administrator uses a setup command.
	ErrAdministratorOnly = "You must be an administrator to use this command."
)
