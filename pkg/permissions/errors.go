package permissions

import "errors"

var (
	// ErrPermissionDenied is returned when the caller's level is too low for
	// the requested change.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyGranted is returned when granting a tier the user already
	// holds. The record is unchanged.
	ErrAlreadyGranted = errors.New("user already holds tier")

	// ErrNotGranted is returned when revoking a tier the user does not hold.
	// The record is unchanged.
	ErrNotGranted = errors.New("user does not hold tier")

	// ErrInvalidLevel is returned when configuring a role with a level outside
	// 0-4. Level 5 cannot be granted via a role.
	ErrInvalidLevel = errors.New("invalid level")

	// ErrRoleNotConfigured is returned when clearing a role that has no
	// configured level.
	ErrRoleNotConfigured = errors.New("role has no configured level")
)
