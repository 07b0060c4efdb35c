// Package common defines shared constants and sentinel errors used across
// client and server layers of Lorekeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrPermissionDenied marks a mutation attempted by a role that may not
	// perform it (hide toggle, permanent delete, notes edit, foreign comment
	// delete). Checked defensively even where the UI hides the affordance.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation marks a mutation rejected before any write was attempted
	// (empty title, empty category label, removing the last category, comment
	// over the size cap). Wrap with context, match with errors.Is.
	ErrValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
