package service

import "errors"

// Error taxonomy for the approval core. All of these are deterministic
// results: the core never retries and never swallows them.
var (
	// ErrValidation marks malformed creation input; nothing was persisted.
	ErrValidation = errors.New("validation failed")

	// ErrPermission marks a decision by the wrong actor role for the current
	// level; the request is unchanged.
	ErrPermission = errors.New("actor not permitted for this approval level")

	// ErrConflict marks a stale expected version. The request is unchanged;
	// the caller must refetch and retry.
	ErrConflict = errors.New("request version conflict")

	// ErrInvalidState marks a decision against a terminal request or a level
	// that is not the current one.
	ErrInvalidState = errors.New("request is not in a valid state for this operation")

	// ErrNotFound marks a missing request.
	ErrNotFound = errors.New("request not found")
)
