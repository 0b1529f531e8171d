package types

import "errors"

// Sentinel errors returned at the ProcessState boundary (§7 of the design).
// Callers match with errors.Is to map internal failures onto the documented
// error taxonomy without parsing strings.
var (
	// ErrInvalidSessionID is returned when session_id fails the boundary regex.
	ErrInvalidSessionID = errors.New("invalid_session_id")

	// ErrMissingInitialObjective names the case where the first call for a
	// session omits initial_objective, or a later call supplies one.
	// ProcessState reports that case as ErrCodeMissingInitialObjective in an
	// ErrorResponse; no function in this module returns this error value.
	ErrMissingInitialObjective = errors.New("missing_initial_objective")

	// ErrStaleRevision is returned when an Update's expected revision no
	// longer matches the stored session (lost a concurrent write race).
	ErrStaleRevision = errors.New("stale_revision")

	// ErrInternalStore wraps durability failures from the session store.
	ErrInternalStore = errors.New("internal_store_error")

	// ErrInvariantViolation marks a fatal programmer error: a computed
	// next phase outside the enum, a negative count, a todo without an id.
	// It aborts the call and leaves the session at its pre-call revision.
	ErrInvariantViolation = errors.New("invariant_violation")

	// ErrUnknownPhase is returned when a Phase token outside the fixed
	// enum is decoded from a Message.
	ErrUnknownPhase = errors.New("unknown phase token")

	// ErrTodoMissingID is an invariant violation: every todo must carry
	// a unique, non-empty id.
	ErrTodoMissingID = errors.New("todo missing id")

	// ErrDuplicateTodoID is an invariant violation: todo ids must be
	// unique within a session.
	ErrDuplicateTodoID = errors.New("duplicate todo id")

	// ErrMultipleInProgress is an invariant violation: at most one todo
	// may be in_progress at a time.
	ErrMultipleInProgress = errors.New("more than one todo in_progress")
)
