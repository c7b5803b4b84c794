package engine

// Domain errors surfaced to the requesting participant. Each aborts a single
// operation without mutating room state.

// ValidationError reports a malformed creation request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthError reports a room password mismatch.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// CapacityError reports that both writer slots are taken.
type CapacityError struct {
	Message string
}

func (e *CapacityError) Error() string { return e.Message }

// NotFoundError reports an unknown or malformed room identity.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }
