package pause

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned when no row matches the remote
// identifier in the tenant's table.
var ErrConversationNotFound = errors.New("conversation not found")

// ValidationError rejects a transition before any side effect. The field
// name lets the UI attach the message to the right input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PersistenceError means the table write failed; the transition was aborted
// and no webhook was attempted. Retryable by the caller.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("could not save pause state: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RemoteControlError means the bot webhook failed after the local write
// succeeded. The transition is complete but degraded: the local flag is the
// source of truth and is never rolled back. Retry is manual.
type RemoteControlError struct {
	Action string
	Err    error
}

func (e *RemoteControlError) Error() string {
	return fmt.Sprintf("saved locally but the bot %s call failed: %v", e.Action, e.Err)
}

func (e *RemoteControlError) Unwrap() error {
	return e.Err
}
