package board

import "errors"

// Error taxonomy shared by every layer of the board state subsystem.
// Callers match with errors.Is; lower layers wrap these with context.
var (
	// ErrInvalidPatient indicates an empty or malformed patient identifier.
	ErrInvalidPatient = errors.New("invalid patient identifier")

	// ErrNotFound indicates the requested item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrIndexOutOfRange indicates a todo task index outside the task list.
	ErrIndexOutOfRange = errors.New("task index out of range")

	// ErrSourceUnavailable indicates every fallback source failed.
	// Distinct from an empty board: the board state could not be determined.
	ErrSourceUnavailable = errors.New("no board source available")

	// ErrTimeout indicates a bounded external call exceeded its budget.
	ErrTimeout = errors.New("source call timed out")
)

// IsNotFound returns true if the error means "item not found".
// Use this to check Get, Update and todo-status results.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
