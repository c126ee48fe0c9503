package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrRuleNotFound indicates a workflow rule was not found by the given identifier.
	ErrRuleNotFound = errors.New("workflow rule not found")

	// ErrOperationNotFound indicates a bulk operation was not found by the given identifier.
	ErrOperationNotFound = errors.New("bulk operation not found")

	// ErrTaskNotFound indicates a scheduled task was not found by the given identifier.
	ErrTaskNotFound = errors.New("scheduled task not found")
)

// IsRuleNotFound checks if an error indicates a rule was not found.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsOperationNotFound checks if an error indicates a bulk operation was not found.
func IsOperationNotFound(err error) bool {
	return errors.Is(err, ErrOperationNotFound)
}

// IsTaskNotFound checks if an error indicates a scheduled task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsNotFound checks for any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsRuleNotFound(err) || IsOperationNotFound(err) || IsTaskNotFound(err)
}
