package processor

import "errors"

var (
	// ErrSettingsUnavailable means the shop's settings are missing or invalid. Evaluation fails closed.
	ErrSettingsUnavailable = errors.New("detection settings unavailable")
	// ErrEvaluationInProgress means another worker holds the order's evaluation lock.
	ErrEvaluationInProgress = errors.New("evaluation already in progress")
	// ErrLockUnavailable means the lock service could not be reached.
	ErrLockUnavailable = errors.New("evaluation lock unavailable")
	// ErrOrderLoad means the candidate orders could not be loaded.
	ErrOrderLoad = errors.New("failed to load recent orders")
	// ErrPersistence means the order snapshot or flag state could not be read or written.
	ErrPersistence = errors.New("failed to persist evaluation state")
)

// IsRetryable reports whether err is a transient collaborator failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSettingsUnavailable) ||
		errors.Is(err, ErrEvaluationInProgress) ||
		errors.Is(err, ErrLockUnavailable) ||
		errors.Is(err, ErrOrderLoad) ||
		errors.Is(err, ErrPersistence)
}
