package process

import "errors"

// Error kinds returned by the lifecycle manager and the launcher.
// Callers classify errors with errors.Is.
var (
	ErrNotFound       = errors.New("process not found")
	ErrValidation     = errors.New("validation failed")
	ErrAlreadyRunning = errors.New("process already running")
	ErrSpawn          = errors.New("spawn failed")
	ErrTermination    = errors.New("termination failed")
	ErrPersistence    = errors.New("persistence failed")
)

// Kind returns a short machine-readable name for the error kind of err,
// or "internal" when err does not wrap one of the package sentinels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAlreadyRunning):
		return "already_running"
	case errors.Is(err, ErrSpawn):
		return "spawn"
	case errors.Is(err, ErrTermination):
		return "termination"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}
