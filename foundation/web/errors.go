package web

import "errors"

// ErrNoValues is returned by GetValues when the context carries no Values,
// meaning it did not originate from a handler registered through App.Handle.
var ErrNoValues = errors.New("web: values missing from context")

// shutdownError is used to pass an error that requires the service to be
// shut down immediately, the same escape hatch the teacher's web package
// gives a handler that detects unrecoverable integrity loss.
type shutdownError struct {
	Message string
}

// NewShutdownError returns an error that causes the framework to signal a
// graceful shutdown.
func NewShutdownError(message string) error {
	return &shutdownError{message}
}

func (se *shutdownError) Error() string {
	return se.Message
}

// IsShutdown checks if an error is of the shutdown variety.
func IsShutdown(err error) bool {
	var se *shutdownError
	return errors.As(err, &se)
}
