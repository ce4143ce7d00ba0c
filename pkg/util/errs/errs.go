package errs

import (
	"fmt"
)

// SilentError is an error wrapper type that silences an
// error and only logs them in the debug log.
//
// It is usually used to prevent spamming the default
// log when Minecraft clients send invalid packets which cannot be read.
type SilentError struct{ error }

func (e *SilentError) Error() string {
	return e.error.Error()
}

func NewSilentErr(format string, a ...interface{}) error {
	return &SilentError{fmt.Errorf(format, a...)}
}

func WrapSilent(wrappedErr error) error {
	return &SilentError{wrappedErr}
}

func (e *SilentError) Unwrap() error { return e.error }

// VerificationError marks a failed verification with the reason kind
// that decides blacklist promotion and the disconnect reason sent.
type VerificationError struct {
	Kind string
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed (%s): %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// see https://github.com/golang/go/issues/4373 for details
func IsConnClosedErr(err error) bool {
	return err != nil &&
		(err.Error() == "use of closed network connection" ||
			err.Error() == "read: connection reset by peer")
}
