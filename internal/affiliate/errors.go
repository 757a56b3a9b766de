package affiliate

import (
	"errors"
	"fmt"
)

// ErrorKind classifies partner API failures.
type ErrorKind string

const (
	// KindRateLimited means the partner kept throttling until the attempt
	// ceiling was reached.
	KindRateLimited ErrorKind = "rate_limited"
	KindAPI         ErrorKind = "api"
	KindTransport   ErrorKind = "transport"
	KindDecode      ErrorKind = "decode"
)

// Error is the structured failure returned by every Client call.
type Error struct {
	Kind     ErrorKind
	Method   string
	Code     string
	Message  string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s %s: %s: %s (attempts %d)", e.Method, e.Kind, e.Code, e.Message, e.Attempts)
	case e.Message != "":
		return fmt.Sprintf("%s %s: %s (attempts %d)", e.Method, e.Kind, e.Message, e.Attempts)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v (attempts %d)", e.Method, e.Kind, e.Err, e.Attempts)
	}
	return fmt.Sprintf("%s %s (attempts %d)", e.Method, e.Kind, e.Attempts)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is an exhausted rate-limit failure.
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRateLimited
}
