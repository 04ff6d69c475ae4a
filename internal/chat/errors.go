package chat

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRateLimitExceeded is returned once the retry budget for "too many
// requests" responses is used up. It is wrapped with the request path.
var ErrRateLimitExceeded = errors.New("rate limit exceeded after retries")

// ConfigurationError reports missing credentials or an undiscoverable
// workspace. It is fatal and raised before any fetch happens.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "chat: configuration: " + e.Reason
}

// RequestError is any non-success HTTP outcome other than rate limiting.
type RequestError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string // first bytes of the response body, for diagnostics
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("chat: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is a RequestError with status 404.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// IsFatal reports whether err must abort a whole digest run rather than
// only the channel or thread that produced it.
func IsFatal(err error) bool {
	var ce *ConfigurationError
	return errors.Is(err, ErrRateLimitExceeded) || errors.As(err, &ce)
}
