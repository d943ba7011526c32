package quotes

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure. The orchestrator treats every
// kind as retryable (it simply moves on to the next provider); the kind is
// used for user-facing summaries and for callers that want to distinguish
// throttling from hard failures.
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindRateLimit     ErrorKind = "rate_limit"
	KindInvalidAPIKey ErrorKind = "invalid_api_key"
	KindProvider      ErrorKind = "provider"
)

// NetworkError indicates a transport/connectivity failure.
type NetworkError struct {
	Provider string
	Err      error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e NetworkError) Unwrap() error { return e.Err }

// RateLimitError indicates provider-enforced throttling, detected via
// HTTP 429 or response-body sniffing.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// InvalidAPIKeyError indicates a 401/403 or an explicit key-invalid signal.
type InvalidAPIKeyError struct {
	Provider string
}

func (e InvalidAPIKeyError) Error() string {
	return fmt.Sprintf("%s: invalid API key", e.Provider)
}

// ProviderError is the catch-all for malformed or unexpected provider
// responses, including missing credentials.
type ProviderError struct {
	Provider string
	Message  string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Classify maps an error to its ErrorKind. Unrecognized errors classify as
// KindProvider.
func Classify(err error) ErrorKind {
	var netErr NetworkError
	var rateErr RateLimitError
	var keyErr InvalidAPIKeyError

	switch {
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &keyErr):
		return KindInvalidAPIKey
	default:
		return KindProvider
	}
}

// Summary maps an error to the fixed human-readable phrase shown in widgets.
// Unrecognized kinds fall through to the raw message.
func Summary(err error) string {
	switch Classify(err) {
	case KindRateLimit:
		return "API rate limit exceeded. Please wait."
	case KindInvalidAPIKey:
		return "Invalid API key"
	case KindNetwork:
		return "Network unavailable"
	default:
		return err.Error()
	}
}
