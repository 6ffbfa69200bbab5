package quarry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrConfig reports an invalid configuration value. It is fatal and
// raised before any model call is made.
type ErrConfig struct {
	Field  string
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// ErrModel reports a failed model invocation (network, timeout, quota).
// Status carries the HTTP status when one exists; 429 and 503 are
// considered transient and eligible for retry (see WithRetry).
type ErrModel struct {
	Provider   string
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *ErrModel) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrMalformedDecomposition reports that the model's decomposition
// output could not be parsed into valid tool-bound sub-questions, or
// referenced a tool that was not offered. Raw preserves the model
// output for diagnostics.
type ErrMalformedDecomposition struct {
	Raw    string
	Reason string
}

func (e *ErrMalformedDecomposition) Error() string {
	return "malformed decomposition: " + e.Reason
}

// ErrMalformedExtraction reports that an extractor could not parse the
// model's output into a metadata mapping. Raw preserves the model
// output for diagnostics.
type ErrMalformedExtraction struct {
	Extractor string
	Raw       string
	Reason    string
}

func (e *ErrMalformedExtraction) Error() string {
	return fmt.Sprintf("extractor %s: malformed output: %s", e.Extractor, e.Reason)
}

// ParseRetryAfter parses an HTTP Retry-After header value, either
// delay-seconds or an HTTP-date. Returns 0 when the value is empty or
// unparsable.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
