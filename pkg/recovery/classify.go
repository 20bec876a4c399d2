package recovery

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind is the closed set of failure classifications.
type Kind string

const (
	// KindTokenExpired is an expired embed token; retryable after a refresh.
	KindTokenExpired Kind = "token-expired"

	// KindQueryError is a failure inside the report's query engine.
	KindQueryError Kind = "query-error"

	// KindRateLimited is a backend rate-limit rejection.
	KindRateLimited Kind = "rate-limited"

	// KindNotFound means the resource does not exist; never retried.
	KindNotFound Kind = "not-found"

	// KindUnauthorized means the caller lacks access; never retried.
	KindUnauthorized Kind = "unauthorized"

	// KindNetworkError is a transport-level failure.
	KindNetworkError Kind = "network-error"

	// KindTimeout is a request that ran out of time.
	KindTimeout Kind = "timeout"

	// KindUnknown is any failure that matched nothing above.
	KindUnknown Kind = "unknown"

	// KindNull is the classification of a nil failure.
	KindNull Kind = "null"
)

// Severity indicates how loudly a failure should be surfaced to the host.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Failure is the classified form of a raw SDK/transport failure. All
// downstream retry logic switches on Kind only, never on the raw shape.
type Failure struct {
	Kind      Kind
	Message   string
	Retryable bool
	Severity  Severity
}

// kindProfile fixes the (retryable, severity) pair for each kind.
var kindProfile = map[Kind]struct {
	retryable bool
	severity  Severity
}{
	KindTokenExpired: {true, SeverityHigh},
	KindQueryError:   {true, SeverityMedium},
	KindRateLimited:  {true, SeverityMedium},
	KindNotFound:     {false, SeverityCritical},
	KindUnauthorized: {false, SeverityCritical},
	KindNetworkError: {true, SeverityMedium},
	KindTimeout:      {true, SeverityMedium},
	KindUnknown:      {false, SeverityMedium},
	KindNull:         {false, SeverityLow},
}

// Classify maps a raw failure to a Failure record. It is a total function:
// any error (including nil) produces a usable record, and it never fails.
func Classify(raw error) Failure {
	if raw == nil {
		return newFailure(KindNull, "")
	}

	msg := raw.Error()

	var embedErr *EmbedError
	if errors.As(raw, &embedErr) {
		return newFailure(classifyEmbedError(embedErr), msg)
	}

	if errors.Is(raw, context.DeadlineExceeded) {
		return newFailure(KindTimeout, msg)
	}

	var netErr net.Error
	if errors.As(raw, &netErr) {
		if netErr.Timeout() {
			return newFailure(KindTimeout, msg)
		}
		return newFailure(KindNetworkError, msg)
	}

	return newFailure(classifyMessage(msg), msg)
}

func newFailure(kind Kind, message string) Failure {
	profile := kindProfile[kind]
	return Failure{
		Kind:      kind,
		Message:   message,
		Retryable: profile.retryable,
		Severity:  profile.severity,
	}
}

// classifyEmbedError maps a structured SDK error to a kind. The SDK error
// code takes precedence over the HTTP status.
func classifyEmbedError(e *EmbedError) Kind {
	switch normalizeCode(e.ErrorCode) {
	case "tokenexpired", "expiredtoken":
		return KindTokenExpired
	case "queryusererror", "queryerror", "querytimeout":
		return KindQueryError
	case "ratelimited", "toomanyrequests":
		return KindRateLimited
	}

	switch {
	case e.StatusCode == 404:
		return KindNotFound
	case e.StatusCode == 401 || e.StatusCode == 403:
		return KindUnauthorized
	case e.StatusCode == 429:
		return KindRateLimited
	case e.StatusCode == 408 || e.StatusCode == 504:
		return KindTimeout
	case e.StatusCode >= 500:
		return KindNetworkError
	}

	return classifyMessage(e.Message)
}

// classifyMessage is the tolerant fallback for failures that carry nothing
// but text. Matches are checked from most to least specific.
func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)

	switch {
	case strings.Contains(m, "token") && strings.Contains(m, "expir"):
		return KindTokenExpired
	case strings.Contains(m, "rate limit") || strings.Contains(m, "too many requests") || strings.Contains(m, "429"):
		return KindRateLimited
	case strings.Contains(m, "not found") || strings.Contains(m, "404"):
		return KindNotFound
	case strings.Contains(m, "unauthorized") || strings.Contains(m, "forbidden") ||
		strings.Contains(m, "401") || strings.Contains(m, "403"):
		return KindUnauthorized
	case strings.Contains(m, "timeout") || strings.Contains(m, "timed out") || strings.Contains(m, "deadline"):
		return KindTimeout
	case strings.Contains(m, "network") || strings.Contains(m, "connection") ||
		strings.Contains(m, "refused") || strings.Contains(m, "reset"):
		return KindNetworkError
	case strings.Contains(m, "query"):
		return KindQueryError
	}

	return KindUnknown
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", ""))
}

// userMessages holds one canonical sentence per kind.
var userMessages = map[Kind]string{
	KindTokenExpired: "Your session expired. The report is being refreshed.",
	KindQueryError:   "The report query failed. Retrying with a short delay.",
	KindRateLimited:  "Too many requests right now. The report will reload shortly.",
	KindNotFound:     "This report could not be found. It may have been moved or deleted.",
	KindUnauthorized: "You do not have permission to view this report.",
	KindNetworkError: "A network problem interrupted the report. Retrying.",
	KindTimeout:      "The report took too long to respond. Retrying.",
	KindNull:         "The report stopped without a reported cause.",
}

// UserMessage returns the host-facing sentence for a classified failure.
// Unknown failures fall back to the raw message text.
func UserMessage(f Failure) string {
	if msg, ok := userMessages[f.Kind]; ok {
		return msg
	}
	if f.Message != "" {
		return f.Message
	}
	return "Something went wrong while loading the report."
}
