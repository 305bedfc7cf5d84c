package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rag-agent/internal/infra/resilience"
)

// statusError is a non-2xx reply from Ollama, kept as a distinct type so
// the classifier can separate server trouble from bad requests.
type statusError struct {
	status int
	body   string
}

func newStatusError(resp *http.Response) *statusError {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("ollama returned status %d", e.status)
	}
	return fmt.Sprintf("ollama returned status %d: %s", e.status, e.body)
}

// classifyHTTP marks server-side and transport failures retryable. Client
// errors mean the request itself is wrong, so retrying cannot help and the
// breaker should not count them.
func classifyHTTP(err error) resilience.ErrorClassification {
	var se *statusError
	if errors.As(err, &se) {
		transient := se.status >= http.StatusInternalServerError ||
			se.status == http.StatusTooManyRequests
		return resilience.ErrorClassification{Retryable: transient, RecordFailure: transient}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
