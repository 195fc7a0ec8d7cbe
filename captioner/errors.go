package captioner

import "fmt"

// ConfigError is a fatal construction-time error: a bad model string, a
// missing endpoint or credential. Never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "captioner: " + e.Reason
}

// CaptionError is a recoverable generation failure: a non-2xx provider
// response, empty output, or a network/timeout error. Callers may fall
// back to queued execution or let the queue's retry policy run it again.
type CaptionError struct {
	Provider string
	Status   int    // HTTP status, 0 for transport failures
	Body     string // response body excerpt, if any
	Err      error  // wrapped cause, if any
}

func (e *CaptionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("captioner: %s: %v", e.Provider, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("captioner: %s: request failed with status %d: %s", e.Provider, e.Status, e.Body)
	default:
		return fmt.Sprintf("captioner: %s: generation failed: %s", e.Provider, e.Body)
	}
}

func (e *CaptionError) Unwrap() error { return e.Err }
