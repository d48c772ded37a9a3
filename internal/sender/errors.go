package sender

import "fmt"

// TransportError reports a failed submission: the request could not be sent,
// the endpoint answered with a non-success status, or the response could not
// be parsed.
type TransportError struct {
	Op         string // "marshal", "request", "status", "read", "decode", "publish"
	StatusCode int    // HTTP status, 0 when not applicable
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit telemetry: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submit telemetry: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
