package probe

import "context"

// Result is the outcome of a single reachability probe.
//
// Fields:
// - Reachable: true only when a response arrived with status 200.
// - StatusCode: HTTP status code when a response arrived; 0 otherwise.
// - Reason: coarse failure class (see the Reason* constants); empty when reachable.
type Result struct {
	Reachable  bool
	StatusCode int
	LatencyMS  float64
	Reason     string
	Message    string
}

// Checker performs one probe against a target URL. Implementations must be
// safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, target string) Result
}
