package core

import "errors"

var (
	// ErrNoCoverage indicates no entry or exit satellite could be chosen,
	// usually because the snapshot is empty.
	ErrNoCoverage = errors.New("no coverage")
	// ErrNoPath indicates the entry and exit satellites are not connected in
	// the routing graph.
	ErrNoPath = errors.New("no path")
)

// Failure statuses reported to callers.
const (
	StatusSuccess    = "success"
	StatusNoCoverage = "error"
	StatusNoPath     = "no_path"
)

// Failure is the structured form of a routing error.
type Failure struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Classify maps a routing error onto the stable failure vocabulary. Anything
// that is not a coverage problem is reported as a lost signal.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return Failure{Status: StatusSuccess}
	case errors.Is(err, ErrNoCoverage):
		return Failure{Status: StatusNoCoverage, Message: "No Coverage"}
	default:
		return Failure{Status: StatusNoPath, Message: "Signal Lost"}
	}
}
