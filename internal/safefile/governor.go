package safefile

import (
	"path/filepath"
)

type OperationKind string

const (
	OpMkdir OperationKind = "MKDIR"
	OpCopy  OperationKind = "COPY"
	OpMove  OperationKind = "MOVE"
	OpWrite OperationKind = "WRITE"
)

// GovernorTolerance is the slack above the expected per-folder write count
// before the breaker trips; it absorbs rename-on-collision overhead.
const GovernorTolerance = 2

type OperationRecord struct {
	Kind        OperationKind
	Source      string
	Destination string
}

// Governor is the runaway-operation guard for one filing action. A single
// mis-detected match-everything filing rule must not be able to copy a file
// into every folder of a project tree; the governor trips deterministically
// once a destination folder receives more content writes than the caller
// declared it would.
//
// Construct one per process and pass it by reference into every write helper
// of an action; Reset is called exactly once at the action's entry point.
// It is not safe for concurrent use, matching the one-action-at-a-time model.
type Governor struct {
	log      []OperationRecord
	expected map[string]int
	observed map[string]int
}

func NewGovernor() *Governor {
	return &Governor{
		expected: map[string]int{},
		observed: map[string]int{},
	}
}

// Reset discards the previous action's log and counters and installs the
// expected per-destination-folder write counts for the next action.
func (g *Governor) Reset(expected map[string]int) {
	g.log = nil
	g.expected = make(map[string]int, len(expected))
	for folder, count := range expected {
		g.expected[filepath.Clean(folder)] = count
	}
	g.observed = map[string]int{}
}

// Record appends one operation to the log. WRITE and COPY count toward the
// destination's parent folder; MOVE and MKDIR are logged but never counted.
// Once a folder with a configured expectation exceeds it by more than
// GovernorTolerance, Record returns a CircuitBreakerError carrying the full
// log, and the caller must abort the remainder of the action.
func (g *Governor) Record(kind OperationKind, source, destination string) error {
	g.log = append(g.log, OperationRecord{Kind: kind, Source: source, Destination: destination})
	if kind != OpWrite && kind != OpCopy {
		return nil
	}
	folder := filepath.Dir(filepath.Clean(destination))
	g.observed[folder]++
	expected, ok := g.expected[folder]
	if !ok {
		return nil
	}
	if g.observed[folder] > expected+GovernorTolerance {
		return &CircuitBreakerError{
			Folder:   folder,
			Expected: expected,
			Observed: g.observed[folder],
			Log:      g.Log(),
		}
	}
	return nil
}

// Log returns a copy of the operation log for the current action.
func (g *Governor) Log() []OperationRecord {
	out := make([]OperationRecord, len(g.log))
	copy(out, g.log)
	return out
}
