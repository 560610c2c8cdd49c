package safefile

import (
	"errors"
	"fmt"
	"path/filepath"
)

// SupersedeResult reports the outcome of one supersession pass. OK stays
// true even when nothing could be archived for per-file reasons; only policy
// violations fail the pass outright.
type SupersedeResult struct {
	OK         bool
	Message    string
	Superseded int
}

// Supersede finds every older revision of the incoming drawing already in
// targetFolder and vacates each into the Superseded subfolder. The incoming
// file itself is excluded by path identity.
//
// An unparsable incoming filename is not an error: filing proceeds and the
// message advises manual review. An existing strictly newer revision is
// logged as an anomaly and left alone. Path-jail and circuit-breaker errors
// propagate immediately; any other per-file failure is logged and stops the
// remaining matches for this drawing, keeping what was already archived.
func (e *Engine) Supersede(targetFolder, newFilePath string) (SupersedeResult, error) {
	newName := filepath.Base(newFilePath)
	incoming, ok := ParseDrawingFilename(newName)
	if !ok {
		e.logf("WARN cannot parse drawing name %q, skipping supersession", newName)
		return SupersedeResult{
			OK:      true,
			Message: fmt.Sprintf("could not determine revision of %q; review %s manually", newName, targetFolder),
		}, nil
	}

	matches, err := FindMatching(targetFolder, incoming.Job, incoming.Drawing)
	if err != nil {
		return SupersedeResult{}, err
	}
	newAbs, err := filepath.Abs(newFilePath)
	if err != nil {
		return SupersedeResult{}, err
	}

	var older []FolderMatch
	for _, match := range matches {
		matchAbs, err := filepath.Abs(match.Path)
		if err == nil && matchAbs == newAbs {
			continue
		}
		switch cmp := Compare(match.Descriptor, incoming); {
		case cmp > 0:
			older = append(older, match)
		case cmp < 0:
			e.logf("WARN incoming %s looks older than existing %s, not archiving", newName, match.Path)
		}
	}

	archived := 0
	for _, match := range older {
		if _, err := e.Archive(match.Path); err != nil {
			if errors.Is(err, ErrPathJailViolation) || errors.Is(err, ErrCircuitBreakerTripped) {
				return SupersedeResult{}, err
			}
			e.logf("WARN archiving %s failed, stopping supersession for drawing %s/%s: %v",
				match.Path, incoming.Job, incoming.Drawing, err)
			break
		}
		archived++
	}

	result := SupersedeResult{OK: true, Superseded: archived}
	if archived > 0 {
		result.Message = fmt.Sprintf("Superseded %d older revision(s) → %s/", archived, SupersededFolderName)
	}
	return result, nil
}
