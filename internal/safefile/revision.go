package safefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type RevisionFormat string

const (
	// FormatNew is the underscore convention: JOB_DRAWING_NAME..._STAGEREV.pdf
	// e.g. "2506_22_PROPOSED SECTIONS_C02.pdf".
	FormatNew RevisionFormat = "new"
	// FormatOld is the dashed convention: JOB - DRAWINGLETTER - NAME...
	// e.g. "2506 - 04A - PROPOSED PLANS AND ELEVATIONS.pdf".
	FormatOld RevisionFormat = "old"
)

// stageCodes is the fixed stage-code set for the new convention, declared
// most-advanced first: a smaller index outranks a larger one (as-built and
// record stages down to sketch issues).
var stageCodes = []string{"A", "B", "C", "T", "P", "D", "F", "SK"}

// RevisionDescriptor is the parsed identity of one drawing file. Two
// descriptors name the same drawing iff Job and Drawing are string-equal;
// Name and Format need not match.
type RevisionDescriptor struct {
	Job     string
	Drawing string
	Name    string
	Format  RevisionFormat

	// New convention only.
	Stage          string
	RevisionNumber int

	// Old convention only; empty means revision zero, below "A".
	RevisionLetter string
}

// ParseDrawingFilename parses a drawing filename into a descriptor, trying
// the new convention first and then the old. It never touches the
// filesystem. The second return is false when neither grammar matches.
func ParseDrawingFilename(filename string) (RevisionDescriptor, bool) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if desc, ok := parseNewFormat(stem); ok {
		return desc, true
	}
	return parseOldFormat(stem)
}

func parseNewFormat(stem string) (RevisionDescriptor, bool) {
	tokens := strings.Split(stem, "_")
	if len(tokens) < 4 {
		return RevisionDescriptor{}, false
	}
	job, drawing := tokens[0], tokens[1]
	if !allDigits(job) || !allDigits(drawing) {
		return RevisionDescriptor{}, false
	}
	stage, revision, ok := parseStageToken(tokens[len(tokens)-1])
	if !ok {
		return RevisionDescriptor{}, false
	}
	return RevisionDescriptor{
		Job:            job,
		Drawing:        drawing,
		Name:           strings.Join(tokens[2:len(tokens)-1], "_"),
		Format:         FormatNew,
		Stage:          stage,
		RevisionNumber: revision,
	}, true
}

// parseStageToken matches <StageCode><2 digits>, case-insensitively,
// normalizing the stage to uppercase.
func parseStageToken(token string) (string, int, bool) {
	upper := strings.ToUpper(token)
	for _, code := range stageCodes {
		if !strings.HasPrefix(upper, code) {
			continue
		}
		digits := upper[len(code):]
		if len(digits) != 2 || !allDigits(digits) {
			continue
		}
		revision, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		return code, revision, true
	}
	return "", 0, false
}

func parseOldFormat(stem string) (RevisionDescriptor, bool) {
	segments := strings.Split(stem, " - ")
	if len(segments) < 3 {
		return RevisionDescriptor{}, false
	}
	job := segments[0]
	if !allDigits(job) {
		return RevisionDescriptor{}, false
	}
	drawing, letter, ok := parseOldDrawingToken(segments[1])
	if !ok {
		return RevisionDescriptor{}, false
	}
	return RevisionDescriptor{
		Job:            job,
		Drawing:        drawing,
		Name:           strings.Join(segments[2:], " - "),
		Format:         FormatOld,
		RevisionLetter: letter,
	}, true
}

// parseOldDrawingToken matches 2-3 digits optionally followed by exactly one
// revision letter.
func parseOldDrawingToken(token string) (drawing, letter string, ok bool) {
	digits := token
	if len(token) > 0 {
		last := token[len(token)-1]
		if isLetter(last) {
			letter = strings.ToUpper(string(last))
			digits = token[:len(token)-1]
		}
	}
	if len(digits) < 2 || len(digits) > 3 || !allDigits(digits) {
		return "", "", false
	}
	return digits, letter, true
}

// Compare orders two descriptors by recency: positive means b is newer,
// negative means a is newer, zero means equal. A new-convention descriptor
// always outranks an old-convention one, regardless of its own stage or
// revision values; within the new convention stage rank wins (smaller index
// in stageCodes is more advanced) and revision number breaks ties; within
// the old convention the revision letter's alphabet position decides, with
// the empty letter below "A".
func Compare(a, b RevisionDescriptor) int {
	if a.Format != b.Format {
		if a.Format == FormatNew {
			return -1
		}
		return 1
	}
	if a.Format == FormatNew {
		if ra, rb := stageRank(a.Stage), stageRank(b.Stage); ra != rb {
			return ra - rb
		}
		return b.RevisionNumber - a.RevisionNumber
	}
	return letterPosition(b.RevisionLetter) - letterPosition(a.RevisionLetter)
}

func stageRank(stage string) int {
	for i, code := range stageCodes {
		if code == stage {
			return i
		}
	}
	return len(stageCodes)
}

func letterPosition(letter string) int {
	if letter == "" {
		return -1
	}
	return int(letter[0] - 'A')
}

// FolderMatch pairs a parsed drawing file with its path in the scanned
// folder.
type FolderMatch struct {
	Path       string
	Descriptor RevisionDescriptor
}

// FindMatching enumerates the files directly in folder (non-recursive),
// parses each name, and keeps those whose job and drawing numbers equal the
// query as strings: "04" does not match "4".
func FindMatching(folder, job, drawing string) ([]FolderMatch, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	var matches []FolderMatch
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		desc, ok := ParseDrawingFilename(entry.Name())
		if !ok {
			continue
		}
		if desc.Job != job || desc.Drawing != drawing {
			continue
		}
		matches = append(matches, FolderMatch{
			Path:       filepath.Join(folder, entry.Name()),
			Descriptor: desc,
		})
	}
	return matches, nil
}

// IsCurrentDrawingsFolder reports whether a folder name marks the live
// drawing register: its uppercased name must contain both "CURRENT" and
// "DRAWING". This decides whether supersession runs for a destination at
// all.
func IsCurrentDrawingsFolder(folder string) bool {
	upper := strings.ToUpper(filepath.Base(folder))
	return strings.Contains(upper, "CURRENT") && strings.Contains(upper, "DRAWING")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
