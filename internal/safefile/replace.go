package safefile

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SupersededFolderName is the flat archive subfolder created next to any
// file that gets replaced or superseded.
const SupersededFolderName = "Superseded"

// ContentSource is the new content for a replace: either a path to copy from
// or raw bytes to write. Construct with FromPath or FromBytes; the zero value
// is invalid.
type ContentSource struct {
	path      string
	data      []byte
	fromBytes bool
}

func FromPath(path string) ContentSource {
	return ContentSource{path: path}
}

func FromBytes(data []byte) ContentSource {
	return ContentSource{data: data, fromBytes: true}
}

func (s ContentSource) valid() bool {
	return s.fromBytes || strings.TrimSpace(s.path) != ""
}

// Describe names the source in audit lines and operation records.
func (s ContentSource) Describe() string {
	if s.fromBytes {
		return fmt.Sprintf("<%d bytes>", len(s.data))
	}
	return s.path
}

// Open returns a reader over the new content.
func (s ContentSource) Open() (io.ReadCloser, error) {
	if s.fromBytes {
		return io.NopCloser(bytes.NewReader(s.data)), nil
	}
	return os.Open(s.path)
}

type ReplaceOutcome string

const (
	// OutcomeFreshWrite means no file existed at the target, so the content
	// was written directly and no archive was created.
	OutcomeFreshWrite ReplaceOutcome = "fresh_write"
	// OutcomeReplaced means the old file was archived, verified, and then
	// overwritten with the new content.
	OutcomeReplaced ReplaceOutcome = "replaced"
	// OutcomeRestoredAfterFailure means the new write failed or produced an
	// empty file and the original was restored from its verified archive.
	// Replace also returns a non-nil error in this case.
	OutcomeRestoredAfterFailure ReplaceOutcome = "restored_after_failure"
)

type ReplaceResult struct {
	Outcome     ReplaceOutcome
	ArchivePath string
}

// Engine performs jail-checked, governor-counted, verify-before-trust file
// replacement within one project root. It holds no filesystem state between
// calls; every call reads the tree fresh.
type Engine struct {
	root     string
	governor *Governor
	logger   *log.Logger
}

func NewEngine(root string, governor *Governor, logger *log.Logger) *Engine {
	if governor == nil {
		governor = NewGovernor()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{root: root, governor: governor, logger: logger}
}

// Replace archives the file at oldPath into its folder's Superseded
// subfolder, verifies the archive byte-for-byte by size, writes the new
// content, verifies the write, and restores from the archive if the write
// fails or comes out empty. The old file is never deleted, and the archive
// is never trusted, until size verification succeeds.
//
// When oldPath does not exist the content is written directly and the result
// is OutcomeFreshWrite with no archive path.
func (e *Engine) Replace(oldPath string, src ContentSource) (ReplaceResult, error) {
	if !src.valid() {
		return ReplaceResult{}, fmt.Errorf("%w: content source must be a path or bytes", ErrInvalidInput)
	}

	oldInfo, statErr := os.Stat(oldPath)
	if statErr != nil {
		if !os.IsNotExist(statErr) {
			return ReplaceResult{}, fmt.Errorf("stat %s: %w", oldPath, statErr)
		}
		resolved, err := ValidateInRoot(oldPath, e.root)
		if err != nil {
			return ReplaceResult{}, err
		}
		if err := e.governor.Record(OpWrite, src.Describe(), resolved); err != nil {
			return ReplaceResult{}, err
		}
		if err := e.writeContent(resolved, src); err != nil {
			return ReplaceResult{}, err
		}
		e.logf("INFO fresh write %s <- %s", resolved, src.Describe())
		return ReplaceResult{Outcome: OutcomeFreshWrite}, nil
	}

	resolvedOld, archivePath, err := e.prepareArchiveSlot(oldPath)
	if err != nil {
		return ReplaceResult{}, err
	}
	if err := e.copyVerified(resolvedOld, archivePath, oldInfo.Size()); err != nil {
		return ReplaceResult{}, err
	}

	if err := e.governor.Record(OpWrite, src.Describe(), resolvedOld); err != nil {
		return ReplaceResult{}, err
	}
	if writeErr := e.writeContent(resolvedOld, src); writeErr != nil {
		info, statErr := os.Stat(resolvedOld)
		if statErr != nil || info.Size() == 0 {
			if restoreErr := copyFile(archivePath, resolvedOld); restoreErr != nil {
				return ReplaceResult{}, fmt.Errorf("write %s failed (%v) and restore from %s failed: %w",
					resolvedOld, writeErr, archivePath, restoreErr)
			}
			e.logf("WARN write %s failed, restored from backup %s", resolvedOld, archivePath)
			return ReplaceResult{Outcome: OutcomeRestoredAfterFailure, ArchivePath: archivePath},
				fmt.Errorf("write %s failed, restored from backup %s: %w", resolvedOld, archivePath, writeErr)
		}
		return ReplaceResult{}, writeErr
	}

	info, err := os.Stat(resolvedOld)
	if err != nil || info.Size() == 0 {
		if restoreErr := copyFile(archivePath, resolvedOld); restoreErr != nil {
			return ReplaceResult{}, fmt.Errorf("empty write to %s and restore from %s failed: %w",
				resolvedOld, archivePath, restoreErr)
		}
		e.logf("WARN empty write to %s, restored from backup %s", resolvedOld, archivePath)
		return ReplaceResult{Outcome: OutcomeRestoredAfterFailure, ArchivePath: archivePath},
			&VerificationError{Path: resolvedOld, Expected: oldInfo.Size(), Actual: 0,
				Detail: "new file write failed, restored from backup"}
	}

	e.logf("INFO replaced %s (archive %s)", resolvedOld, archivePath)
	return ReplaceResult{Outcome: OutcomeReplaced, ArchivePath: archivePath}, nil
}

// Archive vacates oldPath into its folder's Superseded subfolder: copy,
// verify by size, then delete the original. Used when a newer revision of the
// same drawing already exists (or is about to be written) elsewhere in the
// folder, so no new content lands in the old slot.
func (e *Engine) Archive(oldPath string) (string, error) {
	oldInfo, err := os.Stat(oldPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", oldPath, err)
	}
	resolvedOld, archivePath, err := e.prepareArchiveSlot(oldPath)
	if err != nil {
		return "", err
	}
	if err := e.copyVerified(resolvedOld, archivePath, oldInfo.Size()); err != nil {
		return "", err
	}
	if err := e.governor.Record(OpMove, resolvedOld, archivePath); err != nil {
		return "", err
	}
	if err := os.Remove(resolvedOld); err != nil {
		return "", fmt.Errorf("remove superseded original %s: %w", resolvedOld, err)
	}
	e.logf("INFO archived %s -> %s", resolvedOld, archivePath)
	return archivePath, nil
}

// prepareArchiveSlot validates the old path, the Superseded folder, and the
// archive destination against the jail, then creates the folder if absent and
// picks a non-colliding archive name. All validation precedes any mkdir;
// nothing is copied yet.
func (e *Engine) prepareArchiveSlot(oldPath string) (resolvedOld, archivePath string, err error) {
	supersededDir := filepath.Join(filepath.Dir(oldPath), SupersededFolderName)
	supersededPath := filepath.Join(supersededDir, filepath.Base(oldPath))

	resolvedDir, err := ValidateInRoot(supersededDir, e.root)
	if err != nil {
		return "", "", err
	}
	resolvedOld, err = ValidateInRoot(oldPath, e.root)
	if err != nil {
		return "", "", err
	}

	// A same-named file in the archive slot blocks filing loudly; it is
	// never deleted or renamed automatically. Checked before resolving the
	// archive path, which cannot resolve through a non-directory.
	needDir := false
	if info, statErr := os.Stat(resolvedDir); statErr == nil {
		if !info.IsDir() {
			return "", "", fmt.Errorf("%w: %s exists and is not a directory", ErrArchiveBlocked, resolvedDir)
		}
	} else if !os.IsNotExist(statErr) {
		return "", "", fmt.Errorf("stat %s: %w", resolvedDir, statErr)
	} else {
		needDir = true
	}

	// All three jail validations complete before anything is created.
	resolvedArchive, err := ValidateInRoot(supersededPath, e.root)
	if err != nil {
		return "", "", err
	}

	if needDir {
		if err := e.governor.Record(OpMkdir, "", resolvedDir); err != nil {
			return "", "", err
		}
		if err := os.Mkdir(resolvedDir, 0o755); err != nil {
			return "", "", fmt.Errorf("create %s: %w", resolvedDir, err)
		}
		e.logf("INFO mkdir %s", resolvedDir)
	}
	if _, statErr := os.Stat(resolvedArchive); statErr == nil {
		renamed := filepath.Join(resolvedDir, timestampedName(filepath.Base(oldPath), time.Now()))
		resolvedArchive, err = ValidateInRoot(renamed, e.root)
		if err != nil {
			return "", "", err
		}
	} else if !os.IsNotExist(statErr) {
		return "", "", fmt.Errorf("stat %s: %w", resolvedArchive, statErr)
	}
	return resolvedOld, resolvedArchive, nil
}

// copyVerified copies source to archive, records the COPY, and compares byte
// sizes. On mismatch the bad archive is deleted and the original is left
// untouched.
func (e *Engine) copyVerified(source, archive string, wantSize int64) error {
	if err := e.governor.Record(OpCopy, source, archive); err != nil {
		return err
	}
	if err := copyFile(source, archive); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", source, archive, err)
	}
	info, err := os.Stat(archive)
	if err != nil {
		return fmt.Errorf("stat archive %s: %w", archive, err)
	}
	if info.Size() != wantSize {
		_ = os.Remove(archive)
		return &VerificationError{Path: archive, Expected: wantSize, Actual: info.Size(),
			Detail: "archive copy size mismatch, archive removed"}
	}
	e.logf("INFO copy %s -> %s (%d bytes verified)", source, archive, wantSize)
	return nil
}

func (e *Engine) writeContent(dest string, src ContentSource) error {
	if src.fromBytes {
		return os.WriteFile(dest, src.data, 0o644)
	}
	return copyFile(src.path, dest)
}

func (e *Engine) logf(format string, args ...any) {
	e.logger.Printf(format, args...)
}

// timestampedName appends a second-resolution timestamp plus the nanosecond
// remainder before the extension, so repeated archives of the same filename
// never collide.
func timestampedName(name string, now time.Time) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s-%09d%s", stem, now.Format("20060102-150405"), now.Nanosecond(), ext)
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
