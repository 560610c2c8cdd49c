package filing

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeWhiteArchitecture/fileuzi/internal/recordstore"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/safefile"
)

// Item is one file to be placed by a filing action.
type Item struct {
	// DestinationFolder is absolute or relative to the project root.
	DestinationFolder string
	// Name is the filename to file as.
	Name string
	// Source is the content, a path to copy from or raw bytes.
	Source safefile.ContentSource
}

type ActionOptions struct {
	Root     string
	Governor *safefile.Governor
	Records  recordstore.Store
	Events   *Broadcaster
	Logger   *log.Logger
}

// Action runs filing actions against one project tree. Each Run is a single
// filing action in the one-at-a-time model: the governor is reset at entry
// with the expected per-folder write counts, and every write goes through
// the safe replace engine. Runs are serialized internally, so concurrent
// callers (the inbox watcher fires from independent goroutines) cannot
// clobber each other's governor counters.
type Action struct {
	mu       sync.Mutex
	root     string
	governor *safefile.Governor
	records  recordstore.Store
	events   *Broadcaster
	logger   *log.Logger
	engine   *safefile.Engine
}

func NewAction(opts ActionOptions) (*Action, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: project root is required", safefile.ErrInvalidInput)
	}
	if opts.Governor == nil {
		opts.Governor = safefile.NewGovernor()
	}
	if opts.Records == nil {
		opts.Records = recordstore.NewMemoryStore()
	}
	if opts.Events == nil {
		opts.Events = NewBroadcaster()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Action{
		root:     opts.Root,
		governor: opts.Governor,
		records:  opts.Records,
		events:   opts.Events,
		logger:   opts.Logger,
		engine:   safefile.NewEngine(opts.Root, opts.Governor, opts.Logger),
	}, nil
}

type Summary struct {
	Filed      int
	Skipped    int
	Superseded int
	Messages   []string
}

// Run files the given items as one action. Policy violations (path jail,
// circuit breaker) and verification failures abort the remaining items;
// duplicate items and unparsable drawing names are reported in the summary
// and never block the action.
func (a *Action) Run(ctx context.Context, items []Item) (Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var summary Summary

	expected := map[string]int{}
	folders := make([]string, len(items))
	for i, item := range items {
		folder, err := a.resolveFolder(item.DestinationFolder)
		if err != nil {
			return summary, err
		}
		folders[i] = folder
		expected[folder]++
	}
	a.governor.Reset(expected)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		folder := folders[i]
		name := filepath.Base(item.Name)
		destPath := filepath.Join(folder, name)

		fingerprint, err := a.fingerprintFor(item, destPath)
		if err != nil {
			return summary, fmt.Errorf("fingerprint %s: %w", name, err)
		}
		seen, err := a.records.WasFiled(ctx, fingerprint)
		if err != nil {
			return summary, fmt.Errorf("record store lookup for %s: %w", name, err)
		}
		if seen {
			a.logger.Printf("INFO skipping %s, already filed to %s", name, folder)
			a.events.Publish(Event{Kind: EventSkipped, Path: destPath})
			summary.Skipped++
			continue
		}

		if err := a.ensureFolder(folder); err != nil {
			return summary, err
		}

		if safefile.IsCurrentDrawingsFolder(folder) {
			result, err := a.engine.Supersede(folder, destPath)
			if err != nil {
				return summary, err
			}
			summary.Superseded += result.Superseded
			if result.Message != "" {
				summary.Messages = append(summary.Messages, result.Message)
				kind := EventSuperseded
				if result.Superseded == 0 {
					kind = EventWarning
				}
				a.events.Publish(Event{Kind: kind, Path: destPath, Detail: result.Message})
			}
		}

		replaceResult, err := a.engine.Replace(destPath, item.Source)
		if err != nil {
			a.events.Publish(Event{Kind: EventWarning, Path: destPath, Detail: err.Error()})
			return summary, err
		}
		if err := a.records.MarkFiled(ctx, recordstore.FiledRecord{
			Fingerprint:     fingerprint,
			SourceName:      name,
			DestinationPath: destPath,
		}); err != nil {
			return summary, fmt.Errorf("record filing of %s: %w", name, err)
		}
		summary.Filed++
		detail := string(replaceResult.Outcome)
		if replaceResult.ArchivePath != "" {
			detail = fmt.Sprintf("%s, archived %s", replaceResult.Outcome, replaceResult.ArchivePath)
		}
		a.events.Publish(Event{Kind: EventFiled, Path: destPath, Detail: detail})
	}
	return summary, nil
}

// resolveFolder jails the destination folder and returns its resolved form,
// which is also the key the governor counts against.
func (a *Action) resolveFolder(folder string) (string, error) {
	if !filepath.IsAbs(folder) {
		folder = filepath.Join(a.root, folder)
	}
	return safefile.ValidateInRoot(folder, a.root)
}

func (a *Action) ensureFolder(folder string) error {
	if info, err := os.Stat(folder); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: destination %s exists and is not a directory", safefile.ErrInvalidInput, folder)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", folder, err)
	}
	if err := a.governor.Record(safefile.OpMkdir, "", folder); err != nil {
		return err
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", folder, err)
	}
	a.logger.Printf("INFO mkdir %s", folder)
	return nil
}

// fingerprintFor keys dedup on content plus destination, so the same
// document can still be filed into two different folders deliberately.
func (a *Action) fingerprintFor(item Item, destPath string) (string, error) {
	reader, err := item.Source.Open()
	if err != nil {
		return "", err
	}
	defer reader.Close()
	contentHash, err := recordstore.Fingerprint(reader)
	if err != nil {
		return "", err
	}
	return contentHash + ":" + destPath, nil
}
