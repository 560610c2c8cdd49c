package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/JakeWhiteArchitecture/fileuzi/internal/config"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/filing"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/httpapi"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/mailparse"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/recordstore"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/safefile"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/watch"
)

const fallbackFolder = "Unsorted"

func main() {
	configPath := flag.String("config", envOrDefault("FILEUZI_CONFIG", "/etc/fileuzi/fileuzi.toml"), "path to TOML config file")
	once := flag.Bool("once", false, "process the inbox once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var rules *filing.RuleSet
	if cfg.RulesFile != "" {
		rules, err = filing.LoadRules(cfg.RulesFile)
		if err != nil {
			log.Fatalf("failed to load filing rules: %v", err)
		}
		log.Printf("loaded %d filing rules from %s", rules.Len(), cfg.RulesFile)
	}

	records, err := recordstore.BuildFromDSN(cfg.RecordStoreDSN)
	if err != nil {
		log.Fatalf("failed to initialize record store: %v", err)
	}
	defer records.Close()

	events := filing.NewBroadcaster()
	action, err := filing.NewAction(filing.ActionOptions{
		Root:    cfg.ProjectRoot,
		Records: records,
		Events:  events,
		Logger:  log.Default(),
	})
	if err != nil {
		log.Fatalf("failed to initialize filing action: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		api := httpapi.NewServerWithConfig(events, httpapi.ServerConfig{Token: cfg.HTTPToken})
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api}
		go func() {
			log.Printf("api listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("api server stopped: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	if cfg.InboxDir == "" {
		log.Fatalf("inbox_dir is required to run the daemon")
	}

	handle := func(path string) {
		if err := fileOne(rootCtx, action, rules, path); err != nil {
			log.Printf("failed to file %s: %v", path, err)
			return
		}
		if err := os.Remove(path); err != nil {
			log.Printf("WARN filed %s but could not remove it from the inbox: %v", path, err)
		}
	}

	// Drain anything already waiting before watching for new arrivals.
	drainInbox(cfg.InboxDir, handle)
	if *once {
		return
	}

	watcher, err := watch.New(watch.Options{
		Dir:          cfg.InboxDir,
		SettleWindow: cfg.SettleWindow,
		Logger:       log.Default(),
	}, handle)
	if err != nil {
		log.Fatalf("failed to start inbox watcher: %v", err)
	}
	defer watcher.Close()

	log.Printf("watching inbox %s, filing into %s", cfg.InboxDir, cfg.ProjectRoot)
	<-rootCtx.Done()
	log.Printf("fileuzi stopping: %v", rootCtx.Err())
}

func drainInbox(dir string, handle func(path string)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("WARN cannot read inbox %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		handle(filepath.Join(dir, entry.Name()))
	}
}

// fileOne turns an inbox file into filing items and runs them. Emails are
// unpacked into their attachments; anything else is filed as-is.
func fileOne(ctx context.Context, action *filing.Action, rules *filing.RuleSet, path string) error {
	items, err := itemsFor(rules, path)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Printf("nothing to file from %s", path)
		return nil
	}
	summary, err := action.Run(ctx, items)
	if err != nil {
		return err
	}
	log.Printf("filed %s: %d filed, %d duplicate(s) skipped, %d superseded", path, summary.Filed, summary.Skipped, summary.Superseded)
	for _, msg := range summary.Messages {
		log.Printf("  %s", msg)
	}
	return nil
}

func itemsFor(rules *filing.RuleSet, path string) ([]filing.Item, error) {
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		msg, err := mailparse.ParseFile(path)
		if err != nil {
			return nil, err
		}
		var items []filing.Item
		for _, att := range msg.Attachments {
			items = append(items, filing.Item{
				DestinationFolder: destinationFor(rules, att.Filename),
				Name:              att.Filename,
				Source:            safefile.FromBytes(att.Data),
			})
		}
		if len(items) == 0 {
			log.Printf("email %q has no attachments, skipping", msg.Subject)
		}
		return items, nil
	}
	name := filepath.Base(path)
	return []filing.Item{{
		DestinationFolder: destinationFor(rules, name),
		Name:              name,
		Source:            safefile.FromPath(path),
	}}, nil
}

func destinationFor(rules *filing.RuleSet, name string) string {
	if rules != nil {
		if candidates := rules.Match(name); len(candidates) > 0 {
			return candidates[0].Folder
		}
	}
	return fallbackFolder
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}
