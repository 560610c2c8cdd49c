// Command fileuzi-file files a single document into the project tree and
// exits. It shares the daemon's config so routing and safety behave the same.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeWhiteArchitecture/fileuzi/internal/config"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/filing"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/recordstore"
	"github.com/JakeWhiteArchitecture/fileuzi/internal/safefile"
)

func main() {
	configPath := flag.String("config", envOrDefault("FILEUZI_CONFIG", "/etc/fileuzi/fileuzi.toml"), "path to TOML config file")
	source := flag.String("source", "", "file to file into the project tree")
	dest := flag.String("dest", "", "destination folder relative to the project root (default: keyword rules)")
	flag.Parse()

	if strings.TrimSpace(*source) == "" {
		log.Fatalf("source is required (--source)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	name := filepath.Base(*source)
	folder := strings.TrimSpace(*dest)
	if folder == "" {
		folder = folderFromRules(cfg, name)
	}

	records, err := recordstore.BuildFromDSN(cfg.RecordStoreDSN)
	if err != nil {
		log.Fatalf("failed to initialize record store: %v", err)
	}
	defer records.Close()

	action, err := filing.NewAction(filing.ActionOptions{
		Root:    cfg.ProjectRoot,
		Records: records,
		Logger:  log.Default(),
	})
	if err != nil {
		log.Fatalf("failed to initialize filing action: %v", err)
	}

	summary, err := action.Run(context.Background(), []filing.Item{{
		DestinationFolder: folder,
		Name:              name,
		Source:            safefile.FromPath(*source),
	}})
	if err != nil {
		log.Fatalf("filing failed: %v", err)
	}
	if summary.Skipped > 0 {
		fmt.Printf("%s already filed to %s, skipped\n", name, folder)
		return
	}
	fmt.Printf("filed %s to %s\n", name, folder)
	for _, msg := range summary.Messages {
		fmt.Println(msg)
	}
}

func folderFromRules(cfg config.Config, name string) string {
	if cfg.RulesFile == "" {
		return "Unsorted"
	}
	rules, err := filing.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatalf("failed to load filing rules: %v", err)
	}
	if candidates := rules.Match(name); len(candidates) > 0 {
		return candidates[0].Folder
	}
	return "Unsorted"
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}
