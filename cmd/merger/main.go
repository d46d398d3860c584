// Command merger reconciles daily flow files into per-branch merged history
// without touching the network. Useful after manual fixes to daily files or
// to rebuild history with -force.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/exporter"
	"github.com/minleu94/technical-analysis-sub001/internal/infrastructure"
	"github.com/minleu94/technical-analysis-sub001/internal/merge"
	"github.com/minleu94/technical-analysis-sub001/internal/registry"
)

func main() {
	branchesStr := flag.String("branches", "", "comma-separated branch system keys; empty means all active branches")
	force := flag.Bool("force", false, "rebuild merged history from daily files, ignoring existing merges")
	report := flag.Bool("report", false, "also write the combined flow report and per-branch summaries")
	excel := flag.Bool("excel", false, "also write per-branch Excel workbooks")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
	}

	paths := cfg.GetPaths()
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Printf("Error: failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	keys, err := resolveKeys(paths, logger.With("component", "merger"), *branchesStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(keys) == 0 {
		fmt.Println("no branches to merge")
		return
	}

	engine := merge.NewEngine(paths, logger)
	result := engine.MergeAll(keys, *force)

	fmt.Printf("merged %d branches: %d updated, %d failed, %d records\n",
		len(result.Branches), len(result.UpdatedBranches),
		len(result.FailedBranches), result.TotalRecords)

	if *report {
		flows := exporter.NewFlowExporter(paths, logger)
		path, err := flows.ExportCombined(keys, "combined_flows.csv")
		if err != nil {
			fmt.Printf("Error: combined report failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("combined report: %s\n", path)
		for _, key := range keys {
			if _, err := flows.ExportCounterpartySummary(key); err != nil {
				fmt.Printf("Error: summary for %s failed: %v\n", key, err)
				os.Exit(1)
			}
		}
	}

	if *excel {
		workbooks := exporter.NewExcelExporter(paths, logger)
		for _, key := range keys {
			path, err := workbooks.ExportBranchWorkbook(key)
			if err != nil {
				fmt.Printf("Error: workbook for %s failed: %v\n", key, err)
				os.Exit(1)
			}
			fmt.Printf("workbook: %s\n", path)
		}
	}

	if len(result.FailedBranches) > 0 {
		os.Exit(1)
	}
}

// resolveKeys expands the -branches flag, defaulting to every active
// registry entry.
func resolveKeys(paths *config.Paths, logger *slog.Logger, branchesStr string) ([]string, error) {
	if branchesStr != "" {
		var keys []string
		for _, key := range strings.Split(branchesStr, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
		return keys, nil
	}

	reg := registry.New(paths, logger)
	entries, err := reg.Load()
	if err != nil {
		return nil, fmt.Errorf("load branch registry: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.SystemKey)
	}
	return keys, nil
}
