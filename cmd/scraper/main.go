// Command scraper runs the broker-branch flow pipeline once from the
// command line: fetch the selected date range for every active branch,
// write daily files, and merge branch histories.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/infrastructure"
	"github.com/minleu94/technical-analysis-sub001/internal/operations"
)

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			if logger != nil {
				logger.Error("scraper panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	now := time.Now()
	fromStr := flag.String("from", now.AddDate(0, 0, -7).Format("2006-01-02"), "start date (YYYY-MM-DD), inclusive")
	toStr := flag.String("to", now.Format("2006-01-02"), "end date (YYYY-MM-DD), inclusive")
	branchesStr := flag.String("branches", "", "comma-separated branch system keys; empty means all active branches")
	delay := flag.Duration("delay", 0, "override the inter-request delay, e.g. 6s")
	force := flag.Bool("force", false, "refetch dates that already have daily files and rebuild merges")
	headless := flag.Bool("headless", true, "run the browser headless")
	flag.Parse()

	from, err := time.Parse("2006-01-02", *fromStr)
	if err != nil {
		fmt.Printf("Error: invalid -from date %q: %v\n", *fromStr, err)
		os.Exit(2)
	}
	to, err := time.Parse("2006-01-02", *toStr)
	if err != nil {
		fmt.Printf("Error: invalid -to date %q: %v\n", *toStr, err)
		os.Exit(2)
	}
	if to.Before(from) {
		fmt.Printf("Error: -to %s precedes -from %s\n", *toStr, *fromStr)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
	}
	cfg.Scraper.Headless = *headless

	paths := cfg.GetPaths()
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Printf("Error: failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	logger, err = infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := operations.RunOptions{
		From:     from,
		To:       to,
		Delay:    *delay,
		ForceAll: *force,
		Progress: func(message string, percent float64) {
			fmt.Printf("[%5.1f%%] %s\n", percent, message)
		},
	}
	if *branchesStr != "" {
		for _, key := range strings.Split(*branchesStr, ",") {
			if key = strings.TrimSpace(key); key != "" {
				opts.BranchKeys = append(opts.BranchKeys, key)
			}
		}
	}

	orch := operations.New(cfg, paths, logger)
	result := orch.Run(ctx, opts)

	fmt.Println(result.Message)
	fmt.Println(result.SummaryLine())
	if !result.Success {
		os.Exit(1)
	}
}
