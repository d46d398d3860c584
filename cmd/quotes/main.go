// Command quotes pulls daily OHLCV history and index closes from the TWSE
// exchange reports into the local quote store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/infrastructure"
	"github.com/minleu94/technical-analysis-sub001/internal/quotes"
)

func main() {
	codesStr := flag.String("codes", "", "comma-separated stock codes, e.g. 2330,0050")
	monthStr := flag.String("month", time.Now().Format("2006-01"), "month to fetch (YYYY-MM)")
	indices := flag.Bool("indices", false, "also fetch index closes for each weekday of the month")
	flag.Parse()

	month, err := time.Parse("2006-01", *monthStr)
	if err != nil {
		fmt.Printf("Error: invalid -month %q: %v\n", *monthStr, err)
		os.Exit(2)
	}

	var codes []string
	for _, code := range strings.Split(*codesStr, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 && !*indices {
		fmt.Println("nothing to do: pass -codes and/or -indices")
		os.Exit(2)
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := quotes.NewClient(cfg.Quotes, logger)
	store := quotes.NewStore(paths, logger)
	collector := quotes.NewCollector(client, store, logger)

	if len(codes) > 0 {
		result, err := collector.CollectMonth(ctx, codes, month)
		if err != nil {
			fmt.Printf("Error: quote collection aborted: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("quotes: %d codes, %d failed, %d rows added\n",
			result.Codes, len(result.Failed), result.RowsAdded)
		if len(result.Failed) > 0 {
			fmt.Printf("failed codes: %s\n", strings.Join(result.Failed, ","))
		}
	}

	if *indices {
		failed := 0
		for day := month; day.Month() == month.Month(); day = day.AddDate(0, 0, 1) {
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			if day.After(time.Now()) {
				break
			}
			if err := collector.CollectIndices(ctx, day); err != nil {
				if ctx.Err() != nil {
					fmt.Println("Error: interrupted")
					os.Exit(1)
				}
				fmt.Printf("Warning: indices for %s failed: %v\n", day.Format("2006-01-02"), err)
				failed++
			}
		}
		fmt.Printf("indices: done, %d days failed\n", failed)
	}
}
