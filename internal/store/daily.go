// Package store persists one CSV per (branch, date) as the atomic unit of
// scraped truth. File existence is the idempotency marker: a present file
// means the fetch already happened and is skipped on re-runs unless forced.
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DailyStore writes and reads per-day flow files.
type DailyStore struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewDailyStore creates a store bound to the configured paths.
func NewDailyStore(paths *config.Paths, logger *slog.Logger) *DailyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyStore{paths: paths, logger: logger}
}

// Exists reports whether the daily file for (branch, date) is present.
func (s *DailyStore) Exists(systemKey, isoDate string) bool {
	return config.FileExists(s.paths.DailyCSVPath(systemKey, isoDate))
}

// WriteDaily overwrites the daily file for (branch, date) with the full
// record set. Plain overwrite, not atomic rename: each file is small and
// re-fetchable, so a torn write is repaired by the next run.
func (s *DailyStore) WriteDaily(systemKey, isoDate string, records []domain.DailyRecord) error {
	path := s.paths.DailyCSVPath(systemKey, isoDate)
	if err := WriteFlowCSV(path, records); err != nil {
		return err
	}
	s.logger.Info("daily file written",
		slog.String("branch", systemKey),
		slog.String("date", isoDate),
		slog.Int("records", len(records)))
	return nil
}

// ReadDaily loads one daily file.
func (s *DailyStore) ReadDaily(systemKey, isoDate string) ([]domain.DailyRecord, error) {
	return ReadFlowCSV(s.paths.DailyCSVPath(systemKey, isoDate))
}

// WriteFlowCSV writes flow records in the shared column layout
// (UTF-8 with BOM, FlowColumns header).
func WriteFlowCSV(path string, records []domain.DailyRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(domain.FlowColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range records {
		if err := writer.Write(rec.CSVRow()); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFlowCSV loads flow records from a daily or merged file. It returns an
// error when any required column is missing, so callers can treat the file
// as invalid rather than half-reading it.
func ReadFlowCSV(path string) ([]domain.DailyRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(stripBOM(file))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range domain.FlowColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s missing required column %q", path, required)
		}
	}

	var records []domain.DailyRecord
	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read row of %s: %w", path, readErr)
		}
		cell := func(name string) string {
			i := col[name]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}
		records = append(records, domain.DailyRecord{
			Date:                   cell("date"),
			TradeType:              domain.TradeType(cell("trade_type")),
			BranchSystemKey:        cell("branch_system_key"),
			BranchBrokerCode:       cell("branch_broker_code"),
			BranchCode:             cell("branch_code"),
			BranchDisplayName:      cell("branch_display_name"),
			CounterpartyBrokerCode: cell("counterparty_broker_code"),
			CounterpartyBrokerName: cell("counterparty_broker_name"),
			BuyQty:                 parseFloat(cell("buy_qty")),
			SellQty:                parseFloat(cell("sell_qty")),
			NetQty:                 parseFloat(cell("net_qty")),
		})
	}
	return records, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, _ := io.ReadFull(r, buf)
	if n == 3 && buf[0] == utf8BOM[0] && buf[1] == utf8BOM[1] && buf[2] == utf8BOM[2] {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
