package quotes

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

const utf8BOM = "\xEF\xBB\xBF"

// Store keeps per-code OHLCV history and per-category index history as CSV
// files under the quotes directory. Re-fetching a month is safe: rows are
// deduplicated by date with the newest batch winning.
type Store struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewStore creates a quote store over the configured paths.
func NewStore(paths *config.Paths, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{paths: paths, logger: logger}
}

// AppendQuotes merges a batch of quotes into the history file for one code
// and reports how many dates were new.
func (s *Store) AppendQuotes(code string, batch []domain.DailyQuote) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	history, err := s.ReadQuotes(code)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("read quote history for %s: %w", code, err)
	}

	existing := make(map[string]struct{}, len(history))
	for _, q := range history {
		existing[q.Date] = struct{}{}
	}
	added := 0
	for _, q := range batch {
		if _, ok := existing[q.Date]; !ok {
			added++
		}
	}

	merged := make(map[string]domain.DailyQuote, len(history)+len(batch))
	for _, q := range history {
		merged[q.Date] = q
	}
	for _, q := range batch {
		merged[q.Date] = q
	}

	out := make([]domain.DailyQuote, 0, len(merged))
	for _, q := range merged {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	if err := s.writeQuotes(code, out); err != nil {
		return 0, err
	}

	s.logger.Debug("quote history updated",
		"code", code, "added", added, "total", len(out))
	return added, nil
}

// ReadQuotes loads the full OHLCV history for one code.
func (s *Store) ReadQuotes(code string) ([]domain.DailyQuote, error) {
	f, err := os.Open(s.paths.QuoteCSVPath(code))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse quote history: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	quotes := make([]domain.DailyQuote, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 7 {
			continue
		}
		volume, _ := strconv.ParseInt(row[6], 10, 64)
		quotes = append(quotes, domain.DailyQuote{
			Date:   strings.TrimPrefix(row[0], utf8BOM),
			Code:   row[1],
			Open:   parsePrice(row[2]),
			High:   parsePrice(row[3]),
			Low:    parsePrice(row[4]),
			Close:  parsePrice(row[5]),
			Volume: volume,
		})
	}
	return quotes, nil
}

func (s *Store) writeQuotes(code string, quotes []domain.DailyQuote) error {
	path := s.paths.QuoteCSVPath(code)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create quotes directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create quote file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(domain.QuoteColumns); err != nil {
		return err
	}
	for _, q := range quotes {
		row := []string{
			q.Date,
			q.Code,
			formatPrice(q.Open),
			formatPrice(q.High),
			formatPrice(q.Low),
			formatPrice(q.Close),
			strconv.FormatInt(q.Volume, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// AppendIndices merges index observations into their per-category history
// files, deduplicated by date with the newest batch winning.
func (s *Store) AppendIndices(values []domain.IndexValue) error {
	byCategory := make(map[string][]domain.IndexValue)
	for _, v := range values {
		byCategory[v.Category] = append(byCategory[v.Category], v)
	}

	for category, batch := range byCategory {
		history, err := s.readIndices(category)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read index history for %s: %w", category, err)
		}

		merged := make(map[string]domain.IndexValue, len(history)+len(batch))
		for _, v := range history {
			merged[v.Date] = v
		}
		for _, v := range batch {
			merged[v.Date] = v
		}

		out := make([]domain.IndexValue, 0, len(merged))
		for _, v := range merged {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

		if err := s.writeIndices(category, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) readIndices(category string) ([]domain.IndexValue, error) {
	f, err := os.Open(s.paths.IndexCSVPath(category))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse index history: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	values := make([]domain.IndexValue, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 4 {
			continue
		}
		values = append(values, domain.IndexValue{
			Date:     strings.TrimPrefix(row[0], utf8BOM),
			Category: row[1],
			Value:    parsePrice(row[2]),
			Change:   parsePrice(row[3]),
		})
	}
	return values, nil
}

func (s *Store) writeIndices(category string, values []domain.IndexValue) error {
	path := s.paths.IndexCSVPath(category)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(domain.IndexColumns); err != nil {
		return err
	}
	for _, v := range values {
		row := []string{
			v.Date,
			v.Category,
			formatPrice(v.Value),
			formatPrice(v.Change),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
