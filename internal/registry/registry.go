package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// ErrRegistryMissing indicates the registry file does not exist. Callers
// treat zero branches as "nothing to do", not as a fatal condition.
var ErrRegistryMissing = errors.New("branch registry file not found")

// maxBackups caps how many timestamped registry backups are retained.
const maxBackups = 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Registry loads and repairs the branch registry file.
type Registry struct {
	paths  *config.Paths
	logger *slog.Logger
}

// New creates a registry bound to the configured paths.
func New(paths *config.Paths, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{paths: paths, logger: logger}
}

// Load returns the active branch entries, self-repairing the file when
// corruption is detected. A repair rewrites the registry after backing up the
// previous copy.
func (r *Registry) Load() ([]domain.BranchEntry, error) {
	entries, repaired, err := r.loadAll()
	if err != nil {
		return nil, err
	}

	if repaired {
		if err := r.rewrite(entries); err != nil {
			// The in-memory entries are already repaired; a failed rewrite
			// only means the next run repeats the repair.
			r.logger.Warn("failed to persist repaired registry", slog.String("error", err.Error()))
		}
	}

	active := make([]domain.BranchEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsActive {
			active = append(active, e)
		}
	}
	r.logger.Info("branch registry loaded",
		slog.Int("total", len(entries)),
		slog.Int("active", len(active)),
		slog.Bool("repaired", repaired))
	return active, nil
}

// LoadAll returns every entry regardless of the active flag.
func (r *Registry) LoadAll() ([]domain.BranchEntry, error) {
	entries, _, err := r.loadAll()
	return entries, err
}

func (r *Registry) loadAll() (entries []domain.BranchEntry, repaired bool, err error) {
	file, err := os.Open(r.paths.RegistryFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, ErrRegistryMissing
		}
		return nil, false, fmt.Errorf("failed to open registry: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(stripBOM(file))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read registry header: %w", err)
	}
	col := columnIndex(header)
	for _, required := range domain.RegistryColumns[:7] {
		if _, ok := col[required]; !ok {
			return nil, false, fmt.Errorf("registry missing required column %q", required)
		}
	}

	line := 1
	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			r.logger.Warn("skipping unreadable registry row",
				slog.Int("line", line), slog.String("error", readErr.Error()))
			continue
		}

		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		entry := domain.BranchEntry{
			SystemKey:   cell("branch_system_key"),
			BrokerCode:  cell("branch_broker_code"),
			BranchCode:  cell("branch_code"),
			DisplayName: cell("branch_display_name"),
			URLParamA:   cell("url_param_a"),
			URLParamB:   cell("url_param_b"),
			IsActive:    parseBool(cell("is_active")),
			CreatedAt:   cell("created_at"),
			UpdatedAt:   cell("updated_at"),
		}
		if entry.SystemKey == "" {
			continue
		}

		if fixed, changed := repairCoercedCode(entry.URLParamB); changed {
			r.logger.Warn("repaired numerically coerced url_param_b",
				slog.String("system_key", entry.SystemKey),
				slog.String("was", entry.URLParamB),
				slog.String("now", fixed))
			entry.URLParamB = fixed
			repaired = true
		}

		if HasMojibake(entry.DisplayName) {
			fixed, ok := RepairMojibake(entry.DisplayName)
			if ok {
				r.logger.Warn("repaired mis-decoded display name",
					slog.String("system_key", entry.SystemKey),
					slog.String("now", fixed))
				entry.DisplayName = fixed
				repaired = true
			} else {
				r.logger.Warn("display name still corrupted after repair attempt, leaving as-is",
					slog.String("system_key", entry.SystemKey))
			}
		}

		entries = append(entries, entry)
	}

	return entries, repaired, nil
}

// rewrite backs up the current registry file and persists the given entries.
func (r *Registry) rewrite(entries []domain.BranchEntry) error {
	if err := r.backup(); err != nil {
		return err
	}
	return r.Save(entries)
}

// Save writes all entries to the registry file (UTF-8 with BOM).
func (r *Registry) Save(entries []domain.BranchEntry) error {
	if err := os.MkdirAll(filepath.Dir(r.paths.RegistryFile), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	file, err := os.Create(r.paths.RegistryFile)
	if err != nil {
		return fmt.Errorf("failed to create registry file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(domain.RegistryColumns); err != nil {
		return fmt.Errorf("failed to write registry header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.SystemKey,
			e.BrokerCode,
			e.BranchCode,
			e.DisplayName,
			e.URLParamA,
			e.URLParamB,
			formatBool(e.IsActive),
			e.CreatedAt,
			e.UpdatedAt,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write registry row for %s: %w", e.SystemKey, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (r *Registry) backup() error {
	src, err := os.ReadFile(r.paths.RegistryFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read registry for backup: %w", err)
	}

	dir := r.paths.RegistryBackupDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("registry_%s.csv", time.Now().Format("20060102_150405"))
	if err := os.WriteFile(filepath.Join(dir, name), src, 0o644); err != nil {
		return fmt.Errorf("failed to write registry backup: %w", err)
	}
	r.logger.Info("registry backed up", slog.String("backup", name))

	return pruneBackups(dir, "registry_", maxBackups)
}

// pruneBackups deletes the oldest backups beyond keep.
func pruneBackups(dir, prefix string, keep int) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, de := range dirEntries {
		if !de.IsDir() && strings.HasPrefix(de.Name(), prefix) {
			names = append(names, de.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	sort.Strings(names) // timestamped names sort chronologically
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func columnIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	return col
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// stripBOM returns a reader with a leading UTF-8 BOM removed, if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, _ := io.ReadFull(r, buf)
	if n == 3 && buf[0] == utf8BOM[0] && buf[1] == utf8BOM[1] && buf[2] == utf8BOM[2] {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
