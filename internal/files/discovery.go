package files

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one discovered file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// isoDatePattern matches daily file names like 2024-03-15.csv.
var isoDatePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.csv$`)

// Discovery enumerates pipeline data files.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a discovery rooted at basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindCSVFiles lists CSV files in dir, sorted by name. Daily files are named
// by ISO date, so name order is date order.
func (d *Discovery) FindCSVFiles(dir string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// FindDailyFiles lists the daily flow files in dir in chronological order,
// with the ISO date parsed out of each name. Files not matching the daily
// naming scheme are ignored.
func (d *Discovery) FindDailyFiles(dir string) ([]DailyFile, error) {
	all, err := d.FindCSVFiles(dir)
	if err != nil {
		return nil, err
	}
	var daily []DailyFile
	for _, f := range all {
		m := isoDatePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		daily = append(daily, DailyFile{FileInfo: f, Date: m[1]})
	}
	return daily, nil
}

// DailyFile is one per-day flow file with its date.
type DailyFile struct {
	FileInfo
	Date string
}

// LatestDate returns the most recent date among the daily files in dir, or
// false when none exist. Used by accumulative runs to pick their start date.
func (d *Discovery) LatestDate(dir string) (time.Time, bool) {
	daily, err := d.FindDailyFiles(dir)
	if err != nil || len(daily) == 0 {
		return time.Time{}, false
	}
	last := daily[len(daily)-1].Date
	t, err := time.Parse("2006-01-02", last)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
