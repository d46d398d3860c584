package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestFindCSVFilesSortedByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2026-08-28.csv")
	writeFile(t, dir, "2026-08-03.csv")
	writeFile(t, dir, "notes.txt")

	d := NewDiscovery(dir)
	found, err := d.FindCSVFiles(dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "2026-08-03.csv", found[0].Name)
	assert.Equal(t, "2026-08-28.csv", found[1].Name)
}

func TestFindCSVFilesMissingDir(t *testing.T) {
	d := NewDiscovery(t.TempDir())
	found, err := d.FindCSVFiles("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindDailyFilesFiltersNonDateNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2026-08-27.csv")
	writeFile(t, dir, "2026-08-28.csv")
	writeFile(t, dir, "merged.csv")
	writeFile(t, dir, "2026-8-1.csv") // not zero-padded, not a daily file

	d := NewDiscovery(dir)
	daily, err := d.FindDailyFiles(dir)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-08-27", daily[0].Date)
	assert.Equal(t, "2026-08-28", daily[1].Date)
}

func TestLatestDate(t *testing.T) {
	dir := t.TempDir()
	d := NewDiscovery(dir)

	_, ok := d.LatestDate(dir)
	assert.False(t, ok)

	writeFile(t, dir, "2026-08-03.csv")
	writeFile(t, dir, "2026-08-28.csv")

	latest, ok := d.LatestDate(dir)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), latest)
}

func TestManagerCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "nested", "dst.csv")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	m := NewManager(nil)
	require.NoError(t, m.CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	assert.True(t, m.FileExists(dst))
}
