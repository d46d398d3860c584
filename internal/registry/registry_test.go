package registry

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

func newTestRegistry(t *testing.T) (*Registry, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())
	return New(paths, nil), paths
}

func sampleEntries() []domain.BranchEntry {
	return []domain.BranchEntry{
		{
			SystemKey:   "9800-fubon-taipei",
			BrokerCode:  "9800",
			BranchCode:  "9801",
			DisplayName: "富邦台北",
			URLParamA:   "9800",
			URLParamB:   "0039004100390050",
			IsActive:    true,
			CreatedAt:   "2026-01-05",
			UpdatedAt:   "2026-01-05",
		},
		{
			SystemKey:   "9600-retired",
			BrokerCode:  "9600",
			BranchCode:  "9601",
			DisplayName: "已停用分點",
			URLParamA:   "9600",
			URLParamB:   "0030003900310031",
			IsActive:    false,
			CreatedAt:   "2025-03-01",
			UpdatedAt:   "2026-01-05",
		},
	}
}

func TestRegistryMissingFile(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Load()
	assert.ErrorIs(t, err, ErrRegistryMissing)
}

func TestRegistrySaveLoadRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Save(sampleEntries()))

	active, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, active, 1)

	entry := active[0]
	assert.Equal(t, "9800-fubon-taipei", entry.SystemKey)
	assert.Equal(t, "富邦台北", entry.DisplayName)
	// Leading zeros survive the round trip byte for byte.
	assert.Equal(t, "0039004100390050", entry.URLParamB)

	all, err := reg.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegistryRepairsCoercedParamB(t *testing.T) {
	reg, paths := newTestRegistry(t)

	entries := sampleEntries()
	entries[0].URLParamB = "39004100390050" // leading zeros lost
	require.NoError(t, reg.Save(entries))

	active, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "0039004100390050", active[0].URLParamB)

	// The repair is persisted, so a reload parses clean.
	raw, err := os.ReadFile(paths.RegistryFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "0039004100390050")

	// And the pre-repair file was backed up first.
	backups, err := os.ReadDir(paths.RegistryBackupDir())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasPrefix(backups[0].Name(), "registry_"))
}

func TestRegistryRepairsMojibakeDisplayName(t *testing.T) {
	reg, _ := newTestRegistry(t)

	corrupted, err := charmap.ISO8859_1.NewDecoder().String("富邦台北")
	require.NoError(t, err)

	entries := sampleEntries()
	entries[0].DisplayName = corrupted
	require.NoError(t, reg.Save(entries))

	active, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "富邦台北", active[0].DisplayName)
}

func TestRegistrySkipsRowsWithoutSystemKey(t *testing.T) {
	reg, paths := newTestRegistry(t)

	csv := strings.Join([]string{
		strings.Join(domain.RegistryColumns, ","),
		"9800-fubon-taipei,9800,9801,Fubon,9800,123,true,2026-01-05,2026-01-05",
		",9999,9999,orphan,9999,456,true,2026-01-05,2026-01-05",
	}, "\n")
	require.NoError(t, os.WriteFile(paths.RegistryFile, []byte(csv), 0o644))

	all, err := reg.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "9800-fubon-taipei", all[0].SystemKey)
}

func TestRegistryRejectsMissingColumns(t *testing.T) {
	reg, paths := newTestRegistry(t)

	require.NoError(t, os.WriteFile(paths.RegistryFile,
		[]byte("branch_system_key,branch_broker_code\nx,y\n"), 0o644))

	_, err := reg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column")
}

func TestPruneBackups(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"registry_20260101_000000.csv",
		"registry_20260102_000000.csv",
		"registry_20260103_000000.csv",
		"registry_20260104_000000.csv",
	}
	for _, name := range names {
		require.NoError(t, os.WriteFile(dir+"/"+name, []byte("x"), 0o644))
	}

	require.NoError(t, pruneBackups(dir, "registry_", 2))

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "registry_20260103_000000.csv", remaining[0].Name())
	assert.Equal(t, "registry_20260104_000000.csv", remaining[1].Name())
}
