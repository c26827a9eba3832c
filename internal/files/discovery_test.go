package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optpricer/internal/errors"
)

// touch creates name under dir with the given modification time
func touch(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestFindTabularFiles(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	touch(t, dir, "positions_0702.csv", base.Add(2*time.Hour))
	touch(t, dir, "positions_0701.XLSX", base)
	touch(t, dir, "~$positions_0701.xlsx", base.Add(3*time.Hour))
	touch(t, dir, "notes.txt", base)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.csv"), 0o755))

	found, err := NewDiscovery("").FindTabularFiles(dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "positions_0701.XLSX", found[0].Name)
	assert.Equal(t, "positions_0702.csv", found[1].Name)
	assert.Equal(t, int64(1), found[1].Size)
}

func TestFindTabularFiles_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "exports"), 0o755))
	touch(t, filepath.Join(base, "exports"), "a.csv", time.Now())

	found, err := NewDiscovery(base).FindTabularFiles("exports")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(base, "exports", "a.csv"), found[0].Path)

	_, err = NewDiscovery(base).FindTabularFiles("missing")
	assert.Error(t, err)
}

func TestFindFilesByPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "expiry_dates_20250701_090000.csv", time.Now())
	touch(t, dir, "option_price_results.csv", time.Now())

	found, err := NewDiscovery(dir).FindFilesByPattern(".", "expiry_dates_*.csv")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "expiry_dates_20250701_090000.csv", found[0].Name)

	_, err = NewDiscovery(dir).FindFilesByPattern(".", "[")
	assert.Error(t, err)
}

func TestGetLatestFile(t *testing.T) {
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	latest, ok := GetLatestFile([]FileInfo{
		{Name: "old", ModTime: base},
		{Name: "new", ModTime: base.Add(time.Hour)},
		{Name: "middle", ModTime: base.Add(time.Minute)},
	})
	require.True(t, ok)
	assert.Equal(t, "new", latest.Name)
}

func TestResolveInput(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	older := touch(t, dir, "positions_0701.csv", base)
	newer := touch(t, dir, "positions_0702.xlsx", base.Add(24*time.Hour))

	got, err := ResolveInput(older)
	require.NoError(t, err)
	assert.Equal(t, older, got)

	got, err = ResolveInput(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = ResolveInput(filepath.Join(dir, "missing.csv"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	empty := t.TempDir()
	_, err = ResolveInput(empty)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
