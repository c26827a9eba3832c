package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optpricer/internal/config"
	apperrors "optpricer/internal/errors"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		options  WriteOptions
		expected string
	}{
		{
			name:     "headers and records",
			fileName: "out.csv",
			options: WriteOptions{
				Headers: []string{"exposure", "value"},
				Records: [][]string{{"E1", "42.5"}, {"E2", ""}},
			},
			expected: "exposure,value\nE1,42.5\nE2,\n",
		},
		{
			name:     "headers only",
			fileName: "empty.csv",
			options:  WriteOptions{Headers: []string{"a", "b"}},
			expected: "a,b\n",
		},
		{
			name:     "special characters are quoted",
			fileName: "special.csv",
			options: WriteOptions{
				Headers: []string{"exposure"},
				Records: [][]string{{"TTF, Curve"}, {`say "hi"`}},
			},
			expected: "exposure\n\"TTF, Curve\"\n\"say \"\"hi\"\"\"\n",
		},
		{
			name:     "BOM prefix",
			fileName: "bom.csv",
			options:  WriteOptions{Headers: []string{"x"}, BOMPrefix: true},
			expected: "\ufeffx\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			w := NewCSVWriter(&config.Paths{OutputDir: dir}, nil)

			path, err := w.WriteCSV(tt.fileName, tt.options)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.fileName), path)

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(content))
		})
	}
}

func TestCSVWriter_Overwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(&config.Paths{OutputDir: dir}, nil)

	_, err := w.WriteCSV("out.csv", WriteOptions{Headers: []string{"a"}, Records: [][]string{{"1"}, {"2"}, {"3"}}})
	require.NoError(t, err)
	path, err := w.WriteCSV("out.csv", WriteOptions{Headers: []string{"b"}, Records: [][]string{{"9"}}})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"b"}, {"9"}}, readCSV(t, path))
}

func TestCSVWriter_AbsolutePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "abs.csv")
	w := NewCSVWriter(&config.Paths{OutputDir: t.TempDir()}, nil)

	path, err := w.WriteCSV(abs, WriteOptions{Headers: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, abs, path)
}

func TestCSVWriter_UnwritableTarget(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	w := NewCSVWriter(&config.Paths{OutputDir: dir}, nil)
	_, err := w.WriteCSV(filepath.Join("file", "out.csv"), WriteOptions{Headers: []string{"a"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeExport))
}

func TestCSVWriter_MissingDirectory(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(&config.Paths{OutputDir: dir}, nil)

	_, err := w.WriteCSV(filepath.Join("missing", "out.csv"), WriteOptions{Headers: []string{"a"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeExport))
	assert.NoDirExists(t, filepath.Join(dir, "missing"))
}

func TestStreamWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(&config.Paths{OutputDir: dir}, nil)

	sw, err := w.CreateStreamWriter("stream.csv", []string{"i"}, false)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		require.NoError(t, sw.WriteRecord([]string{formatInt(int64(i))}))
	}
	require.NoError(t, sw.Close())

	records := readCSV(t, sw.Path())
	require.Len(t, records, 1001)
	assert.Equal(t, "999", records[1000][0])
	assert.True(t, strings.HasSuffix(sw.Path(), "stream.csv"))
}
