package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Paths names every file the pipeline writes.
// Relative names are placed under OutputDir by Resolve; absolute names are kept as given.
// The *Path helpers return names relative to OutputDir; the exporter resolves them.
type Paths struct {
	OutputDir string
}

// GetPaths returns the output paths for this configuration
func (c *Config) GetPaths() *Paths {
	dir := c.Paths.OutputDir
	if dir == "" {
		dir = "."
	}
	return &Paths{OutputDir: dir}
}

// Resolve returns name joined to the output directory unless it is absolute
func (p *Paths) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.OutputDir, name)
}

// Timestamped renders pattern with t formatted as YYYYMMDD_HHMMSS
func (p *Paths) Timestamped(pattern string, t time.Time) string {
	return TimestampedName(pattern, t)
}

// ManualEntriesPath returns the overrides workbook path for a run started at t
func (p *Paths) ManualEntriesPath(t time.Time) string {
	return p.Timestamped(ManualEntriesPattern, t)
}

// ExpiryDataPath returns the mapping-driven expiry CSV path
func (p *Paths) ExpiryDataPath(t time.Time) string {
	return p.Timestamped(ExpiryDataPattern, t)
}

// SettlementsPath returns the settlements workbook path
func (p *Paths) SettlementsPath(t time.Time) string {
	return p.Timestamped(SettlementsPattern, t)
}

// ExpiriesPath returns the standalone expiry table CSV path
func (p *Paths) ExpiriesPath(t time.Time) string {
	return p.Timestamped(ExpiriesExportPattern, t)
}

// TimestampedName renders a file name pattern containing one %s verb
func TimestampedName(pattern string, t time.Time) string {
	return fmt.Sprintf(pattern, t.Format(TimestampLayout))
}
