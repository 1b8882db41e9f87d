package filestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mstlaur1/montreal-score/internal/domain"
	"github.com/mstlaur1/montreal-score/internal/observability"
)

// Store persists snapshots as flat JSON files under a root directory:
//
//	raw/permits_<year>.json         raw datastore rows, cached per year
//	permits_<year>_processed.json   normalized permits
//	borough_stats_<year>.json       per-year borough statistics
//	borough_stats_all.json          statistics across a multi-year run
//	ingest_manifest.json            what the last run did
//
// The layout is the external contract: downstream dashboards read these
// files by name.
type Store struct {
	root    string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{root: dir, logger: logger, metrics: metrics}
}

// SaveRaw caches the raw records for a year. Written even when the year
// is empty so reruns can tell "fetched, nothing there" from "never fetched".
func (s *Store) SaveRaw(year int, records []domain.RawRecord) error {
	if records == nil {
		records = []domain.RawRecord{}
	}
	return s.write(s.rawPath(year), records, len(records))
}

// LoadRaw reads the cached raw records for a year. A missing cache file
// surfaces as an error satisfying errors.Is(err, fs.ErrNotExist).
func (s *Store) LoadRaw(year int) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(s.rawPath(year))
	if err != nil {
		return nil, fmt.Errorf("read raw snapshot: %w", err)
	}
	var records []domain.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode raw snapshot %s: %w", s.rawPath(year), err)
	}
	return records, nil
}

// SaveProcessed writes the normalized permits for a year.
func (s *Store) SaveProcessed(year int, permits []domain.NormalizedPermit) error {
	if permits == nil {
		permits = []domain.NormalizedPermit{}
	}
	return s.write(s.processedPath(year), permits, len(permits))
}

// SaveStats writes the per-year borough statistics.
func (s *Store) SaveStats(year int, stats []domain.BoroughStats) error {
	if stats == nil {
		stats = []domain.BoroughStats{}
	}
	return s.write(s.statsPath(year), stats, len(stats))
}

// LoadStats reads the per-year borough statistics back. A missing file
// surfaces as an error satisfying errors.Is(err, fs.ErrNotExist).
func (s *Store) LoadStats(year int) ([]domain.BoroughStats, error) {
	data, err := os.ReadFile(s.statsPath(year))
	if err != nil {
		return nil, fmt.Errorf("read stats snapshot: %w", err)
	}
	var stats []domain.BoroughStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode stats snapshot %s: %w", s.statsPath(year), err)
	}
	return stats, nil
}

// SaveCombined writes the cross-year statistics file.
func (s *Store) SaveCombined(stats []domain.BoroughStats) error {
	if stats == nil {
		stats = []domain.BoroughStats{}
	}
	return s.write(s.combinedPath(), stats, len(stats))
}

// SaveManifest writes the run manifest.
func (s *Store) SaveManifest(m domain.IngestManifest) error {
	return s.write(s.manifestPath(), m, len(m.Years))
}

func (s *Store) write(path string, v any, count int) error {
	if err := writeJSON(path, v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.metrics.SnapshotsWritten.Inc()
	s.logger.Info("wrote snapshot", "path", path, "entries", count)
	return nil
}

func (s *Store) rawPath(year int) string {
	return filepath.Join(s.root, "raw", fmt.Sprintf("permits_%d.json", year))
}

func (s *Store) processedPath(year int) string {
	return filepath.Join(s.root, fmt.Sprintf("permits_%d_processed.json", year))
}

func (s *Store) statsPath(year int) string {
	return filepath.Join(s.root, fmt.Sprintf("borough_stats_%d.json", year))
}

func (s *Store) combinedPath() string {
	return filepath.Join(s.root, "borough_stats_all.json")
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.root, "ingest_manifest.json")
}

// writeJSON writes two-space-indented JSON with HTML escaping off, so
// accented borough names and addresses stay readable in the files.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
