// Package pipeline orchestrates the per-year fetch, normalize, aggregate,
// and persist cycle over small source and sink interfaces.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mstlaur1/montreal-score/internal/domain"
	"github.com/mstlaur1/montreal-score/internal/observability"
	"github.com/mstlaur1/montreal-score/internal/render"
)

// earliestYear is the first year the city dataset has records for.
const earliestYear = 1990

// Source fetches one calendar year of raw permit records.
type Source interface {
	FetchYear(ctx context.Context, year int) ([]domain.RawRecord, error)
}

// Store persists and reloads snapshots. LoadRaw and LoadStats report a
// missing snapshot with an error satisfying errors.Is(err, fs.ErrNotExist).
type Store interface {
	SaveRaw(year int, records []domain.RawRecord) error
	LoadRaw(year int) ([]domain.RawRecord, error)
	SaveProcessed(year int, permits []domain.NormalizedPermit) error
	SaveStats(year int, stats []domain.BoroughStats) error
	LoadStats(year int) ([]domain.BoroughStats, error)
	SaveCombined(stats []domain.BoroughStats) error
	SaveManifest(m domain.IngestManifest) error
}

// Publisher emits processed permits downstream.
type Publisher interface {
	PublishPermits(ctx context.Context, year int, permits []domain.NormalizedPermit) error
}

// Options selects the scope of a run.
type Options struct {
	// Years lists the calendar years to ingest, in order.
	Years []int
	// StatsOnly reuses cached raw snapshots where available instead of
	// fetching from the datastore.
	StatsOnly bool
}

// Pipeline runs the ingestion cycle year by year. A nil publisher disables
// publishing and a nil tableOut disables the console table.
type Pipeline struct {
	source    Source
	store     Store
	publisher Publisher
	tableOut  io.Writer
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready atomic.Bool

	mu       sync.Mutex
	started  bool
	manifest domain.IngestManifest
}

// New creates a Pipeline with the given stages and observability.
func New(source Source, store Store, publisher Publisher, tableOut io.Writer, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		store:     store,
		publisher: publisher,
		tableOut:  tableOut,
		logger:    logger,
		metrics:   metrics,
	}
}

// SelectYears resolves the requested year range. An explicit year wins,
// full covers the dataset back to 1990, and the default is the previous
// and current year.
func SelectYears(full bool, year int) []int {
	current := clock.Now().Year()
	switch {
	case year > 0:
		return []int{year}
	case full:
		years := make([]int, 0, current-earliestYear+1)
		for y := earliestYear; y <= current; y++ {
			years = append(years, y)
		}
		return years
	default:
		return []int{current - 1, current}
	}
}

// CheckReadiness returns nil once at least one year has completed, or an
// error describing why the process is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no completed years yet")
	}
	return nil
}

// RunStatus reports the manifest of the current or most recent run. The
// boolean is false before the first run starts.
func (p *Pipeline) RunStatus(_ context.Context) (domain.IngestManifest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manifest, p.started
}

func (p *Pipeline) setStatus(m domain.IngestManifest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Detach from the slice Run keeps appending to.
	m.Years = append([]domain.YearSummary(nil), m.Years...)
	p.manifest = m
	p.started = true
}

// Run ingests each requested year. A failing year does not abort the rest;
// the per-year errors are joined into the returned error. The returned
// manifest covers the years that completed.
func (p *Pipeline) Run(ctx context.Context, opts Options) (domain.IngestManifest, error) {
	manifest := domain.IngestManifest{
		RunID:     uuid.NewString(),
		StartedAt: clock.Now().UTC(),
	}
	p.setStatus(manifest)

	p.logger.Info("ingestion started",
		"run_id", manifest.RunID,
		"years", opts.Years,
		"stats_only", opts.StatsOnly,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var errs []error
	for _, year := range opts.Years {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		summary, err := p.runYear(ctx, year, opts.StatsOnly)
		if err != nil {
			p.logger.Error("year failed", "year", year, "error", err)
			errs = append(errs, fmt.Errorf("year %d: %w", year, err))
			continue
		}

		manifest.Years = append(manifest.Years, summary)
		p.ready.Store(true)
		p.setStatus(manifest)
	}

	// A cancelled run must not overwrite the previous run's combined stats.
	if len(opts.Years) > 1 && ctx.Err() == nil {
		if err := p.saveCombined(opts.Years); err != nil {
			errs = append(errs, err)
		}
	}

	manifest.FinishedAt = clock.Now().UTC()
	p.setStatus(manifest)

	if err := p.store.SaveManifest(manifest); err != nil {
		errs = append(errs, fmt.Errorf("save manifest: %w", err))
	}

	p.logger.Info("ingestion finished",
		"run_id", manifest.RunID,
		"years_completed", len(manifest.Years),
		"years_failed", len(opts.Years)-len(manifest.Years),
	)
	return manifest, errors.Join(errs...)
}

// runYear executes one fetch-normalize-aggregate-persist cycle.
func (p *Pipeline) runYear(ctx context.Context, year int, statsOnly bool) (domain.YearSummary, error) {
	start := clock.Now()
	summary := domain.YearSummary{Year: year}

	raw, fromCache, err := p.loadOrFetch(ctx, year, statsOnly)
	if err != nil {
		return summary, err
	}
	summary.RawRecords = len(raw)
	summary.FromCache = fromCache

	// The raw snapshot is the cache for later stats-only runs, so it is
	// written even for an empty year.
	if !fromCache {
		if err := p.store.SaveRaw(year, raw); err != nil {
			return summary, fmt.Errorf("save raw: %w", err)
		}
	}

	if len(raw) == 0 {
		p.logger.Info("no records for year", "year", year)
		return summary, nil
	}

	permits := make([]domain.NormalizedPermit, 0, len(raw))
	for _, rec := range raw {
		permits = append(permits, domain.ProcessPermit(rec))
	}
	p.metrics.RecordsNormalized.Add(float64(len(permits)))

	kept := make([]domain.NormalizedPermit, 0, len(permits))
	for _, permit := range permits {
		if permit.ApplicationDate == nil {
			continue
		}
		kept = append(kept, permit)
	}
	dropped := len(permits) - len(kept)
	if dropped > 0 {
		p.metrics.RecordsDropped.Add(float64(dropped))
		p.logger.Warn("dropped records without application date", "year", year, "dropped", dropped)
	}
	summary.Processed = len(kept)
	summary.Dropped = dropped

	stats := domain.ComputeBoroughStats(kept, year)
	summary.Boroughs = len(stats)

	if p.tableOut != nil {
		render.StatsTable(p.tableOut, stats)
	}

	if err := p.store.SaveProcessed(year, kept); err != nil {
		return summary, fmt.Errorf("save processed: %w", err)
	}
	if err := p.store.SaveStats(year, stats); err != nil {
		return summary, fmt.Errorf("save stats: %w", err)
	}

	p.publish(ctx, year, kept)

	p.metrics.YearRecords.Observe(float64(len(raw)))
	p.metrics.YearDuration.Observe(clock.Since(start).Seconds())
	p.logger.Info("year complete",
		"year", year,
		"raw", len(raw),
		"processed", len(kept),
		"dropped", dropped,
		"boroughs", len(stats),
		"from_cache", fromCache,
	)
	return summary, nil
}

// loadOrFetch returns the year's raw records and whether they came from the
// snapshot cache. A stats-only run falls back to fetching when no snapshot
// exists yet.
func (p *Pipeline) loadOrFetch(ctx context.Context, year int, statsOnly bool) ([]domain.RawRecord, bool, error) {
	if statsOnly {
		raw, err := p.store.LoadRaw(year)
		if err == nil {
			p.logger.Info("loaded cached snapshot", "year", year, "records", len(raw))
			return raw, true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("load cached raw: %w", err)
		}
		p.logger.Info("no cached snapshot, fetching", "year", year)
	}

	raw, err := p.source.FetchYear(ctx, year)
	if err != nil {
		return nil, false, fmt.Errorf("fetch: %w", err)
	}
	return raw, false, nil
}

// publish sends the year's permits downstream. Publish failures are logged
// and counted but never fail the year; the snapshots on disk are the source
// of truth.
func (p *Pipeline) publish(ctx context.Context, year int, permits []domain.NormalizedPermit) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishPermits(ctx, year, permits); err != nil {
		p.logger.Warn("publish failed", "year", year, "error", err)
		return
	}
	p.metrics.PermitsPublished.Add(float64(len(permits)))
}

// saveCombined concatenates the per-year stats snapshots in year order.
// Years without a snapshot are skipped, so a partially failed run still
// produces a combined file for the years that worked.
func (p *Pipeline) saveCombined(years []int) error {
	combined := make([]domain.BoroughStats, 0)
	for _, year := range years {
		stats, err := p.store.LoadStats(year)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load stats for %d: %w", year, err)
		}
		combined = append(combined, stats...)
	}
	if err := p.store.SaveCombined(combined); err != nil {
		return fmt.Errorf("save combined stats: %w", err)
	}
	return nil
}
