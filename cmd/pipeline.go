package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pable/go-rollcorr/internal/aggregator"
	"github.com/pable/go-rollcorr/internal/correlate"
	"github.com/pable/go-rollcorr/internal/dataset"
	"github.com/pable/go-rollcorr/internal/model"
	"github.com/pable/go-rollcorr/internal/report"
	"github.com/pable/go-rollcorr/internal/statcast"
	"github.com/pable/go-rollcorr/internal/storage"
)

// fetchEvents downloads the configured seasons into cfg.Output.Events unless
// the file already exists.
func fetchEvents(ctx context.Context) (statcast.DownloadSummary, error) {
	fc := cfg.Fetch
	cache, err := statcast.NewFileCache(fc.CacheDir, fc.CacheEnabled)
	if err != nil {
		return statcast.DownloadSummary{}, err
	}
	defer cache.Close()

	client := statcast.NewClient(statcast.ClientOptions{
		BaseURL:        fc.BaseURL,
		Timeout:        fc.Timeout,
		RequestsPerSec: fc.RequestsPerSec,
		MaxAttempts:    fc.MaxAttempts,
		RetryInitial:   fc.RetryInitial,
		Cache:          cache,
		Logger:         logger.With().Str("component", "statcast").Logger(),
		Metrics:        mtx,
	})
	months := statcast.SeasonRanges(fc.StartYear, fc.EndYear, time.Month(fc.StartMonth), time.Month(fc.EndMonth))
	d := statcast.NewDownloader(client, fc.ChunkDays, logger, mtx)
	return d.Download(ctx, months, cfg.Output.Events)
}

// rollingResult is what the rolling stage produced.
type rollingResult struct {
	Run          model.Run
	Correlations []model.CorrelationRow
}

// runRolling reads the events file, streams every qualifying player's rolling
// observations to the rolling CSV and the correlation accumulator, writes the
// correlation table and records the run when record is set.
func runRolling(ctx context.Context, record bool) (rollingResult, error) {
	ac := cfg.Analysis
	run := model.Run{
		ID:              uuid.NewString(),
		StartedAt:       time.Now(),
		Source:          cfg.Output.Events,
		MinLength:       ac.MinTimelineLength,
		MaxWindow:       ac.MaxWindow,
		RollingPath:     cfg.Output.Rolling,
		CorrelationPath: cfg.Output.Correlations,
	}

	var db *storage.DB
	if record {
		var err error
		if db, err = storage.Open(cfg.Storage.DBPath); err != nil {
			return rollingResult{}, fmt.Errorf("open storage: %w", err)
		}
		defer db.Close()
		if err := db.InsertRun(run); err != nil {
			return rollingResult{}, err
		}
	}

	events, err := readEvents(cfg.Output.Events)
	if err != nil {
		return rollingResult{}, err
	}

	out, err := createFile(cfg.Output.Rolling)
	if err != nil {
		return rollingResult{}, err
	}
	defer out.Discard()
	rw := dataset.NewRollingWriter(out)
	acc := correlate.New()

	opts := []aggregator.Option{
		aggregator.WithMinLength(ac.MinTimelineLength),
		aggregator.WithMaxWindow(ac.MaxWindow),
		aggregator.WithLogger(logger.With().Str("component", "aggregator").Logger()),
		aggregator.WithMetrics(mtx),
	}
	if ac.Workers > 0 {
		opts = append(opts, aggregator.WithWorkers(ac.Workers))
	}
	sum, err := aggregator.New(opts...).Run(ctx, events, aggregator.MultiSink{rw, acc})
	if err != nil {
		return rollingResult{}, err
	}
	if err := rw.Flush(); err != nil {
		return rollingResult{}, fmt.Errorf("write %s: %w", cfg.Output.Rolling, err)
	}
	if err := out.Commit(); err != nil {
		return rollingResult{}, err
	}
	logger.Info().Int64("rows", rw.Rows()).Str("path", cfg.Output.Rolling).Msg("saved rolling stats")

	rows := acc.Correlations()
	if err := writeCorrelations(cfg.Output.Correlations, rows); err != nil {
		return rollingResult{}, err
	}

	run.FinishedAt = time.Now()
	run.PlayersSeen = sum.PlayersSeen
	run.PlayersQualified = sum.PlayersQualified
	run.Observations = sum.Observations
	if db != nil {
		if err := db.InsertCorrelations(run.ID, rows); err != nil {
			return rollingResult{}, err
		}
		if err := db.FinishRun(run); err != nil {
			return rollingResult{}, err
		}
	}
	return rollingResult{Run: run, Correlations: rows}, nil
}

// renderPlots charts rows into cfg.Output.PlotDir.
func renderPlots(rows []model.CorrelationRow) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("correlation table is empty")
	}
	maxW := rows[len(rows)-1].Window
	paths, err := report.RenderPlots(rows, cfg.Output.PlotDir, report.DefaultRanges(maxW, cfg.Output.PlotSplit))
	if err != nil {
		return paths, err
	}
	for _, p := range paths {
		logger.Info().Str("path", p).Msg("saved plot")
	}
	return paths, nil
}

func readEvents(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	events, stats, err := dataset.ReadEvents(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	logger.Info().
		Int("rows", stats.Rows).
		Int("events", len(events)).
		Int("skipped", stats.Skipped).
		Str("path", path).
		Msg("loaded plate appearances")
	return events, nil
}

func readCorrelations(path string) ([]model.CorrelationRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open correlations: %w", err)
	}
	defer f.Close()
	rows, err := dataset.ReadCorrelations(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func writeCorrelations(path string, rows []model.CorrelationRow) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Discard()
	if err := dataset.WriteCorrelations(f, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Commit(); err != nil {
		return err
	}
	mtx.Windows(len(rows))
	logger.Info().Int("windows", len(rows)).Str("path", path).Msg("saved correlation table")
	return nil
}

// pendingFile is an output written beside its destination and moved into
// place by Commit, so a failed stage leaves the previous file untouched.
type pendingFile struct {
	*os.File
	path string
}

func createFile(path string) (*pendingFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path + ".partial")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &pendingFile{File: f, path: path}, nil
}

// Commit closes the file and renames it over the destination.
func (p *pendingFile) Commit() error {
	if err := p.File.Close(); err != nil {
		return fmt.Errorf("close %s: %w", p.Name(), err)
	}
	if err := os.Rename(p.Name(), p.path); err != nil {
		return fmt.Errorf("rename %s: %w", p.path, err)
	}
	return nil
}

// Discard drops an uncommitted file. It is a no-op after Commit.
func (p *pendingFile) Discard() {
	p.File.Close()
	os.Remove(p.Name())
}
