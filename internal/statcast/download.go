package statcast

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pable/go-rollcorr/internal/metrics"
)

// ErrNoData is returned when no range produced any rows.
var ErrNoData = errors.New("no statcast rows downloaded")

// Fetcher returns the raw CSV export for one date range.
type Fetcher interface {
	FetchRange(ctx context.Context, r DateRange) ([]byte, error)
}

// DownloadSummary reports what a download produced.
type DownloadSummary struct {
	Path    string
	Skipped bool // output already existed
	Ranges  int
	Failed  int
	Rows    int
}

// Downloader concatenates range exports into one CSV file.
type Downloader struct {
	fetcher   Fetcher
	chunkDays int
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// NewDownloader splits every month into chunks of chunkDays before fetching.
// A non-positive chunkDays fetches whole months.
func NewDownloader(f Fetcher, chunkDays int, log zerolog.Logger, m *metrics.Metrics) *Downloader {
	return &Downloader{fetcher: f, chunkDays: chunkDays, log: log, metrics: m}
}

// Download fetches every range in months and writes a single CSV with one
// header row to outPath. An existing outPath is left untouched. Ranges that
// fail after retries are logged and skipped.
func (d *Downloader) Download(ctx context.Context, months []DateRange, outPath string) (DownloadSummary, error) {
	sum := DownloadSummary{Path: outPath}
	if _, err := os.Stat(outPath); err == nil {
		d.log.Info().Str("path", outPath).Msg("dataset exists, skipping download")
		sum.Skipped = true
		return sum, nil
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return sum, fmt.Errorf("create output dir: %w", err)
		}
	}

	partial := outPath + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return sum, fmt.Errorf("create %s: %w", partial, err)
	}
	defer os.Remove(partial)

	w := csv.NewWriter(f)
	var header []string

	for _, month := range months {
		for _, r := range SplitRange(month, d.chunkDays) {
			if err := ctx.Err(); err != nil {
				f.Close()
				return sum, err
			}
			sum.Ranges++
			body, err := d.fetcher.FetchRange(ctx, r)
			if err != nil {
				if ctx.Err() != nil {
					f.Close()
					return sum, ctx.Err()
				}
				sum.Failed++
				d.log.Error().Err(err).Str("range", r.String()).Msg("skipping range")
				continue
			}
			n, err := appendRows(w, &header, body)
			sum.Rows += n
			d.metrics.FetchRows(n)
			if err != nil {
				sum.Failed++
				d.log.Error().Err(err).Str("range", r.String()).Msg("skipping malformed range")
				continue
			}
			if n == 0 {
				d.metrics.FetchResult("empty")
			}
			d.log.Info().Str("range", r.String()).Int("rows", n).Msg("range downloaded")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return sum, fmt.Errorf("write %s: %w", partial, err)
	}
	if err := f.Close(); err != nil {
		return sum, err
	}
	if sum.Rows == 0 {
		return sum, ErrNoData
	}
	if err := os.Rename(partial, outPath); err != nil {
		return sum, fmt.Errorf("finalize %s: %w", outPath, err)
	}
	return sum, nil
}

// appendRows copies the records of body to w. The first non-empty body fixes
// the header; later bodies are remapped to it by column name.
func appendRows(w *csv.Writer, header *[]string, body []byte) (int, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	cols, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(cols) > 0 {
		cols[0] = strings.TrimPrefix(cols[0], "\ufeff")
	}

	if *header == nil {
		*header = append([]string(nil), cols...)
		if err := w.Write(*header); err != nil {
			return 0, err
		}
	}

	// pos[i] is the index in this body of the i-th output column, or -1.
	pos := make([]int, len(*header))
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		byName[c] = i
	}
	for i, c := range *header {
		if j, ok := byName[c]; ok {
			pos[i] = j
		} else {
			pos[i] = -1
		}
	}

	out := make([]string, len(*header))
	n := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("line %d: %w", n+2, err)
		}
		for i, j := range pos {
			if j >= 0 && j < len(rec) {
				out[i] = rec[j]
			} else {
				out[i] = ""
			}
		}
		if err := w.Write(out); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
