package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pable/go-rollcorr/internal/model"
)

// RollingHeader is the column order of the rolling observation table.
var RollingHeader = []string{
	"player_id", "game_date", "rolling_window",
	"rolling_avg", "rolling_obp", "rolling_slg",
	"next_is_hit", "next_is_on_base", "next_total_bases",
}

// RollingWriter streams complete observations as CSV.
type RollingWriter struct {
	w     *csv.Writer
	rows  int64
	wrote bool
	rec   []string
}

// NewRollingWriter returns a writer that emits the header before the first row.
func NewRollingWriter(w io.Writer) *RollingWriter {
	return &RollingWriter{w: csv.NewWriter(w), rec: make([]string, len(RollingHeader))}
}

// Write appends a batch. Incomplete observations are dropped.
func (rw *RollingWriter) Write(rows []model.Observation) error {
	if !rw.wrote {
		if err := rw.w.Write(RollingHeader); err != nil {
			return err
		}
		rw.wrote = true
	}
	for _, o := range rows {
		if !o.Complete() {
			continue
		}
		rw.rec[0] = strconv.FormatInt(o.PlayerID, 10)
		rw.rec[1] = o.GameDate.Format(model.DateLayout)
		rw.rec[2] = strconv.Itoa(o.Window)
		rw.rec[3] = formatFloat(o.RollingAvg())
		rw.rec[4] = formatFloat(o.RollingOBP())
		rw.rec[5] = formatFloat(o.RollingSLG())
		rw.rec[6] = strconv.Itoa(o.Next.IsHit)
		rw.rec[7] = strconv.Itoa(o.Next.IsOnBase)
		rw.rec[8] = strconv.Itoa(o.Next.TotalBases)
		if err := rw.w.Write(rw.rec); err != nil {
			return err
		}
		rw.rows++
	}
	return rw.w.Error()
}

// Flush writes buffered rows, emitting the header if nothing was written yet.
func (rw *RollingWriter) Flush() error {
	if !rw.wrote {
		if err := rw.w.Write(RollingHeader); err != nil {
			return err
		}
		rw.wrote = true
	}
	rw.w.Flush()
	return rw.w.Error()
}

// Rows returns the number of data rows written.
func (rw *RollingWriter) Rows() int64 { return rw.rows }

// errMissing marks a rolling or target cell that holds no value.
var errMissing = errors.New("missing value")

// ReadObservations streams a rolling table back into observations. Rolling
// rates are turned back into window sums, so a table written by RollingWriter
// reduces to exactly the same correlations. Rows with an empty or NaN rate or
// target are skipped and counted; any other malformed value is an error.
func ReadObservations(r io.Reader, fn func(model.Observation) error) (ReadStats, error) {
	var stats ReadStats
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("empty rolling file")
		}
		return stats, fmt.Errorf("read header: %w", err)
	}
	idx, err := headerIndex(header, RollingHeader...)
	if err != nil {
		return stats, err
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		line++
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Rows++
		o, err := parseObservation(rec, idx)
		if errors.Is(err, errMissing) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(o); err != nil {
			return stats, err
		}
	}
}

func parseObservation(rec []string, idx map[string]int) (model.Observation, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var o model.Observation
	var err error
	if o.PlayerID, err = strconv.ParseInt(field("player_id"), 10, 64); err != nil {
		return o, fmt.Errorf("player_id: %w", err)
	}
	d, ok := parseDate(field("game_date"))
	if !ok {
		return o, fmt.Errorf("game_date %q", field("game_date"))
	}
	o.GameDate = d
	if o.Window, err = strconv.Atoi(field("rolling_window")); err != nil || o.Window < 1 {
		return o, fmt.Errorf("rolling_window %q", field("rolling_window"))
	}

	w := o.Window
	if o.Sums.Hits, err = windowSum(field("rolling_avg"), w, w); err != nil {
		return o, fmt.Errorf("rolling_avg: %w", err)
	}
	if o.Sums.OnBase, err = windowSum(field("rolling_obp"), w, w); err != nil {
		return o, fmt.Errorf("rolling_obp: %w", err)
	}
	if o.Sums.Bases, err = windowSum(field("rolling_slg"), w, 4*w); err != nil {
		return o, fmt.Errorf("rolling_slg: %w", err)
	}
	if o.Next.IsHit, err = parseCount(field("next_is_hit"), 1); err != nil {
		return o, fmt.Errorf("next_is_hit: %w", err)
	}
	if o.Next.IsOnBase, err = parseCount(field("next_is_on_base"), 1); err != nil {
		return o, fmt.Errorf("next_is_on_base: %w", err)
	}
	if o.Next.TotalBases, err = parseCount(field("next_total_bases"), 4); err != nil {
		return o, fmt.Errorf("next_total_bases: %w", err)
	}
	o.SumsValid, o.NextValid = true, true
	return o, nil
}

// parseCell parses a numeric cell. Empty and NaN cells return errMissing;
// infinities are rejected.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, errMissing
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not finite", s)
	}
	return v, nil
}

// windowSum converts a rolling rate back to its integer window total, which
// must lie in [0, limit].
func windowSum(s string, w, limit int) (int, error) {
	v, err := parseCell(s)
	if err != nil {
		return 0, err
	}
	total := v * float64(w)
	k := math.Round(total)
	if k < 0 || k > float64(limit) {
		return 0, fmt.Errorf("%s is out of range for window %d", s, w)
	}
	if math.Abs(total-k) > 1e-6 {
		return 0, fmt.Errorf("%s is not a multiple of 1/%d", s, w)
	}
	return int(k), nil
}

// parseCount reads an integer in [0, limit], also accepting "1.0".
func parseCount(s string, limit int) (int, error) {
	v, err := parseCell(s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > float64(limit) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s is not a count in [0, %d]", s, limit)
	}
	return int(v), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
