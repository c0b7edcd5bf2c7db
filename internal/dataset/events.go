// Package dataset reads and writes the flat CSV tables the pipeline consumes
// and produces.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pable/go-rollcorr/internal/model"
)

// Column names read from a Statcast export. Any other column is ignored.
const (
	ColPlayer  = "batter"
	ColDate    = "game_date"
	ColOutcome = "events"
)

// ReadStats counts rows seen and dropped while reading events.
type ReadStats struct {
	Rows    int
	Skipped int
}

// newReader returns a csv.Reader tolerant of Savant's quoting.
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

// headerIndex maps required column names to their positions.
func headerIndex(header []string, cols ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range cols {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return idx, nil
}

// ReadEvents reads events in file order. Rows with a missing or malformed
// player id or date are skipped and counted; an empty outcome is kept as a
// no-event pitch.
func ReadEvents(r io.Reader) ([]model.Event, ReadStats, error) {
	var stats ReadStats
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("empty events file")
		}
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	idx, err := headerIndex(header, ColPlayer, ColDate, ColOutcome)
	if err != nil {
		return nil, stats, err
	}
	pi, di, oi := idx[ColPlayer], idx[ColDate], idx[ColOutcome]
	need := max(pi, di, oi)

	var events []model.Event
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++
		if len(rec) <= need {
			stats.Skipped++
			continue
		}
		id, ok := parsePlayerID(rec[pi])
		if !ok {
			stats.Skipped++
			continue
		}
		date, ok := parseDate(rec[di])
		if !ok {
			stats.Skipped++
			continue
		}
		events = append(events, model.Event{
			PlayerID: id,
			GameDate: date,
			Outcome:  model.Outcome(strings.TrimSpace(rec[oi])),
		})
	}
	return events, stats, nil
}

// parsePlayerID accepts integer ids, including the "123.0" form written by
// tools that store ids as floats.
func parsePlayerID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// parseDate accepts "YYYY-MM-DD", optionally followed by a time part.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(model.DateLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(model.DateLayout, s[:len(model.DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
