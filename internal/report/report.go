package report

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-rollcorr/internal/model"
)

var (
	cHeader = color.New(color.FgCyan, color.Bold)
	cPeak   = color.New(color.FgGreen, color.Bold)
	cMuted  = color.New(color.Faint)
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// corrStr formats a coefficient, or "—" when it is undefined.
func corrStr(v sql.NullFloat64) string {
	if !v.Valid {
		return "—"
	}
	return fmt.Sprintf("%+.4f", v.Float64)
}

// PrintRunSummary prints a one-line header for a stored run.
func PrintRunSummary(w io.Writer, r model.Run) {
	fmt.Fprintf(w, "\nRun: %s  |  Started: %s  |  Source: %s  |  Players: %d/%d  |  Rows: %d  |  W<=%d\n\n",
		shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04"), r.Source,
		r.PlayersQualified, r.PlayersSeen, r.Observations, r.MaxWindow)
}

// PrintCorrelationTable prints one row per window size. Rows whose window
// is a peak for any metric are marked with "*".
func PrintCorrelationTable(w io.Writer, rows []model.CorrelationRow) {
	peak := make(map[int]bool)
	for _, p := range PeakWindows(rows) {
		if p.Found {
			peak[p.Window] = true
		}
	}

	table := newTable(w)
	table.Header(" ", "WINDOW", "AVG_CORR", "OBP_CORR", "SLG_CORR")
	for _, r := range rows {
		marker := " "
		if peak[r.Window] {
			marker = "*"
		}
		table.Append(
			marker,
			strconv.Itoa(r.Window),
			corrStr(r.AvgCorr),
			corrStr(r.OBPCorr),
			corrStr(r.SLGCorr),
		)
	}
	table.Render()
}

// Peak is the window with the highest defined correlation for one metric.
type Peak struct {
	Metric string
	Window int
	Corr   float64
	Found  bool
}

// PeakWindows returns the peak for AVG, OBP and SLG in that order. Ties go
// to the smallest window. A metric with no defined values has Found false.
func PeakWindows(rows []model.CorrelationRow) []Peak {
	peaks := []Peak{{Metric: "AVG"}, {Metric: "OBP"}, {Metric: "SLG"}}
	for _, r := range rows {
		for i, v := range []sql.NullFloat64{r.AvgCorr, r.OBPCorr, r.SLGCorr} {
			if !v.Valid {
				continue
			}
			if !peaks[i].Found || v.Float64 > peaks[i].Corr {
				peaks[i].Window, peaks[i].Corr, peaks[i].Found = r.Window, v.Float64, true
			}
		}
	}
	return peaks
}

// PrintPeaks prints the peak window for each metric.
func PrintPeaks(w io.Writer, rows []model.CorrelationRow) {
	cHeader.Fprintln(w, "\nPeak windows")
	for _, p := range PeakWindows(rows) {
		if !p.Found {
			cMuted.Fprintf(w, "  %s: no defined correlation\n", p.Metric)
			continue
		}
		fmt.Fprintf(w, "  %s: ", p.Metric)
		cPeak.Fprintf(w, "W=%d", p.Window)
		fmt.Fprintf(w, "  r=%+.4f\n", p.Corr)
	}
}

// PrintRuns prints the stored run history.
func PrintRuns(w io.Writer, runs []model.Run) {
	table := newTable(w)
	table.Header("ID", "STARTED", "SOURCE", "MIN_LEN", "MAX_W", "PLAYERS", "QUALIFIED", "ROWS", "DURATION")
	for _, r := range runs {
		dur := "incomplete"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		table.Append(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Source,
			strconv.Itoa(r.MinLength),
			strconv.Itoa(r.MaxWindow),
			strconv.Itoa(r.PlayersSeen),
			strconv.Itoa(r.PlayersQualified),
			strconv.FormatInt(r.Observations, 10),
			dur,
		)
	}
	table.Render()
}

// PrintQueryResult prints the result of a raw query followed by its row count.
func PrintQueryResult(w io.Writer, cols []string, rows [][]string) {
	if len(rows) == 0 {
		cMuted.Fprintln(w, "(no rows)")
		return
	}
	table := newTable(w)
	table.Header(toAny(cols)...)
	for _, r := range rows {
		table.Append(toAny(r)...)
	}
	table.Render()
	fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
