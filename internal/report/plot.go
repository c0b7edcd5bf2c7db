package report

import (
	"database/sql"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pable/go-rollcorr/internal/model"
)

// WindowRange is an inclusive range of window sizes to chart.
type WindowRange struct {
	Lo, Hi int
}

// FileName is the chart file for the range.
func (r WindowRange) FileName() string {
	return fmt.Sprintf("correlation_%d_%d.png", r.Lo, r.Hi)
}

// DefaultRanges returns the full range 1..maxWindow followed by 1..split and
// split+1..maxWindow. The sub-ranges are omitted when split does not fall
// strictly inside the full range.
func DefaultRanges(maxWindow, split int) []WindowRange {
	out := []WindowRange{{1, maxWindow}}
	if split >= 1 && split < maxWindow {
		out = append(out, WindowRange{1, split}, WindowRange{split + 1, maxWindow})
	}
	return out
}

var series = []struct {
	label string
	color color.RGBA
	value func(model.CorrelationRow) sql.NullFloat64
}{
	{"AVG", color.RGBA{B: 255, A: 255}, func(r model.CorrelationRow) sql.NullFloat64 { return r.AvgCorr }},
	{"OBP", color.RGBA{G: 128, A: 255}, func(r model.CorrelationRow) sql.NullFloat64 { return r.OBPCorr }},
	{"SLG", color.RGBA{R: 255, A: 255}, func(r model.CorrelationRow) sql.NullFloat64 { return r.SLGCorr }},
}

// RenderPlots draws one PNG per range into dir and returns the written paths.
// Ranges with no rows are skipped. Undefined coefficients break the line.
func RenderPlots(rows []model.CorrelationRow, dir string, ranges []WindowRange) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	var written []string
	for _, rg := range ranges {
		var slice []model.CorrelationRow
		for _, r := range rows {
			if r.Window >= rg.Lo && r.Window <= rg.Hi {
				slice = append(slice, r)
			}
		}
		if len(slice) == 0 {
			continue
		}
		p, err := correlationPlot(slice, rg)
		if err != nil {
			return written, fmt.Errorf("plot %d-%d: %w", rg.Lo, rg.Hi, err)
		}
		path := filepath.Join(dir, rg.FileName())
		if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func correlationPlot(rows []model.CorrelationRow, rg WindowRange) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Correlation vs Rolling Window (%d-%d)", rg.Lo, rg.Hi)
	p.X.Label.Text = "Number of Prior Plate Appearances (N)"
	p.Y.Label.Text = "Correlation with Next Outcome"
	p.X.Min, p.X.Max = float64(rg.Lo), float64(rg.Hi)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range series {
		var legend *plotter.Line
		for _, seg := range segments(rows, s.value) {
			l, err := plotter.NewLine(seg)
			if err != nil {
				return nil, err
			}
			l.Color = s.color
			l.Width = vg.Points(1.5)
			p.Add(l)
			if legend == nil {
				legend = l
			}
		}
		if legend != nil {
			p.Legend.Add(s.label, legend)
		}
	}
	return p, nil
}

// segments splits a series into runs of consecutive defined points.
func segments(rows []model.CorrelationRow, value func(model.CorrelationRow) sql.NullFloat64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for _, r := range rows {
		v := value(r)
		if !v.Valid {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(r.Window), Y: v.Float64})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
