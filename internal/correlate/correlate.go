// Package correlate reduces rolling observations to one Pearson correlation
// per window size and metric.
//
// Rolling rates are k/W for integer k, and targets are integers, so the
// accumulator keeps exact integer moments. The result does not depend on the
// order in which rows arrive.
package correlate

import (
	"database/sql"
	"math"
	"math/big"
	"sort"

	"github.com/pable/go-rollcorr/internal/model"
)

// moments holds exact sums for one (x, y) pair where x is a window sum.
type moments struct {
	n, sx, sxx, sy, syy, sxy int64
}

func (m *moments) add(x, y int) {
	m.n++
	m.sx += int64(x)
	m.sxx += int64(x) * int64(x)
	m.sy += int64(y)
	m.syy += int64(y) * int64(y)
	m.sxy += int64(x) * int64(y)
}

func (m *moments) merge(o moments) {
	m.n += o.n
	m.sx += o.sx
	m.sxx += o.sxx
	m.sy += o.sy
	m.syy += o.syy
	m.sxy += o.sxy
}

// pearson returns the correlation coefficient, or an invalid value when fewer
// than two pairs exist or either side has zero variance. The window divisor
// cancels out of r, so the raw sums are used directly.
func (m moments) pearson() sql.NullFloat64 {
	if m.n < 2 {
		return sql.NullFloat64{}
	}
	n := big.NewInt(m.n)
	sx, sy := big.NewInt(m.sx), big.NewInt(m.sy)

	cov := new(big.Int).Mul(n, big.NewInt(m.sxy))
	cov.Sub(cov, new(big.Int).Mul(sx, sy))

	vx := new(big.Int).Mul(n, big.NewInt(m.sxx))
	vx.Sub(vx, new(big.Int).Mul(sx, sx))

	vy := new(big.Int).Mul(n, big.NewInt(m.syy))
	vy.Sub(vy, new(big.Int).Mul(sy, sy))

	if vx.Sign() <= 0 || vy.Sign() <= 0 {
		return sql.NullFloat64{}
	}

	const prec = 256
	den := new(big.Float).SetPrec(prec).SetInt(new(big.Int).Mul(vx, vy))
	den.Sqrt(den)
	num := new(big.Float).SetPrec(prec).SetInt(cov)
	r, _ := num.Quo(num, den).Float64()
	r = math.Max(-1, math.Min(1, r))
	return sql.NullFloat64{Float64: r, Valid: true}
}

type windowMoments struct {
	avg, obp, slg moments
}

// Accumulator groups observations by window size. It is not safe for
// concurrent use; merge per-goroutine accumulators with Merge instead.
type Accumulator struct {
	byWindow map[int]*windowMoments
	rows     int64
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{byWindow: make(map[int]*windowMoments)}
}

// Add folds one observation in. Incomplete observations are ignored.
func (a *Accumulator) Add(o model.Observation) {
	if !o.Complete() {
		return
	}
	wm, ok := a.byWindow[o.Window]
	if !ok {
		wm = &windowMoments{}
		a.byWindow[o.Window] = wm
	}
	wm.avg.add(o.Sums.Hits, o.Next.IsHit)
	wm.obp.add(o.Sums.OnBase, o.Next.IsOnBase)
	wm.slg.add(o.Sums.Bases, o.Next.TotalBases)
	a.rows++
}

// Write adds a batch of observations.
func (a *Accumulator) Write(rows []model.Observation) error {
	for _, o := range rows {
		a.Add(o)
	}
	return nil
}

// Merge folds another accumulator into a.
func (a *Accumulator) Merge(other *Accumulator) {
	for w, om := range other.byWindow {
		wm, ok := a.byWindow[w]
		if !ok {
			wm = &windowMoments{}
			a.byWindow[w] = wm
		}
		wm.avg.merge(om.avg)
		wm.obp.merge(om.obp)
		wm.slg.merge(om.slg)
	}
	a.rows += other.rows
}

// Rows returns the number of observations folded in so far.
func (a *Accumulator) Rows() int64 { return a.rows }

// Correlations returns one row per window size seen, ascending by window.
func (a *Accumulator) Correlations() []model.CorrelationRow {
	windows := make([]int, 0, len(a.byWindow))
	for w := range a.byWindow {
		windows = append(windows, w)
	}
	sort.Ints(windows)

	out := make([]model.CorrelationRow, 0, len(windows))
	for _, w := range windows {
		wm := a.byWindow[w]
		out = append(out, model.CorrelationRow{
			Window:  w,
			AvgCorr: wm.avg.pearson(),
			OBPCorr: wm.obp.pearson(),
			SLGCorr: wm.slg.pearson(),
		})
	}
	return out
}
