package model

import (
	"database/sql"
	"time"
)

// Outcome is the Statcast "events" category of a pitch. Only the final pitch
// of a plate appearance carries one; every other pitch has an empty Outcome.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeSingle     Outcome = "single"
	OutcomeDouble     Outcome = "double"
	OutcomeTriple     Outcome = "triple"
	OutcomeHomeRun    Outcome = "home_run"
	OutcomeWalk       Outcome = "walk"
	OutcomeHitByPitch Outcome = "hit_by_pitch"
)

// Signals are the numeric outcome flags derived from an Outcome.
type Signals struct {
	IsHit      int
	IsOnBase   int
	TotalBases int
}

// ---- Raw events read from the dataset ----

// Event is one Statcast record for a batter.
type Event struct {
	PlayerID int64
	GameDate time.Time
	Outcome  Outcome
	Signals  Signals
}

// DateLayout is the date format used for game_date in every table.
const DateLayout = "2006-01-02"

// ---- Derived rows ----

// WindowSums holds the signal totals over a trailing window. Rolling rates
// are these sums divided by the window size.
type WindowSums struct {
	Hits   int
	OnBase int
	Bases  int
}

// Observation is one (position, window size) row of the rolling table.
// SumsValid is false while fewer than Window events exist; NextValid is false
// for the last event of a timeline.
type Observation struct {
	PlayerID  int64
	GameDate  time.Time
	Window    int
	Sums      WindowSums
	SumsValid bool
	Next      Signals
	NextValid bool
}

// Complete reports whether both the rolling statistic and the target exist.
func (o Observation) Complete() bool {
	return o.SumsValid && o.NextValid
}

// RollingAvg is hits per event over the window.
func (o Observation) RollingAvg() float64 { return float64(o.Sums.Hits) / float64(o.Window) }

// RollingOBP is times on base per event over the window.
func (o Observation) RollingOBP() float64 { return float64(o.Sums.OnBase) / float64(o.Window) }

// RollingSLG is total bases per event over the window, in [0, 4].
func (o Observation) RollingSLG() float64 { return float64(o.Sums.Bases) / float64(o.Window) }

// CorrelationRow is the final per-window output. An invalid NullFloat64
// means the correlation is undefined for that window.
type CorrelationRow struct {
	Window  int
	AvgCorr sql.NullFloat64
	OBPCorr sql.NullFloat64
	SLGCorr sql.NullFloat64
}

// ---- Run history ----

// Run records one execution of the rolling pipeline.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Source           string
	MinLength        int
	MaxWindow        int
	PlayersSeen      int
	PlayersQualified int
	Observations     int64
	RollingPath      string
	CorrelationPath  string
}
