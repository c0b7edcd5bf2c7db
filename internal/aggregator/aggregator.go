// Package aggregator runs the windowed feature generator over every player
// with enough history and streams the combined rows to a sink.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pable/go-rollcorr/internal/metrics"
	"github.com/pable/go-rollcorr/internal/model"
	"github.com/pable/go-rollcorr/internal/window"
)

const (
	DefaultMinLength = 260
	DefaultMaxWindow = 250
)

// ErrNoQualifyingPlayers is returned when no timeline reaches the minimum length.
var ErrNoQualifyingPlayers = errors.New("no player has enough events")

// Sink consumes one player's complete observations at a time.
type Sink interface {
	Write(rows []model.Observation) error
}

// MultiSink fans every batch out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Write(rows []model.Observation) error {
	for _, s := range m {
		if err := s.Write(rows); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes one aggregation run.
type Summary struct {
	PlayersSeen      int
	PlayersQualified int
	Observations     int64
}

// DefaultWorkers is the concurrency used when WithWorkers is not given. It
// does not grow past four on large hosts since memory scales with workers.
var DefaultWorkers = min(runtime.NumCPU(), 4)

// Aggregator generates rolling observations for all qualifying players.
type Aggregator struct {
	minLength int
	maxWindow int
	workers   int
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMinLength sets the minimum timeline length a player needs.
func WithMinLength(n int) Option { return func(a *Aggregator) { a.minLength = n } }

// WithMaxWindow sets the largest window size generated.
func WithMaxWindow(n int) Option { return func(a *Aggregator) { a.maxWindow = n } }

// WithWorkers bounds how many players are generated concurrently. Each worker
// holds one player's full result, about len(timeline)*maxWindow observations;
// a long career at W<=250 is several hundred megabytes.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l zerolog.Logger) Option { return func(a *Aggregator) { a.log = l } }

// WithMetrics records per-player counters.
func WithMetrics(m *metrics.Metrics) Option { return func(a *Aggregator) { a.metrics = m } }

// New returns an Aggregator with defaults applied before opts.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		minLength: DefaultMinLength,
		maxWindow: DefaultMaxWindow,
		workers:   DefaultWorkers,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run labels events, groups them into timelines and writes each qualifying
// player's complete observations to sink. Players are written in ascending id
// order no matter which worker finishes first.
func (a *Aggregator) Run(ctx context.Context, events []model.Event, sink Sink) (Summary, error) {
	if a.maxWindow < 1 {
		return Summary{}, fmt.Errorf("max window must be at least 1, got %d", a.maxWindow)
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	model.LabelEvents(events)
	timelines := model.GroupTimelines(events)

	sum := Summary{PlayersSeen: len(timelines)}
	eligible := make([]model.Timeline, 0, len(timelines))
	for _, tl := range timelines {
		if tl.Len() < a.minLength {
			a.metrics.PlayerSkipped()
			continue
		}
		eligible = append(eligible, tl)
	}
	sum.PlayersQualified = len(eligible)
	if len(eligible) == 0 {
		return sum, ErrNoQualifyingPlayers
	}

	a.log.Info().
		Int("players", sum.PlayersSeen).
		Int("qualified", sum.PlayersQualified).
		Int("max_window", a.maxWindow).
		Int("workers", a.workers).
		Msg("generating rolling windows")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One buffered slot per player; inflight caps how many finished but
	// unwritten results are held in memory.
	slots := make([]chan []model.Observation, len(eligible))
	for i := range slots {
		slots[i] = make(chan []model.Observation, 1)
	}
	inflight := make(chan struct{}, a.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i, tl := range eligible {
			select {
			case inflight <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			g.Go(func() error {
				start := time.Now()
				rows := window.Collect(tl, a.maxWindow)
				a.metrics.PlayerDone(time.Since(start), len(rows))
				slots[i] <- rows
				return nil
			})
		}
		return nil
	})

	for i, tl := range eligible {
		var rows []model.Observation
		select {
		case rows = <-slots[i]:
		case <-gctx.Done():
			_ = g.Wait()
			return sum, fmt.Errorf("rolling windows: %w", ctx.Err())
		}
		if err := sink.Write(rows); err != nil {
			cancel()
			_ = g.Wait()
			return sum, fmt.Errorf("write player %d: %w", tl.PlayerID, err)
		}
		sum.Observations += int64(len(rows))
		<-inflight

		if done := i + 1; done%100 == 0 || done == len(eligible) {
			a.log.Debug().Int("done", done).Int("of", len(eligible)).Msg("players written")
		}
	}

	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, nil
}
