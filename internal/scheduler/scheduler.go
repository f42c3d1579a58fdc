// Package scheduler drives the decision engine on a fixed interval. A
// failed tick is logged and skipped; the next tick starts on schedule
// and no stale aggregate is ever re-emitted.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// TickRunner is the engine's scheduling entry point.
type TickRunner interface {
	EvaluateTick(ctx context.Context) (domain.AggregateDecision, error)
}

// Executor consumes one aggregate decision per tick.
type Executor interface {
	Execute(ctx context.Context, agg domain.AggregateDecision) error
}

// Scheduler owns the tick loop and the pipeline state lifecycle.
type Scheduler struct {
	runner   TickRunner
	executor Executor
	interval time.Duration
}

// New creates a scheduler. Interval ≤ 0 falls back to one minute.
func New(runner TickRunner, executor Executor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{runner: runner, executor: executor, interval: interval}
}

// Run ticks until the context ends. The first tick fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("scheduler starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	agg, err := s.runner.EvaluateTick(ctx)
	if err != nil {
		log.Error().Err(err).Msg("tick skipped")
		return
	}
	if s.executor == nil {
		return
	}
	if err := s.executor.Execute(ctx, agg); err != nil {
		log.Error().Err(err).Str("tick_id", agg.TickID).Msg("executor failed")
	}
}
