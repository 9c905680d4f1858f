// Package scheduler запускает синхронизацию при старте, по расписанию
// и немедленно по внешнему сигналу.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/cronexpr"
)

// DefaultInterval интервал синхронизации по умолчанию
const DefaultInterval = time.Hour

// Job задача, которую запускает планировщик
type Job func(ctx context.Context) error

// Scheduler запускает задачу последовательно: одновременно выполняется
// не больше одного запуска, сигналы во время запуска объединяются в один.
type Scheduler struct {
	job      Job
	interval time.Duration
	schedule *cronexpr.Expression
	clock    clock.Clock
	trigger  chan struct{}
	logger   *log.Logger
}

// New создает планировщик. Непустое cron-выражение имеет приоритет над интервалом.
func New(job Job, interval time.Duration, cronSpec string, logger *log.Logger) (*Scheduler, error) {
	return NewForTesting(job, interval, cronSpec, logger, clock.New())
}

func NewForTesting(job Job, interval time.Duration, cronSpec string, logger *log.Logger, clk clock.Clock) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Scheduler{
		job:      job,
		interval: interval,
		clock:    clk,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
	}

	if cronSpec != "" {
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", cronSpec, err)
		}
		s.schedule = expr
	}

	return s, nil
}

// Trigger просит выполнить задачу как можно скорее. Никогда не блокируется.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Next возвращает время до следующего запуска по расписанию
func (s *Scheduler) Next(now time.Time) time.Duration {
	if s.schedule != nil {
		if next := s.schedule.Next(now); !next.IsZero() {
			return next.Sub(now)
		}
	}
	return s.interval
}

// Run выполняет задачу при старте и дальше по расписанию или сигналу.
// Блокируется до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) {
	s.run(ctx, "startup")

	for {
		timer := s.clock.Timer(s.Next(s.clock.Now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case <-timer.C:
			s.run(ctx, "schedule")

		case <-s.trigger:
			timer.Stop()
			s.run(ctx, "trigger")
		}
	}
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job(ctx); err != nil {
		s.logger.Printf("Scheduled sync (%s) failed: %v", reason, err)
	}
}
