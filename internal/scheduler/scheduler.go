package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"AllowanceLogger/internal/collector"
	"AllowanceLogger/internal/logging"
	"AllowanceLogger/internal/metrics"
	"AllowanceLogger/internal/model"
	"AllowanceLogger/internal/notifier"
	"AllowanceLogger/internal/recorder"
	"AllowanceLogger/internal/tracker"
)

// Deps bundles everything a Scheduler needs.
type Deps struct {
	Collector *collector.Collector
	State     *tracker.State
	Wallets   *model.Registry
	Notifier  notifier.Notifier
	Ledger    *recorder.CSVRecorder
	Recorder  recorder.Recorder // receives every event; defaults to Ledger
	Mode      model.Mode
	Symbol    string
	Log       *zap.Logger
}

// Scheduler runs the poll cycle on a fixed interval.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	State     *tracker.State
	Wallets   *model.Registry
	Notifier  notifier.Notifier
	Ledger    *recorder.CSVRecorder
	Recorder  recorder.Recorder
	Mode      model.Mode
	Symbol    string
	Now       func() time.Time
	Ctx       context.Context

	log     *zap.Logger
	running sync.Mutex
}

// CycleResult summarizes one pass over the wallets.
type CycleResult struct {
	Checked int
	Failed  int
	Changes int
	Exports int
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps) *Scheduler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	rec := deps.Recorder
	if rec == nil {
		rec = deps.Ledger
	}
	cl := logging.CronLogger{Log: log.Named("cron")}
	return &Scheduler{
		Cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		Collector: deps.Collector,
		State:     deps.State,
		Wallets:   deps.Wallets,
		Notifier:  deps.Notifier,
		Ledger:    deps.Ledger,
		Recorder:  rec,
		Mode:      deps.Mode,
		Symbol:    deps.Symbol,
		Now:       time.Now,
		Ctx:       ctx,
		log:       log,
	}
}

// Register schedules the poll task every interval.
func (s *Scheduler) Register(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	if _, err := s.Cron.AddFunc("@every "+interval.String(), s.pollTask); err != nil {
		return fmt.Errorf("register poll task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.String("mode", string(s.Mode)), zap.Int("wallets", s.Wallets.Len()))
}

// Stop stops the cron scheduler and waits for a running cycle to finish,
// including one started by RunNow.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.running.Lock()
	s.running.Unlock()
	s.log.Info("scheduler stopped")
}

// RunNow executes one poll cycle immediately (startup poll).
func (s *Scheduler) RunNow() {
	s.pollTask()
}

// pollTask runs a cycle unless one is already in flight, in which case the tick is dropped.
func (s *Scheduler) pollTask() {
	if !s.running.TryLock() {
		metrics.PollCyclesSkippedTotal.Inc()
		s.log.Warn("previous poll cycle still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	start := time.Now()
	s.log.Debug("checking allowances")
	res := s.PollOnce(s.Ctx)
	metrics.PollCyclesTotal.Inc()
	metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	s.log.Info("poll cycle finished",
		zap.Int("checked", res.Checked),
		zap.Int("failed", res.Failed),
		zap.Int("changes", res.Changes),
		zap.Int("exports", res.Exports),
		zap.Duration("took", time.Since(start)))
}

// PollOnce checks every wallet sequentially. A wallet whose fetch fails is skipped
// and keeps its last observed value.
func (s *Scheduler) PollOnce(ctx context.Context) CycleResult {
	var res CycleResult
	for _, addr := range s.Wallets.Addresses() {
		if ctx.Err() != nil {
			s.log.Info("poll cycle cancelled")
			break
		}
		now := s.Now()
		name := s.Wallets.Name(addr)

		total, err := s.Collector.Collect(ctx, addr)
		if err != nil {
			res.Failed++
			metrics.FetchErrorsTotal.WithLabelValues(addr).Inc()
			s.log.Error("fetch allowance failed", zap.String("wallet", name), zap.Error(err))
			continue
		}
		res.Checked++
		metrics.AllowanceRemaining.WithLabelValues(addr).Set(total.InexactFloat64())

		delta := s.State.Observe(addr, total)
		if delta.First {
			s.log.Info("initial allowance observed", zap.String("wallet", name), zap.String("total", total.String()))
		}
		if delta.Qualifies(s.Mode) {
			s.handleChange(ctx, addr, name, delta, now)
			res.Changes++
		}

		if s.Mode == model.ModeReward && IsLastDayOfMonth(now) {
			if s.exportMonth(ctx, addr, name, now) {
				res.Exports++
			}
		}
	}
	return res
}

func (s *Scheduler) handleChange(ctx context.Context, addr, name string, delta tracker.Delta, now time.Time) {
	evt := &model.ChangeEvent{
		Wallet:   addr,
		Name:     name,
		Mode:     s.Mode,
		Kind:     delta.Kind,
		Previous: delta.Previous,
		Current:  delta.Current,
		Diff:     delta.Diff,
		At:       now,
	}
	metrics.ChangesTotal.WithLabelValues(string(delta.Kind)).Inc()
	s.log.Info("allowance changed",
		zap.String("wallet", name),
		zap.String("previous", delta.Previous.String()),
		zap.String("current", delta.Current.String()),
		zap.String("diff", delta.Diff.String()))

	if err := s.Recorder.RecordChange(evt); err != nil {
		s.log.Error("record change", zap.String("wallet", name), zap.Error(err))
	}
	s.trySend(ctx, notifier.FormatEvent(evt, s.Symbol))
}

// exportMonth appends the Total row to the wallet's month table and uploads it.
// A month is exported at most once; a table that already has a Total row is left alone.
func (s *Scheduler) exportMonth(ctx context.Context, addr, name string, now time.Time) bool {
	sum, err := s.Ledger.Summarize(name, now)
	if errors.Is(err, recorder.ErrNoTable) {
		s.log.Debug("no rewards this month, nothing to export", zap.String("wallet", name))
		return false
	}
	if err != nil {
		s.log.Error("read monthly table", zap.String("wallet", name), zap.Error(err))
		return false
	}
	if sum.HasTotal {
		return false
	}

	evt := &model.ExportEvent{
		Wallet: addr,
		Name:   name,
		Month:  now.Format("2006-01"),
		Total:  sum.Sum,
		Path:   sum.Path,
		At:     now,
	}
	if err := s.Recorder.RecordExport(evt); err != nil {
		s.log.Error("record monthly total", zap.String("wallet", name), zap.Error(err))
	}

	content, err := os.ReadFile(sum.Path)
	if err != nil {
		s.log.Error("read monthly table for upload", zap.String("wallet", name), zap.Error(err))
		return false
	}
	filename := model.SanitizeName(name) + "_" + evt.Month + ".csv"
	if err := s.Notifier.SendFile(ctx, filename, content, notifier.FormatExport(evt, s.Symbol)); err != nil {
		metrics.WebhookErrorsTotal.WithLabelValues("file").Inc()
		s.log.Error("send monthly export", zap.String("wallet", name), zap.Error(err))
		return true
	}
	s.log.Info("monthly export sent", zap.String("wallet", name), zap.String("month", evt.Month),
		zap.String("total", sum.Sum.String()))
	return true
}

func (s *Scheduler) trySend(ctx context.Context, embed notifier.Embed) {
	if err := s.Notifier.Send(ctx, embed); err != nil {
		metrics.WebhookErrorsTotal.WithLabelValues("embed").Inc()
		s.log.Error("send notification", zap.String("title", embed.Title), zap.Error(err))
		return
	}
	s.log.Info("notification sent", zap.String("title", strings.TrimSpace(embed.Title)))
}

// IsLastDayOfMonth reports whether t falls on the last calendar day of its month.
func IsLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
