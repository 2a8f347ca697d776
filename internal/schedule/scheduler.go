package schedule

import (
	"log/slog"
	"sync"
	"time"

	"boardflow/internal/board"
	"boardflow/internal/engine"
	"boardflow/internal/rule"
	"boardflow/internal/store"
)

// DefaultTickPeriodMs is the scheduler's evaluation cadence. One minute
// matches the cron grid's resolution.
const DefaultTickPeriodMs = 60_000

// FireFunc executes a due rule and reports how many tasks it touched.
// engine.Engine.FireRule satisfies it.
type FireFunc func(r *rule.Rule) (int, error)

// TickSummary reports one completed evaluation pass.
type TickSummary struct {
	At             int64
	RulesEvaluated int
	RulesFired     int
	TasksAffected  int
}

// Scheduler evaluates scheduled rules on a fixed tick. All evaluation runs
// on a single goroutine, so rule firings never race each other.
//
// Progress is durable: a rule's LastEvaluatedAt is persisted before its
// action runs, so a crash mid-fire loses at most one firing and never
// replays one.
type Scheduler struct {
	rules  store.RuleStore
	tasks  store.TaskStore
	clock  engine.Clock
	fire   FireFunc
	period int64
	onTick func(TickSummary)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickPeriod overrides the evaluation cadence (ms).
func WithTickPeriod(ms int64) SchedulerOption {
	return func(s *Scheduler) {
		if ms > 0 {
			s.period = ms
		}
	}
}

// WithTickSummary registers a callback invoked after every pass.
func WithTickSummary(fn func(TickSummary)) SchedulerOption {
	return func(s *Scheduler) { s.onTick = fn }
}

func NewScheduler(rules store.RuleStore, tasks store.TaskStore, clock engine.Clock, fire FireFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		rules:  rules,
		tasks:  tasks,
		clock:  clock,
		fire:   fire,
		period: DefaultTickPeriodMs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs one synchronous catch-up pass, then ticks in the background.
// Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	// The catch-up pass runs before the first tick so rules that came due
	// while the process was down fire immediately on startup.
	s.Tick()

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(s.period) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-stop:
				return
			}
		}
	}()
}

// Resume restarts a stopped scheduler, catch-up pass included. App-resume
// hooks call this after a long suspension.
func (s *Scheduler) Resume() {
	s.Start()
}

// Stop halts ticking and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Tick runs one evaluation pass over every runnable scheduled rule. Exposed
// for hosts that drive evaluation themselves instead of using Start.
func (s *Scheduler) Tick() {
	now := s.clock.Now()
	rules, err := s.rules.FindAll()
	if err != nil {
		slog.Error("schedule pass aborted, rule load failed", "error", err)
		return
	}
	tasks, err := s.tasks.FindAll()
	if err != nil {
		slog.Error("schedule pass aborted, task load failed", "error", err)
		return
	}

	summary := TickSummary{At: now}
	fired := make(map[string]bool)
	for _, r := range rules {
		if !r.Runnable() || !r.Trigger.Scheduled() {
			continue
		}
		summary.RulesEvaluated++
		ok, affected := s.evaluateOne(now, r, projectTasks(tasks, r.ProjectID))
		if ok {
			fired[r.ID] = true
			summary.RulesFired++
			summary.TasksAffected += affected
		}
	}

	s.sweepStale(now, rules, fired)

	if s.onTick != nil {
		s.onTick(summary)
	}
}

// evaluateOne evaluates and possibly fires a single rule. A panicking rule
// is contained here so the rest of the pass survives it.
func (s *Scheduler) evaluateOne(now int64, r *rule.Rule, tasks []*board.Task) (fired bool, affected int) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rule evaluation panicked", "rule_id", r.ID, "rule_name", r.Name, "panic", rec)
		}
	}()

	d := Evaluate(now, r, tasks)
	if !d.Due {
		return false, 0
	}
	// The mark commits before the action runs: a crash mid-fire loses the
	// firing rather than replaying it on restart.
	if err := s.persistHighWater(r, d.HighWater); err != nil {
		slog.Error("high-water persist failed, skipping fire", "rule_id", r.ID, "error", err)
		return false, 0
	}

	n, err := s.fire(r)
	if err != nil {
		slog.Error("scheduled rule failed", "rule_id", r.ID, "rule_name", r.Name, "error", err)
		return true, n
	}
	slog.Info("scheduled rule fired", "rule_id", r.ID, "rule_name", r.Name, "tasks_affected", n)
	return true, n
}

func (s *Scheduler) persistHighWater(r *rule.Rule, hw int64) error {
	if err := s.rules.Update(r.ID, store.RulePatch{LastEvaluatedAt: &hw}); err != nil {
		return err
	}
	r.Trigger.LastEvaluatedAt = &hw
	return nil
}

// sweepStale refreshes the high-water mark of runnable scheduled rules that
// did not fire this pass and whose mark is missing or more than two periods
// old, so a dormant schedule's catch-up window cannot grow without bound.
// Interval anchors are exempt: an interval rule's mark moves only when it
// fires, and staleness up to the interval length is its resting state.
func (s *Scheduler) sweepStale(now int64, rules []*rule.Rule, fired map[string]bool) {
	for _, r := range rules {
		if !r.Runnable() || !r.Trigger.Scheduled() || fired[r.ID] {
			continue
		}
		if r.Trigger.Kind == rule.TriggerScheduledInterval {
			continue
		}
		last := r.Trigger.LastEvaluatedAt
		if last != nil && now-*last <= 2*s.period {
			continue
		}
		if err := s.persistHighWater(r, now); err != nil {
			slog.Warn("stale high-water refresh failed", "rule_id", r.ID, "error", err)
		}
	}
}

func projectTasks(all []*board.Task, projectID string) []*board.Task {
	var out []*board.Task
	for _, t := range all {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}
