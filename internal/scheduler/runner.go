package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/notify-engine/internal/pkg/distlock"
)

const (
	DefaultReconcileInterval = 30 * time.Second
	DefaultLockTTL           = 2 * time.Minute
	DefaultFireTimeout       = 5 * time.Minute
)

// Executor runs one firing of a scheduled rule.
type Executor interface {
	ExecuteScheduledRule(ctx context.Context, ruleID string) error
}

// Source lists the schedules the runner should hold.
type Source interface {
	Entries(ctx context.Context) (map[string]Entry, error)
}

// RunnerOptions tunes a Runner. Zero values take the defaults.
type RunnerOptions struct {
	ReconcileInterval time.Duration
	LockTTL           time.Duration
	FireTimeout       time.Duration
}

type job struct {
	entry Entry
	id    cron.EntryID
}

// Runner fires registered schedules. Each firing takes a distributed lock
// keyed by rule and minute so only one replica executes it.
type Runner struct {
	src   Source
	exec  Executor
	locks distlock.Factory
	opts  RunnerOptions
	cron  *cron.Cron
	now   func() time.Time

	mu   sync.Mutex
	jobs map[string]job

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	wg     sync.WaitGroup
}

// NewRunner creates a runner. A nil locks factory disables cluster locking.
func NewRunner(src Source, exec Executor, locks distlock.Factory, opts RunnerOptions) *Runner {
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = DefaultReconcileInterval
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.FireTimeout <= 0 {
		opts.FireTimeout = DefaultFireTimeout
	}
	return &Runner{
		src:   src,
		exec:  exec,
		locks: locks,
		opts:  opts,
		cron:  cron.New(),
		now:   time.Now,
		jobs:  make(map[string]job),
		ctx:   context.Background(),
		wake:  make(chan struct{}, 1),
	}
}

// Start reconciles once, starts the cron clock and keeps reconciling until
// Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	if err := r.Reconcile(r.ctx); err != nil {
		log.Warn("initial reconcile failed", "error", err)
	}
	r.cron.Start()

	r.wg.Add(1)
	go r.loop()
	log.Info("schedule runner started", "jobs", r.Len(), "reconcile_interval", r.opts.ReconcileInterval)
	return nil
}

// Stop halts the clock and waits for running firings to finish.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.cron.Stop().Done()
	r.wg.Wait()
	log.Info("schedule runner stopped")
}

// Trigger asks the loop to reconcile now. It never blocks.
func (r *Runner) Trigger() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if err := r.Reconcile(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("reconcile failed", "error", err)
		}
	}
}

// Reconcile makes the cron jobs match the source: new entries are added,
// changed ones replaced and missing ones removed.
func (r *Runner) Reconcile(ctx context.Context) error {
	entries, err := r.src.Entries(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, j := range r.jobs {
		if e, ok := entries[id]; !ok || e.Spec() != j.entry.Spec() {
			r.cron.Remove(j.id)
			delete(r.jobs, id)
		}
	}
	for id, e := range entries {
		if _, ok := r.jobs[id]; ok {
			continue
		}
		ruleID := id
		cid, err := r.cron.AddFunc(e.Spec(), func() { r.fire(ruleID) })
		if err != nil {
			log.Warn("skipping unparsable schedule", "rule_id", id, "spec", e.Spec(), "error", err)
			continue
		}
		r.jobs[id] = job{entry: e, id: cid}
	}
	return nil
}

// Len returns the number of scheduled jobs.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// fire runs one firing unless another replica already claimed this minute.
// The lock is left to expire so a late replica cannot fire the same tick.
func (r *Runner) fire(ruleID string) {
	if r.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.FireTimeout)
	defer cancel()

	if r.locks != nil {
		lock := r.locks(distlock.FireKey(ruleID, r.now()), r.opts.LockTTL)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			log.Error("fire lock failed", "rule_id", ruleID, "error", err)
			return
		}
		if !ok {
			log.Debug("tick claimed by another replica", "rule_id", ruleID)
			return
		}
		if ext, ok := lock.(distlock.Extender); ok {
			stop := r.keepAlive(ctx, ruleID, ext)
			defer stop()
		}
	}

	start := r.now()
	if err := r.exec.ExecuteScheduledRule(ctx, ruleID); err != nil {
		log.Error("scheduled rule failed", "rule_id", ruleID, "error", err)
		return
	}
	log.Info("scheduled rule fired", "rule_id", ruleID, "duration", r.now().Sub(start))
}

// keepAlive extends the fire lock every half TTL until stop is called, so a
// firing that outlives LockTTL stays exclusive.
func (r *Runner) keepAlive(ctx context.Context, ruleID string, lock distlock.Extender) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.opts.LockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lock.Extend(ctx, r.opts.LockTTL); err != nil {
					log.Warn("fire lock lost during execution", "rule_id", ruleID, "error", err)
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
