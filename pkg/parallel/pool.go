// Package parallel provides the bounded priority task pool the
// extraction stage runs on: highest priority first, per-kind timeouts,
// adaptive concurrency, and early termination on good-enough results.
package parallel

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrTaskCancelled marks queued tasks skipped by early termination and
// tasks aborted when the batch context is cancelled.
var ErrTaskCancelled = errors.New("task cancelled")

// TaskFunc does the work of one task. quality feeds the early
// termination average; tasks without a meaningful quality return 0.
type TaskFunc func(ctx context.Context) (result any, quality float64, err error)

// Task is one unit of work.
type Task struct {
	ID       string
	Kind     string // selects the per-task timeout
	Priority int    // higher runs earlier
	Run      TaskFunc
}

// Result is the outcome of one task, reported in submission order.
type Result struct {
	ID       string
	Success  bool
	Result   any
	Quality  float64
	Duration time.Duration
	Err      error
}

// Config tunes the pool. Zero values use defaults.
type Config struct {
	MinConcurrency int
	MaxConcurrency int

	// Early termination: once MinResults tasks completed and the mean
	// quality reaches QualityThreshold, queued tasks are cancelled.
	// Tasks already running finish and are reported normally.
	EarlyTermination bool
	MinResults       int
	QualityThreshold float64

	KindTimeouts   map[string]time.Duration
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.MinConcurrency <= 0 {
		c.MinConcurrency = 1
	}
	if c.MinConcurrency > c.MaxConcurrency {
		c.MinConcurrency = c.MaxConcurrency
	}
	if c.MinResults <= 0 {
		c.MinResults = 3
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = 0.7
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	return c
}

// defaultKindTimeouts covers the task kinds the pipeline submits.
var defaultKindTimeouts = map[string]time.Duration{
	"firecrawl": 40 * time.Second,
	"scrape":    30 * time.Second,
	"gemini":    12 * time.Second,
}

// Pool runs batches of prioritised tasks.
type Pool struct {
	cfg Config
}

// NewPool creates a pool with the given configuration.
func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg.withDefaults()}
}

// queued wraps a task with its submission index for tie-breaking and
// result placement.
type queued struct {
	task Task
	seq  int
}

type taskHeap []queued

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type poolState struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending    taskHeap
	results    []Result
	completed  int
	succeeded  int
	qualitySum float64
	target     int
	terminated bool
}

// Process runs all tasks and returns one Result per task, in
// submission order. Blocks until every task completed or was
// cancelled.
func (p *Pool) Process(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := &poolState{
		pending: make(taskHeap, 0, len(tasks)),
		results: make([]Result, len(tasks)),
		target:  p.cfg.MaxConcurrency,
	}
	st.cond = sync.NewCond(&st.mu)
	for i, t := range tasks {
		heap.Push(&st.pending, queued{task: t, seq: i})
	}

	// Wake any parked workers when the batch is cancelled from outside.
	go func() {
		<-runCtx.Done()
		st.mu.Lock()
		st.cond.Broadcast()
		st.mu.Unlock()
	}()

	var wg sync.WaitGroup
	for id := 0; id < p.cfg.MaxConcurrency; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(runCtx, st, id)
		}(id)
	}
	wg.Wait()

	// Tasks still queued after termination are reported as cancelled.
	st.mu.Lock()
	for _, q := range st.pending {
		st.results[q.seq] = Result{
			ID:      q.task.ID,
			Success: false,
			Err:     fmt.Errorf("%s: %w", q.task.ID, ErrTaskCancelled),
		}
	}
	st.pending = nil
	results := st.results
	st.mu.Unlock()
	return results
}

func (p *Pool) worker(ctx context.Context, st *poolState, id int) {
	for {
		st.mu.Lock()
		for !st.terminated && len(st.pending) > 0 && id >= st.target && ctx.Err() == nil {
			st.cond.Wait()
		}
		if st.terminated || len(st.pending) == 0 || ctx.Err() != nil {
			st.mu.Unlock()
			return
		}
		q := heap.Pop(&st.pending).(queued)
		if len(st.pending) == 0 {
			st.cond.Broadcast()
		}
		st.mu.Unlock()

		res := p.runTask(ctx, q.task)

		st.mu.Lock()
		st.results[q.seq] = res
		st.completed++
		if res.Success {
			st.succeeded++
			st.qualitySum += res.Quality
		}
		p.adaptLocked(st)
		// Termination only stops dispensing queued tasks; workers mid-task
		// keep their context and finish.
		if p.shouldTerminateLocked(st) {
			st.terminated = true
			slog.Info("Early termination",
				"completed", st.completed,
				"meanQuality", st.qualitySum/float64(st.completed))
		}
		st.cond.Broadcast()
		st.mu.Unlock()
	}
}

func (p *Pool) runTask(ctx context.Context, t Task) Result {
	timeout := p.cfg.DefaultTimeout
	if d, ok := p.cfg.KindTimeouts[t.Kind]; ok {
		timeout = d
	} else if d, ok := defaultKindTimeouts[t.Kind]; ok {
		timeout = d
	}

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, quality, err := t.Run(taskCtx)
	duration := time.Since(start)

	if err != nil {
		// Distinguish pool-wide cancellation from the task's own timeout.
		if ctx.Err() != nil {
			err = fmt.Errorf("%s: %w", t.ID, ErrTaskCancelled)
		}
		return Result{ID: t.ID, Success: false, Duration: duration, Err: err}
	}
	return Result{ID: t.ID, Success: true, Result: result, Quality: quality, Duration: duration}
}

// adaptLocked scales the worker target by recent success rate. Poor
// outcomes shrink toward MinConcurrency to stop hammering a struggling
// upstream.
func (p *Pool) adaptLocked(st *poolState) {
	if st.completed < 4 {
		return
	}
	rate := float64(st.succeeded) / float64(st.completed)
	target := p.cfg.MaxConcurrency
	if rate < 0.5 {
		target = p.cfg.MinConcurrency
	}
	if target != st.target {
		slog.Debug("Adapting pool concurrency", "target", target, "successRate", rate)
		st.target = target
	}
}

func (p *Pool) shouldTerminateLocked(st *poolState) bool {
	if !p.cfg.EarlyTermination || st.terminated {
		return false
	}
	if st.completed < p.cfg.MinResults || len(st.pending) == 0 {
		return false
	}
	return st.qualitySum/float64(st.completed) >= p.cfg.QualityThreshold
}
