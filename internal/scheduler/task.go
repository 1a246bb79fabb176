package scheduler

import (
	"context"
	"sync"
)

// TaskHooks receive a Task's lifecycle events. They run while the task lock is
// held and must not call back into the Task.
type TaskHooks[R any] struct {
	OnStart   func()         // a new run began, previous result is stale
	OnSuccess func(result R) // the current run succeeded
	OnError   func(err error)
	OnReset   func() // dependencies changed and the task is disabled
}

// Task re-runs Run whenever the key of its dependencies changes.
// A newer run supersedes any in-flight one: the older run is not cancelled,
// but its result is discarded and it stops retrying.
type Task[D, R any] struct {
	Key     func(D) string
	Enabled func(D) bool
	Run     func(ctx context.Context, deps D) (R, error)
	Policy  RetryPolicy
	Hooks   TaskHooks[R]

	ctx     context.Context
	mu      sync.Mutex
	wg      sync.WaitGroup
	gen     uint64
	hasDeps bool
	lastKey string
	deps    D
}

// NewTask binds the task to ctx, which bounds every run and retry wait.
func NewTask[D, R any](ctx context.Context, key func(D) string, enabled func(D) bool,
	run func(context.Context, D) (R, error), policy RetryPolicy, hooks TaskHooks[R]) *Task[D, R] {
	return &Task[D, R]{
		Key:     key,
		Enabled: enabled,
		Run:     run,
		Policy:  policy,
		Hooks:   hooks,
		ctx:     ctx,
	}
}

// Update records new dependencies. An unchanged key is a no-op.
// It reports whether a run was started.
func (t *Task[D, R]) Update(deps D) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.Key(deps)
	if t.hasDeps && k == t.lastKey {
		return false
	}
	t.hasDeps = true
	t.lastKey = k
	t.deps = deps
	t.gen++

	if !t.Enabled(deps) {
		if t.Hooks.OnReset != nil {
			t.Hooks.OnReset()
		}
		return false
	}
	t.startLocked()
	return true
}

// Rerun starts a fresh run with the current dependencies if the task is enabled.
func (t *Task[D, R]) Rerun() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasDeps || !t.Enabled(t.deps) {
		return false
	}
	t.gen++
	t.startLocked()
	return true
}

// Generation increases on every dependency change and rerun.
func (t *Task[D, R]) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Wait blocks until every started run has returned, superseded ones included.
func (t *Task[D, R]) Wait() { t.wg.Wait() }

func (t *Task[D, R]) startLocked() {
	gen, deps := t.gen, t.deps
	if t.Hooks.OnStart != nil {
		t.Hooks.OnStart()
	}
	t.wg.Add(1)
	go t.exec(gen, deps)
}

func (t *Task[D, R]) exec(gen uint64, deps D) {
	defer t.wg.Done()

	superseded := func() bool { return t.Generation() != gen }
	var result R
	err := t.Policy.Do(t.ctx, func(ctx context.Context, _ int) error {
		r, err := t.Run(ctx, deps)
		if err == nil {
			result = r
		}
		return err
	}, superseded)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return
	}
	if err != nil {
		// shutdown, not a failure
		if t.ctx.Err() != nil {
			return
		}
		if t.Hooks.OnError != nil {
			t.Hooks.OnError(err)
		}
		return
	}
	if t.Hooks.OnSuccess != nil {
		t.Hooks.OnSuccess(result)
	}
}
