// Package threadpool provides a bounded executor for CPU-intensive work,
// distinct from goroutines spawned for blocking IO: a fixed number of
// persistent workers, so a burst of leaf searches cannot balloon into one
// goroutine per split. It is the Go counterpart of C8b in SPEC_FULL.md.
package threadpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

// Panicked is returned when a scheduled task panicked instead of returning
// normally. The pool recovers the panic so one bad task never takes down a
// worker.
type Panicked struct {
	Name string
}

func (p Panicked) Error() string {
	return fmt.Sprintf("task running in the %s thread pool panicked", p.Name)
}

var (
	ongoingTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "leafsearch",
		Subsystem: "thread_pool",
		Name:      "ongoing_tasks",
		Help:      "Number of tasks currently executing in the thread pool.",
	}, []string{"pool"})

	pendingTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "leafsearch",
		Subsystem: "thread_pool",
		Name:      "pending_tasks",
		Help:      "Number of tasks queued but not yet started in the thread pool.",
	}, []string{"pool"})
)

// Pool runs CPU-intensive closures on a small, fixed set of worker
// goroutines. Unlike an unbounded goroutine-per-task scheduler, a task
// queued on a Pool is cancellable right up until a worker actually starts
// running it: if the caller stops waiting on the result before that point,
// the task is skipped entirely rather than wasting a worker slot.
type Pool struct {
	name  string
	tasks chan func()

	ongoing prometheus.Gauge
	pending prometheus.Gauge
}

// New starts a Pool named name with numThreads persistent workers. name is
// used both as the label of the pending/ongoing metrics and in the
// Panicked error message, so it should be a short, stable identifier (e.g.
// "leaf_search"). Multiple
// pools may share a name; their gauges are simply summed under that label,
// matching the label-vec metrics of the pool this was ported from.
func New(name string, numThreads int) *Pool {
	if numThreads < 1 {
		numThreads = 1
	}
	p := &Pool{
		name:    name,
		tasks:   make(chan func()),
		ongoing: ongoingTasks.WithLabelValues(name),
		pending: pendingTasks.WithLabelValues(name),
	}
	for i := 0; i < numThreads; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for run := range p.tasks {
		run()
	}
}

// futureResult carries either a value or the fact that the task panicked.
type futureResult[R any] struct {
	value    R
	panicked bool
}

// Future is the handle returned by Run; the task does not even begin
// running until a worker picks it off the queue, and Wait is the only way
// to observe (or cancel) that.
type Future[R any] struct {
	pool      *Pool
	resultCh  chan futureResult[R]
	cancelled *atomic.Bool
}

// Run schedules fn to run on p and returns immediately with a Future,
// without waiting for a worker to be free. fn is not guaranteed to run at
// all: if every waiter abandons the Future (its context is cancelled)
// before a worker starts fn, the task is dropped.
func Run[R any](p *Pool, fn func() R) *Future[R] {
	p.pending.Inc()
	f := &Future[R]{
		pool:      p,
		resultCh:  make(chan futureResult[R], 1),
		cancelled: atomic.NewBool(false),
	}
	task := func() {
		p.pending.Dec()
		if f.cancelled.Load() {
			return
		}
		p.ongoing.Inc()
		defer p.ongoing.Dec()
		f.resultCh <- runRecovered(fn)
	}
	// the pool's queue is unbuffered, so handing a task to a worker happens
	// in its own goroutine: Run itself must never block on an all-busy
	// pool, only the Future's result is meant to be waited on.
	go func() { p.tasks <- task }()
	return f
}

func runRecovered[R any](fn func() R) (res futureResult[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = futureResult[R]{panicked: true}
		}
	}()
	return futureResult[R]{value: fn()}
}

// Wait blocks until the task completes, panics, or ctx is done. If ctx is
// done first, Wait marks the Future cancelled (best-effort: a worker that
// has already started the task runs it to completion regardless) and
// returns ctx.Err().
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case r := <-f.resultCh:
		if r.panicked {
			var zero R
			return zero, Panicked{Name: f.pool.name}
		}
		return r.value, nil
	case <-ctx.Done():
		f.cancelled.Store(true)
		var zero R
		return zero, ctx.Err()
	}
}

var (
	smallTasksOnce sync.Once
	smallTasks     *Pool
)

// SmallTasks returns the shared pool for CPU-intensive tasks expected to
// take well under 200ms (e.g. a single split's warmup bookkeeping). Long or
// heavy work should get its own Pool rather than share this one.
func SmallTasks() *Pool {
	smallTasksOnce.Do(func() {
		numThreads := runtime.NumCPU() / 3
		if numThreads < 2 {
			numThreads = 2
		}
		smallTasks = New("small_tasks", numThreads)
	})
	return smallTasks
}

// RunSmall schedules fn on the shared SmallTasks pool.
func RunSmall[R any](fn func() R) *Future[R] {
	return Run(SmallTasks(), fn)
}
