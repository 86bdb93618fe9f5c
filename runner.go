package stagepipe

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fogfactory/stagepipe/log"
)

var (
	// ErrNilStage is returned when building a runner or a link without a stage or runner.
	ErrNilStage = errors.New("nil stage")
	// ErrEmptyQueue is the panic value of a dispatch or a completion on an empty queue. It means the
	// queue invariants are broken.
	ErrEmptyQueue = errors.New("dispatch on empty queue")
)

type options struct {
	pool   *Pool
	logger logrus.FieldLogger
}

// Option configures a Runner.
type Option func(*options)

// WithPool runs the runner lanes on pool. Runners of one pipeline usually share the same pool.
func WithPool(pool *Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithLogger sets the logger receiving the per-item diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// Runner wraps a Stage with a FIFO queue and serial execution.
//
// Items are processed one at a time, in enqueue order, and each output is handed to the observer
// registered with OnCompletion. The queue is unbounded: Enqueue never blocks and never fails.
//
// A stage must not panic. A panic stops the runner for good: the item stays in flight and the queue
// never moves again. On a nil Pool the panic crashes the process, on an ants pool it is recovered by the
// pool and handed to its panic handler, see NewPool. Report failures in the output instead, see Try.
type Runner[In, Out any] struct {
	id    string
	name  string
	stage Stage[In, Out]
	log   logrus.FieldLogger
	pool  *Pool

	queueLane   *lane
	computeLane *lane

	// only touched from the queue lane
	queue    []In
	observer func(Out)

	queued   atomic.Int64
	inFlight atomic.Bool
	linked   atomic.Bool
	detached atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// NewRunner creates a runner named name around stage.
//
// With a bounded pool, every runner takes two workers out of the pool capacity, and ErrPoolTooSmall is
// returned once it is exhausted.
func NewRunner[In, Out any](name string, stage Stage[In, Out], opts ...Option) (*Runner[In, Out], error) {
	if stage == nil {
		return nil, fmt.Errorf("%w: runner %q", ErrNilStage, name)
	}
	if f, ok := stage.(StageFunc[In, Out]); ok && f == nil {
		var in In
		var out Out
		return nil, fmt.Errorf("%w: runner %q from %T to %T", ErrNilStage, name, in, out)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLogger()
	}
	if err := o.pool.attach(name); err != nil {
		return nil, err
	}

	id := xid.New().String()
	return &Runner[In, Out]{
		id:          id,
		name:        name,
		stage:       stage,
		log:         o.logger.WithFields(logrus.Fields{"runner": name, "id": id}),
		pool:        o.pool,
		queueLane:   newLane(o.pool),
		computeLane: newLane(o.pool),
	}, nil
}

// Name returns the diagnostic label given at construction.
func (r *Runner[In, Out]) Name() string {
	return r.name
}

// ID returns the unique id assigned at construction.
func (r *Runner[In, Out]) ID() string {
	return r.id
}

// Enqueue appends item to the queue. If the queue was empty, item is dispatched right away.
//
// Enqueue returns before item is queued: the append happens on the runner queue lane, in call order.
func (r *Runner[In, Out]) Enqueue(item In) {
	r.queueLane.post(func() {
		r.queue = append(r.queue, item)
		r.queued.Store(int64(len(r.queue)))
		if len(r.queue) == 1 {
			r.dispatchHead()
		}
	})
}

// OnCompletion registers the observer called with every output, replacing the previous one. A nil fn
// removes it.
//
// The observer runs on the queue lane: it must not block, and it applies to every item enqueued after
// OnCompletion returns. Enqueuing into another runner, as a Link does, is fine.
func (r *Runner[In, Out]) OnCompletion(fn func(Out)) {
	r.queueLane.post(func() {
		r.observer = fn
	})
}

// Len returns the number of items waiting or being processed.
func (r *Runner[In, Out]) Len() int {
	return int(r.queued.Load())
}

// Stats returns the rolling duration statistics.
func (r *Runner[In, Out]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Snapshot returns the runner state at one instant: queue length, in flight flag and stats.
func (r *Runner[In, Out]) Snapshot() Snapshot {
	return Snapshot{
		Name:     r.name,
		ID:       r.id,
		Queued:   r.Len(),
		InFlight: r.inFlight.Load(),
		Stats:    r.Stats(),
	}
}

// Detach gives the two workers reserved by the runner back to its pool capacity. Only call it on a runner
// which is done with its items and will not be used anymore, typically when building a chain fails
// halfway. Calling it again has no effect.
func (r *Runner[In, Out]) Detach() {
	if r.detached.CompareAndSwap(false, true) {
		r.pool.detach()
	}
}

// dispatchHead hands the queue head to the compute lane. Queue lane only.
func (r *Runner[In, Out]) dispatchHead() {
	head, ok := lo.First(r.queue)
	if !ok {
		panic(fmt.Errorf("%w: runner %q", ErrEmptyQueue, r.name))
	}
	r.computeLane.post(func() {
		r.compute(head)
	})
}

// compute runs the stage on item. Compute lane only.
func (r *Runner[In, Out]) compute(item In) {
	r.inFlight.Store(true)
	start := time.Now()
	out := r.stage.Process(item)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.stats = r.stats.AddDuration(elapsed)
	stats := r.stats
	r.mu.Unlock()
	r.inFlight.Store(false)

	r.log.WithFields(logrus.Fields{
		"elapsed_ms": elapsed.Milliseconds(),
		"avg_ms":     stats.AverageMillis,
		"samples":    stats.Samples,
	}).Debugf("%s process", r.name)

	r.queueLane.post(func() {
		r.complete(out)
	})
}

// complete pops the processed head, dispatches the next one and notifies the observer. Queue lane only.
func (r *Runner[In, Out]) complete(out Out) {
	if len(r.queue) == 0 {
		panic(fmt.Errorf("%w: runner %q completed an item it never queued", ErrEmptyQueue, r.name))
	}
	var zero In
	r.queue[0] = zero
	r.queue = r.queue[1:]
	r.queued.Store(int64(len(r.queue)))

	if len(r.queue) > 0 {
		r.dispatchHead()
	}
	if r.observer != nil {
		r.observer(out)
	}
}
