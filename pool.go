package stagepipe

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolTooSmall is returned by NewRunner when a bounded pool has no room left for the runner lanes.
	ErrPoolTooSmall = errors.New("pool too small")
	// ErrPoolClosed is the panic value of a lane posting to a released pool.
	ErrPoolClosed = errors.New("pool closed")
)

// Pool provides goroutines to the lanes of every runner it is attached to.
//
// A nil Pool is valid: lanes then run on plain goroutines.
type Pool struct {
	pool  *ants.Pool
	lanes atomic.Int64
}

// NewPool builds a Pool backed by an ants pool of the given size. A size <= 0 means the pool is unbounded.
//
// A bounded pool must provide two workers per attached runner, see NewRunner. Worker reservations last
// until the runner is detached, see Runner.Detach.
//
// opts are passed to ants. ants.WithPanicHandler is called with the value of a panicking stage; without
// it, ants logs the panic. Either way the runner of that stage is stopped, see Runner.
func NewPool(size int, opts ...ants.Option) (*Pool, error) {
	p, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p}, nil
}

// Release closes the underlying pool. Idle workers exit, running ones finish their current task.
func (p *Pool) Release() {
	if p == nil {
		return
	}
	p.pool.Release()
}

// ReleaseTimeout is like Release but waits, up to timeout, for every worker to exit.
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	if p == nil {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Cap returns the pool capacity, -1 when unbounded.
func (p *Pool) Cap() int {
	if p == nil {
		return -1
	}
	return p.pool.Cap()
}

// Running returns the number of workers currently running a task.
func (p *Pool) Running() int {
	if p == nil {
		return 0
	}
	return p.pool.Running()
}

// attach reserves room for the two lanes of a runner.
func (p *Pool) attach(name string) error {
	if p == nil {
		return nil
	}
	lanes := p.lanes.Add(2)
	if c := p.pool.Cap(); c > 0 && lanes > int64(c) {
		p.lanes.Add(-2)
		return fmt.Errorf("%w: runner %q needs %d workers, pool capacity is %d", ErrPoolTooSmall, name, lanes, c)
	}
	return nil
}

// detach releases the room reserved by attach.
func (p *Pool) detach() {
	if p == nil {
		return
	}
	p.lanes.Add(-2)
}

// submit runs f in a pool worker, or in a new goroutine for a nil pool.
func (p *Pool) submit(f func()) {
	if p == nil {
		go f()
		return
	}
	if err := p.pool.Submit(f); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			err = fmt.Errorf("%w: %w", ErrPoolClosed, err)
		}
		// lanes cannot report errors to their producer, a failed submit leaves the lane stuck
		panic(err)
	}
}
