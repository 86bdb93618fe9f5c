package stagepipe_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"

	"github.com/fogfactory/stagepipe"
)

func InitPool(t testing.TB, size int, opts ...ants.Option) *stagepipe.Pool {
	pool, err := stagepipe.NewPool(size, opts...)
	td.Require(t).CmpNoError(err)
	t.Cleanup(func() {
		td.CmpNoError(t, pool.ReleaseTimeout(2*time.Second))
	})
	return pool
}

func TestPool(t *testing.T) {

	t.Run("nil_pool", func(t *testing.T) {
		// Arrange
		var pool *stagepipe.Pool

		// Act & Assert
		td.Cmp(t, pool.Cap(), -1)
		td.Cmp(t, pool.Running(), 0)
		td.CmpNoError(t, pool.ReleaseTimeout(time.Millisecond))
		pool.Release() // no-op
	})

	t.Run("unbounded_pool", func(t *testing.T) {
		// Act
		pool := InitPool(t, 0)

		// Assert
		td.Cmp(t, pool.Cap(), -1)
	})

	t.Run("bounded_pool", func(t *testing.T) {
		// Act
		pool := InitPool(t, 4)

		// Assert
		td.Cmp(t, pool.Cap(), 4)
	})

	t.Run("error_invalid_options", func(t *testing.T) {
		// Act
		pool, err := stagepipe.NewPool(0, ants.WithPreAlloc(true)) // pre allocation needs a bounded pool

		// Assert
		td.CmpErrorIs(t, err, ants.ErrInvalidPreAllocSize)
		td.CmpNil(t, pool)
	})

	t.Run("attach_runners", func(t *testing.T) {
		// Arrange
		pool := InitPool(t, 4)
		identity := stagepipe.StageFunc[int, int](func(i int) int { return i })

		// Act
		_, err1 := stagepipe.NewRunner("first", identity, stagepipe.WithPool(pool))
		_, err2 := stagepipe.NewRunner("second", identity, stagepipe.WithPool(pool))
		_, err3 := stagepipe.NewRunner("third", identity, stagepipe.WithPool(pool))

		// Assert
		td.CmpNoError(t, err1)
		td.CmpNoError(t, err2)
		td.CmpErrorIs(t, err3, stagepipe.ErrPoolTooSmall)
		td.Cmp(t, pool.Lanes(), int64(4), "failed runner must not keep its reservation")
	})

	t.Run("detach_runner", func(t *testing.T) {
		// Arrange
		pool := InitPool(t, 4)
		identity := stagepipe.StageFunc[int, int](func(i int) int { return i })
		first, err := stagepipe.NewRunner("first", identity, stagepipe.WithPool(pool))
		td.Require(t).CmpNoError(err)
		_, err = stagepipe.NewRunner("second", identity, stagepipe.WithPool(pool))
		td.Require(t).CmpNoError(err)

		// Act
		first.Detach()
		first.Detach()
		_, err = stagepipe.NewRunner("third", identity, stagepipe.WithPool(pool))

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, pool.Lanes(), int64(4))
	})

	t.Run("detach_nil_pool", func(t *testing.T) {
		// Arrange
		runner, err := stagepipe.NewRunner("nil", stagepipe.StageFunc[int, int](func(i int) int { return i }))
		td.Require(t).CmpNoError(err)

		// Act & Assert
		td.CmpNotPanic(t, runner.Detach)
	})

	t.Run("unbounded_pool_attach_many", func(t *testing.T) {
		// Arrange
		pool := InitPool(t, 0)
		identity := stagepipe.StageFunc[int, int](func(i int) int { return i })

		// Act
		errs := lo.Map(lo.Range(20), func(i, _ int) error {
			_, err := stagepipe.NewRunner("runner", identity, stagepipe.WithPool(pool))
			return err
		})

		// Assert
		td.CmpLen(t, errs, 20)
		td.Cmp(t, lo.Compact(errs), td.Empty())
	})
}

func TestLane(t *testing.T) {

	for name, newPool := range map[string]func(t *testing.T) *stagepipe.Pool{
		"nil_pool":       func(*testing.T) *stagepipe.Pool { return nil },
		"unbounded_pool": func(t *testing.T) *stagepipe.Pool { return InitPool(t, 0) },
		"bounded_pool":   func(t *testing.T) *stagepipe.Pool { return InitPool(t, 2) },
	} {
		newPool := newPool
		t.Run("serial_in_order_"+name, func(t *testing.T) {
			// Arrange
			lane := stagepipe.NewLane(newPool(t))
			var (
				wg      sync.WaitGroup
				running atomic.Int32
				overlap atomic.Bool
				got     []int
			)
			wg.Add(100)

			// Act
			for _, i := range lo.Range(100) {
				i := i
				lane.Post(func() {
					defer wg.Done()
					if running.Add(1) > 1 {
						overlap.Store(true)
					}
					if i%10 == 0 {
						time.Sleep(time.Millisecond) // let posts pile up behind a slow task
					}
					got = append(got, i)
					running.Add(-1)
				})
			}
			wg.Wait()

			// Assert
			td.CmpFalse(t, overlap.Load(), "two lane tasks ran at the same time")
			td.Cmp(t, got, lo.Range(100))
		})
	}

	t.Run("post_does_not_wait", func(t *testing.T) {
		// Arrange
		lane := stagepipe.NewLane(InitPool(t, 0))
		release := make(chan struct{})
		done := make(chan struct{})
		lane.Post(func() { <-release })

		// Act
		go func() {
			lane.Post(func() { close(done) })
			close(release)
		}()

		// Assert
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("second post blocked behind the running task")
		}
	})

	t.Run("panic_released_pool", func(t *testing.T) {
		// Arrange
		pool, err := stagepipe.NewPool(0)
		td.Require(t).CmpNoError(err)
		td.Require(t).CmpNoError(pool.ReleaseTimeout(time.Second))
		lane := stagepipe.NewLane(pool)

		// Act & Assert
		td.CmpPanic(t, func() { lane.Post(func() {}) },
			td.All(td.ErrorIs(stagepipe.ErrPoolClosed), td.ErrorIs(ants.ErrPoolClosed)))
	})
}
