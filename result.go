package stagepipe

import (
	"time"

	"github.com/google/uuid"
)

// Result carries either a value or the error which prevented a stage from producing it.
type Result[T any] struct {
	id        uuid.UUID
	createdAt time.Time
	value     T
	err       error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		value:     v,
	}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		err:       err,
	}
}

// Value returns the wrapped value, the zero value for a failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, nil on success.
func (r Result[T]) Err() error {
	return r.err
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// ID returns the random id assigned by Ok or Fail. Then keeps the id of the failures it passes through.
func (r Result[T]) ID() uuid.UUID {
	return r.id
}

// CreatedAt returns the creation time (UTC).
func (r Result[T]) CreatedAt() time.Time {
	return r.createdAt
}

// Try adapts a fallible function to a Stage whose output reports the error.
func Try[In, Out any](fn func(In) (Out, error)) Stage[In, Result[Out]] {
	return StageFunc[In, Result[Out]](func(in In) Result[Out] {
		out, err := fn(in)
		if err != nil {
			return Fail[Out](err)
		}
		return Ok(out)
	})
}

// Then adapts a fallible function to a Stage over results. Failed inputs are passed through, keeping
// their error, id and creation time, and fn is not called.
func Then[In, Out any](fn func(In) (Out, error)) Stage[Result[In], Result[Out]] {
	return StageFunc[Result[In], Result[Out]](func(in Result[In]) Result[Out] {
		if !in.IsOk() {
			return Result[Out]{id: in.id, createdAt: in.createdAt, err: in.err}
		}
		out, err := fn(in.value)
		if err != nil {
			return Fail[Out](err)
		}
		return Ok(out)
	})
}
