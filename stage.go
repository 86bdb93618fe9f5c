package stagepipe

import "github.com/samber/lo"

// Stage transforms one input into one output.
//
// Process runs on the runner compute lane, one call at a time. It must not block indefinitely, since it
// would stall the whole queue of its runner. A stage that cannot produce a valid output reports it in
// its output type, see Result.
type Stage[In, Out any] interface {
	Process(item In) Out
}

// StageFunc adapts a function to a Stage.
type StageFunc[In, Out any] func(In) Out

// Process calls f.
func (f StageFunc[In, Out]) Process(item In) Out {
	return f(item)
}

// Fuse merges several stages of the same type into one, called in order within a single computation.
func Fuse[T any](stages ...Stage[T, T]) Stage[T, T] {
	return StageFunc[T, T](func(t T) T {
		return lo.Reduce(stages, func(val T, stage Stage[T, T], _ int) T { return stage.Process(val) }, t)
	})
}

// Compose chains two stages into one. Unlike a Link, both run within the same computation.
func Compose[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return StageFunc[A, C](func(a A) C {
		return second.Process(first.Process(a))
	})
}
