package stagepipe

import (
	"errors"
	"fmt"
)

// ErrAlreadyLinked is returned when linking a runner which already forwards its outputs.
var ErrAlreadyLinked = errors.New("runner already linked")

// Link forwards every output of a head runner into the queue of a next runner.
//
// Without a next runner, the head is terminal: its own observer is the only consumer of its outputs.
type Link[In, Mid, Out any] struct {
	head *Runner[In, Mid]
	next *Runner[Mid, Out]
}

// NewLink binds head to next. next may be nil. Nesting links, with the next runner of a link heading the
// following one, builds chains of any length.
//
// A runner heads at most one link: rewiring a running chain would break its ordering, so a second link
// on the same head returns ErrAlreadyLinked.
func NewLink[In, Mid, Out any](head *Runner[In, Mid], next *Runner[Mid, Out]) (*Link[In, Mid, Out], error) {
	if head == nil {
		var in In
		var mid Mid
		return nil, fmt.Errorf("%w: nil head runner from %T to %T", ErrNilStage, in, mid)
	}
	if next != nil {
		if err := Forward(head, next); err != nil {
			return nil, err
		}
	}
	return &Link[In, Mid, Out]{head: head, next: next}, nil
}

// NewTerminalLink wraps a head runner without a next runner.
func NewTerminalLink[In, Out any](head *Runner[In, Out]) (*Link[In, Out, Out], error) {
	return NewLink[In, Out, Out](head, nil)
}

// Forward registers on head an observer enqueuing every output into next, without building a Link.
func Forward[In, Mid, Out any](head *Runner[In, Mid], next *Runner[Mid, Out]) error {
	if head == nil || next == nil {
		var mid Mid
		return fmt.Errorf("%w: cannot forward %T between nil runners", ErrNilStage, mid)
	}
	if !head.linked.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %q already forwards its outputs", ErrAlreadyLinked, head.Name())
	}
	head.OnCompletion(next.Enqueue)
	return nil
}

// Enqueue pushes item into the head runner.
func (l *Link[In, Mid, Out]) Enqueue(item In) {
	l.head.Enqueue(item)
}

// Head returns the head runner.
func (l *Link[In, Mid, Out]) Head() *Runner[In, Mid] {
	return l.head
}

// Next returns the next runner, nil for a terminal link.
func (l *Link[In, Mid, Out]) Next() *Runner[Mid, Out] {
	return l.next
}

// Terminal reports whether the link has no next runner.
func (l *Link[In, Mid, Out]) Terminal() bool {
	return l.next == nil
}
