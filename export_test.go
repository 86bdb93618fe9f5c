package stagepipe

// DispatchHead dispatches the queue head. It must never be called on an empty queue.
func (r *Runner[In, Out]) DispatchHead() {
	r.dispatchHead()
}

// Complete runs the completion handling of the queue head.
func (r *Runner[In, Out]) Complete(out Out) {
	r.complete(out)
}

// Lanes returns the number of lanes attached to the pool
func (p *Pool) Lanes() int64 {
	if p == nil {
		return 0
	}
	return p.lanes.Load()
}

type Lane = lane

func NewLane(p *Pool) *Lane {
	return newLane(p)
}

func (l *lane) Post(task func()) {
	l.post(task)
}
