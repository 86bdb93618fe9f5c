package stagepipe

import "sync"

// lane runs posted tasks one at a time, in post order.
//
// It holds a pool worker only while tasks are pending: the first post on an idle lane submits a drain
// task, which runs until the backlog is empty.
type lane struct {
	pool    *Pool
	mu      sync.Mutex
	tasks   []func()
	running bool
}

func newLane(pool *Pool) *lane {
	return &lane{pool: pool}
}

// post appends task to the lane backlog. It never waits on a running task.
func (l *lane) post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	l.pool.submit(l.drain)
}

func (l *lane) drain() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.running = false
			l.tasks = nil
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		task()
	}
}
