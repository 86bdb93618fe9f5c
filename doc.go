/*
stagepipe chains typed stages into an asynchronous, in-process pipeline.

Each stage is wrapped in a Runner. A Runner owns a private FIFO queue and two serial lanes:

- a queue lane, which appends enqueued items, pops completed ones and calls the observer
- a compute lane, which runs Stage.Process on the queue head, one item at a time

Enqueue only posts a closure to the queue lane, so producers never wait on a computation.
When the queue goes from empty to one item, the head is dispatched to the compute lane. When the
computation completes, the head is removed, the next head (if any) is dispatched, then the
registered observer receives the output. Outputs therefore come out in enqueue order, and a runner
never computes two items at once.

A Link registers, on its head runner, an observer which enqueues every output into the next runner:

	square, _ := stagepipe.NewRunner("square", stagepipe.StageFunc[int, int](func(i int) int { return i * i }))
	negate, _ := stagepipe.NewRunner("negate", stagepipe.StageFunc[int, int](func(i int) int { return -i }))
	link, _ := stagepipe.NewLink(square, negate)
	negate.OnCompletion(func(i int) { fmt.Println(i) })
	link.Enqueue(2) // prints -4

Longer chains are built by nesting links: the next runner of a link is the head of the following one.

Lanes run on a Pool, a thin layer over an ants goroutine pool shared by every runner of a pipeline.
A lane borrows a goroutine only while it has pending work, so idle stages cost nothing. A nil Pool
runs lanes on plain goroutines.

Queues are unbounded and there is no cancellation: once enqueued, an item is eventually processed.
Stages report failures through their output type, see Result and Try. The pipeline forwards a failed
output like any other.

Every computation updates a rolling average of its duration, in whole milliseconds, using the
incremental mean avg' = (avg*n + latest) / (n+1). The truncation drift of this recurrence is kept
as is.
*/

package stagepipe
