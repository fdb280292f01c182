package recorder

// event is a raw entry or exit that could not be applied immediately.
type event struct {
	name     string
	duration int64
	exit     bool
}

// eventQueue is a FIFO of deferred events.
//
// The queue is not synchronized. Callers must hold the Recorder's status word
// in a state that excludes every other queue user: applying (owner),
// queuing entered from applying or snapshot (owner appending), or queuing
// entered from idle (drainer).
type eventQueue struct {
	events []event
}

func (q *eventQueue) push(ev event) {
	q.events = append(q.events, ev)
}

func (q *eventQueue) len() int {
	return len(q.events)
}

// drain calls apply for every queued event in arrival order and empties the
// queue, keeping its backing array. It returns the number of events applied.
func (q *eventQueue) drain(apply func(event)) int {
	n := len(q.events)
	for i := range q.events {
		apply(q.events[i])
	}
	clear(q.events)
	q.events = q.events[:0]
	return n
}
