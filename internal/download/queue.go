package download

import "sync"

// Job is one reference waiting to be fetched, with the URL it is relative to.
type Job struct {
	Ref  string
	Base string
}

// queue is a FIFO that workers drain until it is empty and no job is in flight,
// since a job in flight may still push follow-up jobs.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Job
	pending int
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(jobs ...Job) {
	if len(jobs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, jobs...)
	q.pending += len(jobs)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until a job is available. It returns false once every pushed job is done.
func (q *queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && q.pending > 0 {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Job{}, false
	}
	job := q.items[0]
	q.items = q.items[1:]
	return job, true
}

func (q *queue) done() {
	q.mu.Lock()
	q.pending--
	finished := q.pending == 0
	q.mu.Unlock()
	if finished {
		q.cond.Broadcast()
	}
}
