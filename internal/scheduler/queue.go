package scheduler

import "time"

type job struct {
	id     int64
	fireAt time.Time
	cb     Callback
	index  int
	done   chan struct{} // closed once the job has fired or been skipped
}

// jobQueue is a container/heap min-heap ordered by (fireAt, id).
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if !q[i].fireAt.Equal(q[j].fireAt) {
		return q[i].fireAt.Before(q[j].fireAt)
	}
	return q[i].id < q[j].id
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}
