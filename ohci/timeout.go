package ohci

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// timeoutItem is one pending split-timeout registration.
type timeoutItem struct {
	due   int64
	token uint64
	fn    func()
	index int
}

type timeoutHeap []*timeoutItem

func (h timeoutHeap) Len() int           { return len(h) }
func (h timeoutHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h timeoutHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timeoutHeap) Push(x any)        { it := x.(*timeoutItem); it.index = len(*h); *h = append(*h, it) }
func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}
func (h timeoutHeap) Top() *timeoutItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// timeoutQueue is the monotonic timer queue behind the split-timeout
// worker (spec.md §2): the TL schedules one deadline per split
// transaction; its callback runs exactly once when it expires, and never
// if Cancel removes it first because the response arrived.
type timeoutQueue struct {
	mu    sync.Mutex
	wake  chan struct{}
	items map[uint64]*timeoutItem
	h     timeoutHeap
	next  uint64

	// limiter caps how many expired timeouts fire in one pass. A
	// pathological backlog (e.g. after a long scheduler stall) would
	// otherwise invoke every overdue TL callback back-to-back on the
	// worker goroutine; the remainder simply fires on the next wake.
	limiter *rate.Limiter
}

func newTimeoutQueue() *timeoutQueue {
	return &timeoutQueue{
		wake:    make(chan struct{}, 1),
		items:   make(map[uint64]*timeoutItem),
		limiter: rate.NewLimiter(rate.Limit(1000), 1000),
	}
}

// Schedule arms fn to run after d elapses, returning a token Cancel can
// use to disarm it first.
func (q *timeoutQueue) Schedule(d time.Duration, fn func()) uint64 {
	q.mu.Lock()
	q.next++
	token := q.next
	it := &timeoutItem{due: time.Now().Add(d).UnixNano(), token: token, fn: fn, index: -1}
	q.items[token] = it
	heap.Push(&q.h, it)
	q.mu.Unlock()

	q.wakeup()
	return token
}

// Cancel disarms a pending timeout; a no-op if it already fired.
func (q *timeoutQueue) Cancel(token uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[token]
	if !ok {
		return
	}
	heap.Remove(&q.h, it.index)
	delete(q.items, token)
}

func (q *timeoutQueue) nextWait() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	top := q.h.Top()
	if top == nil {
		return -1
	}

	wait := top.due - time.Now().UnixNano()
	if wait < 0 {
		return 0
	}
	return wait
}

// run drives the queue until stop closes.
func (q *timeoutQueue) run(stop <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := q.nextWait()

		if wait < 0 {
			select {
			case <-stop:
				return
			case <-q.wake:
				continue
			}
		}

		if wait == 0 {
			q.fireDue()
			continue
		}

		timer.Reset(time.Duration(wait))
		select {
		case <-stop:
			return
		case <-q.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

func (q *timeoutQueue) fireDue() {
	for {
		if !q.limiter.Allow() {
			return
		}

		q.mu.Lock()
		top := q.h.Top()
		if top == nil || top.due > time.Now().UnixNano() {
			q.mu.Unlock()
			return
		}

		it := heap.Pop(&q.h).(*timeoutItem)
		delete(q.items, it.token)
		q.mu.Unlock()

		it.fn()
	}
}

func (q *timeoutQueue) wakeup() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// ScheduleTimeout exposes the split-timeout worker to the TL (spec.md
// §2): the TL is responsible for tlabel bookkeeping and deciding what a
// timeout means, the core only guarantees fn runs once after d unless
// Cancel beats it there.
func (u *Unit) ScheduleTimeout(d time.Duration, fn func()) uint64 {
	return u.timeouts.Schedule(d, fn)
}

// CancelTimeout disarms a timeout scheduled with ScheduleTimeout, used
// when the matching response arrives first.
func (u *Unit) CancelTimeout(token uint64) {
	u.timeouts.Cancel(token)
}

func (u *Unit) timeoutWorker() {
	defer u.workers.wg.Done()
	u.timeouts.run(u.workers.stop)
}
