package state

import (
	"container/heap"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// VirtualScheduler runs alarms in virtual time. Expiries run in deadline
// order, ties in the order they were armed. It is not safe for concurrent use.
type VirtualScheduler struct {
	clock *clock.TestClock
	queue timerQueue
	seq   uint64
	fired uint64
}

func NewVirtualScheduler(start time.Time) *VirtualScheduler {
	return &VirtualScheduler{
		clock: clock.NewTestClock(start),
	}
}

func (v *VirtualScheduler) Now() time.Time {
	return v.clock.Now()
}

// Clock exposes the virtual time source.
func (v *VirtualScheduler) Clock() clock.Clock {
	return v.clock
}

func (v *VirtualScheduler) NewAlarm() Alarm {
	return &virtualAlarm{sched: v}
}

// AfterFunc runs fn once after d.
func (v *VirtualScheduler) AfterFunc(d time.Duration, fn func()) {
	v.push(d, fn)
}

func (v *VirtualScheduler) push(d time.Duration, fn func()) *timerEntry {
	e := &timerEntry{
		at:  v.Now().Add(max(d, 0)),
		seq: v.seq,
		fn:  fn,
	}
	v.seq++
	heap.Push(&v.queue, e)
	return e
}

// Pending is the number of scheduled expiries.
func (v *VirtualScheduler) Pending() int {
	return len(v.queue)
}

// Fired is the number of expiries run so far.
func (v *VirtualScheduler) Fired() uint64 {
	return v.fired
}

func (v *VirtualScheduler) NextDeadline() (time.Time, bool) {
	if len(v.queue) == 0 {
		return time.Time{}, false
	}
	return v.queue[0].at, true
}

// Step advances to the earliest expiry and runs it.
func (v *VirtualScheduler) Step() bool {
	if len(v.queue) == 0 {
		return false
	}
	e := heap.Pop(&v.queue).(*timerEntry)
	if e.at.After(v.Now()) {
		v.clock.SetTime(e.at)
	}
	v.fired++
	e.fn()
	return true
}

// RunUntil runs every expiry due at or before t, then sets the clock to t.
func (v *VirtualScheduler) RunUntil(t time.Time) {
	for {
		next, ok := v.NextDeadline()
		if !ok || next.After(t) {
			break
		}
		v.Step()
	}
	if t.After(v.Now()) {
		v.clock.SetTime(t)
	}
}

func (v *VirtualScheduler) Advance(d time.Duration) {
	v.RunUntil(v.Now().Add(d))
}

type virtualAlarm struct {
	sched *VirtualScheduler
	entry *timerEntry
	after time.Duration
	fn    func()
}

func (a *virtualAlarm) Arm(d time.Duration, fn func()) {
	a.Cancel()
	a.after = d
	a.fn = fn
	a.entry = a.sched.push(d, a.fire)
}

func (a *virtualAlarm) fire() {
	a.entry = nil
	a.fn()
}

func (a *virtualAlarm) Rearm() {
	if a.fn == nil {
		return
	}
	a.Arm(a.after, a.fn)
}

func (a *virtualAlarm) Cancel() {
	if a.entry == nil {
		return
	}
	heap.Remove(&a.sched.queue, a.entry.index)
	a.entry = nil
}

func (a *virtualAlarm) Pending() bool {
	return a.entry != nil
}

type timerEntry struct {
	at    time.Time
	seq   uint64
	fn    func()
	index int
}

type timerQueue []*timerEntry

func (q timerQueue) Len() int {
	return len(q)
}

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
