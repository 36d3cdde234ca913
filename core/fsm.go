package core

import (
	"time"

	"github.com/encodeous/fuzzyrpl/state"
)

// again rearms the alarm with the duration of the previous transition.
const again time.Duration = -1

// Transition is the result of every timer handler: the next state and how
// long to wait in it. Entering the machine's idle state disarms the alarm,
// every other state arms it.
type Transition[S comparable] struct {
	State S
	After time.Duration
}

// machine binds one alarm to one state variable. All timers of the core are
// machines, so a handler cannot return without deciding what happens next.
type machine[S comparable] struct {
	state    S
	idle     S
	alarm    state.Alarm
	clock    state.AlarmService
	last     time.Duration
	deadline time.Time
	handle   func() Transition[S]
}

func newMachine[S comparable](svc state.AlarmService, idle S, handle func() Transition[S]) *machine[S] {
	return &machine[S]{
		state:  idle,
		idle:   idle,
		alarm:  svc.NewAlarm(),
		clock:  svc,
		handle: handle,
	}
}

func (m *machine[S]) apply(t Transition[S]) {
	m.state = t.State
	if t.State == m.idle {
		m.alarm.Cancel()
		return
	}
	if t.After == again {
		m.alarm.Rearm()
	} else {
		m.last = max(t.After, 0)
		m.alarm.Arm(m.last, m.expire)
	}
	m.deadline = m.clock.Now().Add(m.last)
}

func (m *machine[S]) expire() {
	m.apply(m.handle())
}

func (m *machine[S]) stop() {
	m.apply(Transition[S]{State: m.idle})
}

func (m *machine[S]) active() bool {
	return m.state != m.idle
}

// remaining is the time left until the armed alarm expires.
func (m *machine[S]) remaining() time.Duration {
	if !m.active() {
		return 0
	}
	return max(m.deadline.Sub(m.clock.Now()), 0)
}
