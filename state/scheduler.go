package state

import (
	"fmt"
	"time"
)

// Alarm is a single-shot timer. Callbacks never run concurrently with each
// other or with the code that armed them.
type Alarm interface {
	// Arm schedules fn after d, replacing any pending expiry.
	Arm(d time.Duration, fn func())
	// Rearm schedules the last callback again with the last duration, measured from now.
	Rearm()
	Cancel()
	// Pending reports whether the alarm is armed and has not fired yet.
	Pending() bool
}

// AlarmService creates alarms that share one clock and one execution context.
type AlarmService interface {
	NewAlarm() Alarm
	Now() time.Time
}

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	e.Dispatch(func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return err
	})
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

func (e *Env) ScheduleTask(fun func(*State) error, delay time.Duration) {
	time.AfterFunc(delay, func() {
		e.Dispatch(fun)
	})
}

func (e *Env) Now() time.Time {
	return e.Clock.Now()
}

// NewAlarm returns an alarm whose callbacks are dispatched onto the main loop.
// Arm, Rearm and Cancel must only be called from the main loop.
func (e *Env) NewAlarm() Alarm {
	return &envAlarm{env: e}
}

type envAlarm struct {
	env   *Env
	timer *time.Timer
	gen   uint64
	after time.Duration
	fn    func()
	armed bool
}

func (a *envAlarm) Arm(d time.Duration, fn func()) {
	a.Cancel()
	a.after = d
	a.fn = fn
	a.armed = true
	gen := a.gen
	a.timer = time.AfterFunc(d, func() {
		a.env.Dispatch(func(s *State) error {
			// a newer Arm or a Cancel superseded this expiry
			if a.gen != gen || !a.armed {
				return nil
			}
			a.armed = false
			a.fn()
			return nil
		})
	})
}

func (a *envAlarm) Rearm() {
	if a.fn == nil {
		return
	}
	a.Arm(a.after, a.fn)
}

func (a *envAlarm) Cancel() {
	a.gen++
	a.armed = false
	if a.timer != nil {
		a.timer.Stop()
	}
}

func (a *envAlarm) Pending() bool {
	return a.armed
}
