// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package core

import (
	"reflect"

	"github.com/openrisc-sim/or1kcore/internal/trace"
)

// EventFunc is a scheduled callback; payload is opaque to the
// scheduler (spec.md §3, §9: events as closures or function-pointer +
// payload pairs).
type EventFunc func(payload any)

type event struct {
	fireAt  uint64
	seq     uint64
	cb      EventFunc
	payload any
	tag     string
	cancelled bool
}

// maxCascade bounds zero-delay event cascades within a single tick, so
// a misbehaving event that keeps re-arming itself at delay zero cannot
// spin the scheduler forever (spec.md §4.4).
const maxCascade = 256

// Scheduler is component D: a time-ordered event queue driving the
// simulated clock.
type Scheduler struct {
	now     uint64
	events  []*event
	nextSeq uint64
	tracer  *trace.Tracer
}

func NewScheduler(tracer *trace.Tracer) *Scheduler {
	return &Scheduler{tracer: tracer}
}

// Now returns the current simulated cycle count.
func (s *Scheduler) Now() uint64 { return s.now }

// Advance moves the simulated clock forward by n cycles without
// firing events; callers run DoScheduler separately once the clock
// has moved.
func (s *Scheduler) Advance(n uint64) { s.now += n }

// Add enqueues an event to fire at now + delayCycles (spec.md §4.4).
func (s *Scheduler) Add(cb EventFunc, payload any, delayCycles uint64, tag string) {
	e := &event{
		fireAt: s.now + delayCycles, seq: s.nextSeq, cb: cb, payload: payload, tag: tag,
	}
	s.nextSeq++
	s.insert(e)
}

// NextInsn schedules cb to fire after the current instruction retires
// (delay zero), per spec.md §4.4.
func (s *Scheduler) NextInsn(cb EventFunc, payload any) {
	s.Add(cb, payload, 0, "")
}

// insert keeps s.events sorted by (fireAt, seq) ascending so that ties
// break in insertion order (spec.md §4.4's ordering guarantee).
func (s *Scheduler) insert(e *event) {
	i := len(s.events)
	for i > 0 && (s.events[i-1].fireAt > e.fireAt ||
		(s.events[i-1].fireAt == e.fireAt && s.events[i-1].seq > e.seq)) {
		i--
	}
	s.events = append(s.events, nil)
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = e
}

// FindRemove cancels the first event whose callback and payload match
// cb/payload, if any. Best-effort: the event may already have fired.
func (s *Scheduler) FindRemove(cb EventFunc, payload any) bool {
	for _, e := range s.events {
		if e.cancelled {
			continue
		}
		if sameFunc(e.cb, cb) && e.payload == payload {
			e.cancelled = true
			return true
		}
	}
	return false
}

// CancelTag cancels the first non-cancelled event with the given tag.
func (s *Scheduler) CancelTag(tag string) bool {
	for _, e := range s.events {
		if !e.cancelled && e.tag == tag {
			e.cancelled = true
			return true
		}
	}
	return false
}

// DoScheduler repeatedly pops and fires every event whose fireAt <=
// now. Events added by a firing callback at delay zero are eligible
// for the same tick (spec.md §4.4), bounded by maxCascade.
func (s *Scheduler) DoScheduler() error {
	firstCascadeSeq := s.nextSeq
	cascades := 0
	for {
		e := s.popDue()
		if e == nil {
			return nil
		}
		if s.tracer != nil {
			s.tracer.SchedulerEvent(s.now, e.tag)
		}
		e.cb(e.payload)
		if e.seq < firstCascadeSeq {
			continue
		}
		cascades++
		if cascades > maxCascade {
			return newHostError("scheduler: exceeded %d zero-delay cascades in one tick", maxCascade)
		}
	}
}

func (s *Scheduler) popDue() *event {
	for len(s.events) > 0 {
		e := s.events[0]
		s.events = s.events[1:]
		if e.cancelled {
			continue
		}
		if e.fireAt > s.now {
			// Not due yet; put it back and stop. Since the slice is
			// sorted, nothing behind it is due either.
			s.events = append([]*event{e}, s.events...)
			return nil
		}
		return e
	}
	return nil
}

// sameFunc compares two EventFunc values for equality; Go function
// values are only comparable against nil, so this compares their code
// pointers via reflect. Closures created from the same function
// literal therefore compare equal even if they capture different
// variables; payload is what tells such events apart. Most callers
// prefer CancelTag for clarity; FindRemove exists to match the
// embedding API of spec.md §4.4 verbatim.
func sameFunc(a, b EventFunc) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
