// Package sim provides a deterministic in-memory CAN wire for tests and
// simulations. It models a single wired-AND bus line with a pull-up:
// dominant (low) wins over recessive (high), and a line nobody drives
// reads recessive.
//
// Time is virtual. Every simulated node runs in its own process spawned
// with Bus.Spawn and blocks only inside Port.DelayMicros; a discrete-event
// scheduler runs exactly one process at a time and advances the clock to
// the earliest waiter. Runs are fully deterministic: ties are resolved in
// spawn order.
package sim

import (
	"github.com/lufla/softcan"
)

// Bus is a simulated CAN bus line plus the virtual-time scheduler driving
// the processes attached to it.
type Bus struct {
	clock   int64
	procs   []*proc
	ports   []*Port
	current *proc
	yield   chan *proc
	stopped bool
}

type proc struct {
	name   string
	wake   int64
	live   bool
	resume chan struct{}
	done   chan struct{}
}

// New creates an empty bus at virtual time zero.
func New() *Bus {
	return &Bus{yield: make(chan *proc)}
}

// Port attaches a new node to the bus and returns its I/O endpoint. Port
// implements softcan.HostIO; every pin written through it drives the one
// shared line, and every read samples that line.
func (b *Bus) Port() *Port {
	p := &Port{bus: b, pins: make(map[int]*pinState)}
	b.ports = append(b.ports, p)
	return p
}

// Spawn registers a process. fn starts running at virtual time zero once
// Run is called. fn must block only via Port.DelayMicros and must return
// promptly once Running reports false.
func (b *Bus) Spawn(name string, fn func()) {
	p := &proc{
		name:   name,
		live:   true,
		resume: make(chan struct{}),
		done:   make(chan struct{}),
	}
	b.procs = append(b.procs, p)
	go func() {
		defer close(p.done)
		<-p.resume
		fn()
	}()
}

// Clock returns the current virtual time in microseconds.
func (b *Bus) Clock() int64 { return b.clock }

// Running reports whether the scheduler is still advancing virtual time.
// Long-lived processes use it as their loop condition.
func (b *Bus) Running() bool { return !b.stopped }

// Run drives the scheduler until no process wants to wake at or before
// untilMicros, then stops the simulation and waits for every process to
// return. It must be called exactly once, from the test goroutine.
func (b *Bus) Run(untilMicros int64) {
	for {
		p := b.next()
		if p == nil || p.wake > untilMicros {
			break
		}
		if p.wake > b.clock {
			b.clock = p.wake
		}
		b.step(p)
	}
	b.stopped = true
	for _, p := range b.procs {
		if p.live {
			b.step(p)
		}
	}
}

// next picks the live process with the earliest wake time, in spawn order
// on ties.
func (b *Bus) next() *proc {
	var best *proc
	for _, p := range b.procs {
		if p.live && (best == nil || p.wake < best.wake) {
			best = p
		}
	}
	return best
}

// step resumes p and waits until it either yields in DelayMicros or
// returns.
func (b *Bus) step(p *proc) {
	b.current = p
	p.resume <- struct{}{}
	select {
	case <-b.yield:
	case <-p.done:
		p.live = false
	}
}

// delay parks the current process until the clock reaches now+n. Once the
// simulation has stopped it returns immediately without advancing time.
func (b *Bus) delay(n int64) {
	if b.stopped {
		return
	}
	p := b.current
	p.wake = b.clock + n
	b.yield <- p
	<-p.resume
}

// level computes the wired-AND line level: dominant (false) if any
// attached pin is actively driven low, recessive (true) otherwise.
func (b *Bus) level() bool {
	for _, port := range b.ports {
		for _, pin := range port.pins {
			if pin.mode == softcan.Output && !pin.level {
				return false
			}
		}
	}
	return true
}

type pinState struct {
	mode  softcan.PinMode
	level bool
}

// Port is one node's attachment to the bus. It implements softcan.HostIO.
type Port struct {
	bus  *Bus
	pins map[int]*pinState
}

func (p *Port) pin(n int) *pinState {
	s, ok := p.pins[n]
	if !ok {
		s = &pinState{mode: softcan.Input, level: true}
		p.pins[n] = s
	}
	return s
}

// Micros returns the virtual clock.
func (p *Port) Micros() int64 { return p.bus.clock }

// DelayMicros advances virtual time, letting other processes run.
func (p *Port) DelayMicros(n int64) { p.bus.delay(n) }

// PinMode sets the pin direction. An input pin stops driving the line.
func (p *Port) PinMode(pin int, mode softcan.PinMode) {
	s := p.pin(pin)
	switch mode {
	case softcan.Output:
		s.mode = softcan.Output
	default:
		s.mode = softcan.Input
	}
}

// DigitalWrite sets the level an output pin drives.
func (p *Port) DigitalWrite(pin int, high bool) {
	p.pin(pin).level = high
}

// DigitalRead samples the shared line; the pull-up makes an undriven bus
// read high (recessive).
func (p *Port) DigitalRead(pin int) bool {
	return p.bus.level()
}
