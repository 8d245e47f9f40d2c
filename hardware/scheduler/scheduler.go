// This file is part of GopherGen.
//
// GopherGen is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GopherGen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GopherGen.  If not, see <https://www.gnu.org/licenses/>.

// Package scheduler advances the processors and devices of a console in a
// single master-clock tick domain.
//
// The driver proceeds in slices. Within a slice the processor with the
// lowest committed tick is advanced until it catches up with the
// next-lowest processor, reaches a device deadline, reaches a
// synchronisation point raised by a bus handler, or reaches the end of the
// slice. Devices are serviced in deadline order as processor time moves
// past them.
//
// The scheme guarantees that no processor observes the effect of another
// processor's write before the write has been committed, to within the
// length of a single instruction. The residual single-instruction overshoot
// is the documented hardware behaviour of the supported consoles: a write
// cannot take effect in the middle of the other chip's bus cycle anyway.
//
// All scheduling happens on the one goroutine. There is no locking and no
// shared-memory concurrency anywhere in the package.
package scheduler

// Ticks counts master clock ticks. The zero value is the moment the console
// was powered on. Ticks is signed so that cycle budgets can go negative
// when an instruction overshoots a deadline.
type Ticks int64

// Processor is the scheduler's view of a CPU host. RunUntil() executes
// whole instructions until the committed tick reaches the deadline. The
// returned tick may exceed the deadline by at most the length of the final
// instruction; the overshoot is repaid on the next call because the
// processor will not be scheduled again until every other processor has
// caught up.
type Processor interface {
	Label() string
	RunUntil(deadline Ticks) Ticks
	Committed() Ticks
}

// Device is the scheduler's view of a non-processor component: a video
// unit, an audio unit, a DMA engine, a drive. Service() advances the device
// to the given tick. NextDeadline() is the tick at which the device next
// needs servicing regardless of processor activity (end of scanline, next
// sample boundary, DMA step).
type Device interface {
	Label() string
	NextDeadline() Ticks
	Service(now Ticks)
}

// Driver is the outer loop of a console. One Driver exists per system core.
type Driver struct {
	procs   []Processor
	devices []Device

	// the tick the whole machine has provably reached. no observable state
	// reflects any tick beyond this value plus individual instruction
	// overshoots
	now Ticks

	// a synchronisation point requested by a bus handler during the current
	// RunUntil call. the running processor returns at its next instruction
	// boundary and the driver re-plans
	syncPoint   Ticks
	syncPending bool
	haltRequest bool
}

// NewDriver is the preferred method of initialisation for the Driver type.
func NewDriver() *Driver {
	return &Driver{}
}

// AddProcessor registers a processor with the driver.
func (drv *Driver) AddProcessor(p Processor) {
	drv.procs = append(drv.procs, p)
}

// AddDevice registers a device with the driver.
func (drv *Driver) AddDevice(d Device) {
	drv.devices = append(drv.devices, d)
}

// Now returns the tick the whole machine has reached.
func (drv *Driver) Now() Ticks {
	return drv.now
}

// Sync raises a synchronisation point. Bus handlers call this when shared
// state changes under a running processor: a bus arbitration change, a
// write to a register another processor can see, a DMA begin or end, an
// interrupt assertion. The current RunUntil call returns at the next
// instruction boundary and every other processor is re-planned against the
// new state.
func (drv *Driver) Sync(at Ticks) {
	if !drv.syncPending || at < drv.syncPoint {
		drv.syncPoint = at
		drv.syncPending = true
	}
}

// SyncRequested is consulted by processor hosts at instruction boundaries.
// It reports whether the current RunUntil call should return early.
func (drv *Driver) SyncRequested() bool {
	return drv.syncPending
}

// Halt asks the driver to return from Slice() at the next slice boundary.
// Safe to call from the emulation goroutine only.
func (drv *Driver) Halt() {
	drv.haltRequest = true
}

// lowest returns the processor with the lowest committed tick that is still
// below the limit, and the committed tick of the next-lowest processor.
func (drv *Driver) lowest(limit Ticks) (Processor, Ticks) {
	var p Processor
	var pc Ticks
	next := limit

	for _, q := range drv.procs {
		c := q.Committed()
		if c >= limit {
			continue
		}
		if p == nil || c < pc {
			if p != nil && pc < next {
				next = pc
			}
			p = q
			pc = c
		} else if c < next {
			next = c
		}
	}

	return p, next
}

// nextDeadline returns the earliest device deadline.
func (drv *Driver) nextDeadline() (Device, Ticks) {
	var d Device
	var dt Ticks

	for _, q := range drv.devices {
		t := q.NextDeadline()
		if d == nil || t < dt {
			d = q
			dt = t
		}
	}

	return d, dt
}

// service all devices whose deadline has arrived, in deadline order.
func (drv *Driver) service(upto Ticks) {
	for {
		d, dt := drv.nextDeadline()
		if d == nil || dt > upto {
			return
		}
		d.Service(dt)
	}
}

// Slice advances the machine to the end tick. On return every processor has
// committed at least to end (overshoots aside) and every device deadline at
// or before end has been serviced.
//
// Slice returns early, with the machine in a consistent state, if Halt()
// was called. The returned tick is the tick the machine actually reached.
func (drv *Driver) Slice(end Ticks) Ticks {
	for {
		if drv.haltRequest {
			drv.haltRequest = false
			return drv.now
		}

		p, next := drv.lowest(end)
		if p == nil {
			// all processors are at or beyond the end of the slice. drain
			// the remaining device deadlines and commit
			drv.service(end)
			drv.now = end
			return end
		}

		// p is the lowest-committed processor so its committed tick is the
		// committed floor of the whole machine. device deadlines at or
		// before the floor are due now
		drv.service(p.Committed())

		// the processor may run up to the earliest of: the slice end, the
		// next-lowest processor's committed tick, the next device deadline.
		// when processors are tied the lowest runs one instruction so that
		// time always moves
		limit := next
		if _, dt := drv.nextDeadline(); dt < limit {
			limit = dt
		}
		if limit <= p.Committed() {
			limit = p.Committed() + 1
		}

		committed := p.RunUntil(limit)

		if drv.syncPending {
			// shared state changed at syncPoint. every other processor is
			// behind syncPoint or at most one instruction beyond it, which
			// is the visibility rule the consoles themselves obey
			drv.syncPending = false
		}

		// service devices the processor has passed. the machine's committed
		// floor is the minimum across all processors
		floor := committed
		for _, q := range drv.procs {
			if c := q.Committed(); c < floor {
				floor = c
			}
		}
		drv.service(min(floor, end))
		if floor > drv.now {
			drv.now = min(floor, end)
		}
	}
}

// Step advances the lowest-committed processor by a single instruction and
// services any device deadlines it passes. Used by the debugger's
// instruction stepping mode.
func (drv *Driver) Step() Ticks {
	p, _ := drv.lowest(1<<62 - 1)
	if p == nil {
		return drv.now
	}
	committed := p.RunUntil(p.Committed() + 1)
	drv.service(committed)
	if committed > drv.now {
		drv.now = committed
	}
	return drv.now
}
