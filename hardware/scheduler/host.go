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

package scheduler

import (
	"fmt"
)

// Decoder is the instruction decoder hosted by a Host. Decoders are pure
// functions over the bus they were created with: one call to Step()
// executes one whole instruction (or one interrupt acknowledge sequence)
// and returns the number of native cycles consumed.
//
// The decoders themselves are outside the scope of this repository and are
// tested against per-opcode reference vectors independently. The scripted
// decoders in the test files show the shape of an implementation.
type Decoder interface {
	// Step executes a single instruction and returns the native cycle count
	Step() int

	// Interrupt asserts (or clears, with level InterruptNone) the interrupt
	// input of the decoder. The decoder observes the assertion at the next
	// instruction boundary, honouring its own delay rules
	Interrupt(level int)

	// Reset puts the decoder in its power-on state
	Reset()
}

// InterruptNone clears a previously asserted interrupt level.
const InterruptNone = -1

// Host adapts a Decoder to the Processor interface. It owns the conversion
// between native cycles and master clock ticks, the cycle budget, and the
// stall, halt and bus-grant states that the console's bus logic controls.
type Host struct {
	label   string
	decoder Decoder
	drv     *Driver

	// master clock ticks per native cycle, as the rational num/den.
	// most processors divide the master clock evenly; the SH-2s run at
	// 3/7 of it and need the remainder carried between instructions
	ratioNum Ticks
	ratioDen Ticks
	ratioRem Ticks

	committed Ticks

	// budget is the overshoot from the previous RunUntil call. it is
	// negative when the final instruction of the previous call ran past the
	// deadline and zero otherwise. the overshoot is already part of the
	// committed tick, so the next call has that much less time to run
	budget Ticks

	// a stalled host advances its committed tick without executing
	// instructions. DMA engines and bus arbitration use this
	stallUntil Ticks

	// a halted host (HALT/STOP/WAIT instruction, or bus access withdrawn by
	// an arbiter) commits time without executing instructions until the
	// halt is released
	halted bool
}

// NewHost is the preferred method of initialisation for the Host type.
// The ratio argument is the number of master clock ticks per native cycle
// of the hosted decoder.
func NewHost(label string, decoder Decoder, drv *Driver, ratio Ticks) *Host {
	return NewHostRational(label, decoder, drv, ratio, 1)
}

// NewHostRational creates a host whose native cycle is num/den master
// clock ticks. The 32X SH-2s run at 3/7 of the master clock: seven
// ticks per three cycles.
func NewHostRational(label string, decoder Decoder, drv *Driver, num Ticks, den Ticks) *Host {
	return &Host{
		label:    label,
		decoder:  decoder,
		drv:      drv,
		ratioNum: num,
		ratioDen: max(den, 1),
	}
}

// Label implements the Processor interface.
func (h *Host) Label() string {
	return h.label
}

// Committed implements the Processor interface.
func (h *Host) Committed() Ticks {
	return h.committed
}

// RunUntil implements the Processor interface.
func (h *Host) RunUntil(deadline Ticks) Ticks {
	for h.committed < deadline {
		if h.stallUntil > h.committed {
			// stalled time passes without instructions. the stall may end
			// before the deadline in which case execution resumes
			h.committed = min(h.stallUntil, deadline)
			continue
		}

		if h.halted {
			// a halted processor commits time straight to the deadline
			h.committed = deadline
			continue
		}

		cycles := h.decoder.Step()
		if cycles <= 0 {
			// a decoder returning zero cycles would hang the scheduler.
			// treated as a single cycle and logged by the owning system
			cycles = 1
		}

		t := (Ticks(cycles)*h.ratioNum + h.ratioRem) / h.ratioDen
		h.ratioRem = (Ticks(cycles)*h.ratioNum + h.ratioRem) % h.ratioDen

		h.committed += t

		if h.drv != nil && h.drv.SyncRequested() {
			break
		}
	}

	h.budget = min(deadline-h.committed, 0)

	return h.committed
}

// StallUntil advances the host's committed tick without executing
// instructions. Used by DMA engines that steal the bus from the processor
// and by anything else that inserts wait states.
func (h *Host) StallUntil(t Ticks) {
	if t > h.stallUntil {
		h.stallUntil = t
	}
}

// Stall extends the current stall by the given number of ticks.
func (h *Host) Stall(t Ticks) {
	from := max(h.stallUntil, h.committed)
	h.stallUntil = from + t
}

// Halt sets or releases the halted state. A halted processor commits time
// but executes no instructions.
func (h *Host) Halt(set bool) {
	h.halted = set
}

// Halted returns the halted state.
func (h *Host) Halted() bool {
	return h.halted
}

// Interrupt forwards an interrupt assertion to the decoder and raises a
// synchronisation point so that the interrupt is observed at the correct
// tick.
func (h *Host) Interrupt(level int) {
	h.decoder.Interrupt(level)
	if h.drv != nil {
		h.drv.Sync(h.drv.Now())
	}
}

// Reset returns the host and its decoder to the power-on state. The
// committed tick is not reset: time does not run backwards.
func (h *Host) Reset() {
	h.decoder.Reset()
	h.halted = false
	h.stallUntil = 0
	h.budget = 0
	h.ratioRem = 0
}

// SetRatio changes the host's clock ratio. The overclock setting uses
// this to run a processor faster than the real divider.
func (h *Host) SetRatio(num Ticks, den Ticks) {
	h.ratioNum = num
	h.ratioDen = max(den, 1)
	h.ratioRem = 0
}

func (h *Host) String() string {
	return fmt.Sprintf("%s: committed=%d budget=%d", h.label, h.committed, h.budget)
}
