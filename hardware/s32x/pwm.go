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

package s32x

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
)

// the PWM FIFO holds three pending pulse widths per channel.
const pwmFIFODepth = 3

// PWM is the 32X's pulse width modulated sound unit: two channels of
// 12-bit pulse widths clocked out at a rate set by the cycle register.
type PWM struct {
	// cycle register: pulse widths count against this interval. the
	// interval sets the sample rate
	cycle uint16

	// control register: output routing per channel
	ctrl uint16

	fifoL [pwmFIFODepth]uint16
	fifoR [pwmFIFODepth]uint16
	lenL  int
	lenR  int

	// current output levels
	outL uint16
	outR uint16

	// timer interrupt countdown, in samples
	timerInterval int
	timerCount    int
	timerIRQ      func()

	// master clock accumulation
	acc      int64
	tick     int64
	interval int64

	ring *mix.Ring
}

// NewPWM is the preferred method of initialisation for the PWM type.
// The masterHz argument is not used: WriteCycle derives the sample
// interval from the fixed 3/7 ratio of the SH-2 clock to the master clock.
func NewPWM(ring *mix.Ring, masterHz int64) *PWM {
	return &PWM{
		ring:     ring,
		interval: 1024, // harmless default until the cycle register is set
		timerIRQ: func() {},
	}
}

// SetTimerIRQ attaches the timer interrupt callback (to the SH-2s).
func (p *PWM) SetTimerIRQ(f func()) {
	p.timerIRQ = f
}

// WriteControl services the PWM control register.
func (p *PWM) WriteControl(data uint16) {
	p.ctrl = data
	p.timerInterval = int(data>>8) & 0x0f
	if p.timerInterval == 0 {
		p.timerInterval = 16
	}
}

// WriteCycle sets the cycle register. The sample interval in master
// clock ticks follows from the SH-2 clock being 3/7 of the master clock:
// interval = (cycle) SH-2 clocks = cycle*7/3 master ticks.
func (p *PWM) WriteCycle(data uint16) {
	p.cycle = data & 0x0fff
	c := int64(p.cycle)
	if c == 0 {
		c = 0x1000
	}
	p.interval = c * 7 / 3
}

// WriteLeft pushes a pulse width into the left channel FIFO. Pushes to a
// full FIFO drop the oldest entry.
func (p *PWM) WriteLeft(data uint16) {
	if p.lenL >= pwmFIFODepth {
		copy(p.fifoL[:], p.fifoL[1:])
		p.lenL--
	}
	p.fifoL[p.lenL] = data & 0x0fff
	p.lenL++
}

// WriteRight pushes a pulse width into the right channel FIFO.
func (p *PWM) WriteRight(data uint16) {
	if p.lenR >= pwmFIFODepth {
		copy(p.fifoR[:], p.fifoR[1:])
		p.lenR--
	}
	p.fifoR[p.lenR] = data & 0x0fff
	p.lenR++
}

// WriteMono pushes a pulse width into both FIFOs.
func (p *PWM) WriteMono(data uint16) {
	p.WriteLeft(data)
	p.WriteRight(data)
}

// FIFOFull reports whether the left FIFO is full. The status register
// exposes this to the SH-2s.
func (p *PWM) FIFOFull() bool {
	return p.lenL >= pwmFIFODepth
}

// Step advances the unit by the given number of master clock ticks.
func (p *PWM) Step(ticks int64) {
	p.acc += ticks
	for p.acc >= p.interval {
		p.acc -= p.interval
		p.tick += p.interval
		p.sample()
	}
}

// sample pops the FIFOs and emits one stereo sample.
func (p *PWM) sample() {
	if p.lenL > 0 {
		p.outL = p.fifoL[0]
		copy(p.fifoL[:], p.fifoL[1:])
		p.lenL--
	}
	if p.lenR > 0 {
		p.outR = p.fifoR[0]
		copy(p.fifoR[:], p.fifoR[1:])
		p.lenR--
	}

	p.timerCount++
	if p.timerInterval > 0 && p.timerCount >= p.timerInterval {
		p.timerCount = 0
		p.timerIRQ()
	}

	// a pulse width is a fraction of the cycle interval; centre it
	// around zero
	cycle := float32(p.cycle)
	if cycle == 0 {
		cycle = 0x1000
	}
	l := float32(p.outL)/cycle*2 - 1
	r := float32(p.outR)/cycle*2 - 1

	p.ring.Push(mix.Frame{Tick: p.tick, L: max(-1, min(1, l)), R: max(-1, min(1, r))})
}
