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

// Package rf5c164 emulates the Sega CD's PCM chip: eight channels
// playing 8-bit sign-magnitude samples from 64KB of waveform RAM, each
// with an 11-bit fractional phase accumulator, loop addresses and
// per-channel pan.
//
// The real chip outputs each channel's raw nearest sample. Because the
// chip is routinely driven at fractional rates, resampling artifacts are
// audible and higher quality interpolation between waveform samples is
// a popular enhancement; the interpolation mode is user selectable from
// nearest through quintic hermite.
package rf5c164

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
)

// waveform RAM size.
const RAMSize = 0x10000

// Interpolation selects how a channel resolves a fractional sample
// position.
type Interpolation int

// List of valid Interpolation values.
const (
	InterpNearest Interpolation = iota
	InterpLinear
	InterpHermite4
	InterpHermite6
	InterpQuintic
)

func (i Interpolation) String() string {
	switch i {
	case InterpNearest:
		return "nearest"
	case InterpLinear:
		return "linear"
	case InterpHermite4:
		return "4-point hermite"
	case InterpHermite6:
		return "6-point hermite"
	case InterpQuintic:
		return "quintic hermite"
	}
	return "unknown"
}

// channel is one of the eight PCM voices.
type channel struct {
	enabled bool

	// start address (whole byte), loop address, and the 16.11 fixed
	// point phase accumulator
	start uint8
	loop  uint16
	phase uint32

	// frequency delta: 11 bit fractional sample step
	delta uint16

	// envelope (volume) and pan (4 bits left, 4 bits right)
	env uint8
	pan uint8
}

// RF5C164 is the PCM chip.
type RF5C164 struct {
	ram [RAMSize]uint8

	channels [8]channel

	// the register bank control: selected channel for register writes
	// and RAM window bank
	selChannel int
	ramBank    int

	// sounding is the per-channel on/off register (inverted: 0 is on)
	sounding uint8

	Interp Interpolation

	// master clock ticks per output sample
	divider int64
	acc     int64
	tick    int64

	ring *mix.Ring
}

// NewRF5C164 is the preferred method of initialisation for the RF5C164
// type. The divider argument is the number of master clock ticks per
// output sample.
func NewRF5C164(ring *mix.Ring, divider int64) *RF5C164 {
	r := &RF5C164{
		ring:     ring,
		divider:  divider,
		sounding: 0xff,
		Interp:   InterpNearest,
	}
	return r
}

// WriteRAM writes a byte to the current waveform RAM bank.
func (r *RF5C164) WriteRAM(address uint16, data uint8) {
	r.ram[r.ramBank<<12|int(address&0x0fff)] = data
}

// ReadRAM reads a byte from the current waveform RAM bank.
func (r *RF5C164) ReadRAM(address uint16) uint8 {
	return r.ram[r.ramBank<<12|int(address&0x0fff)]
}

// WriteRegister services the chip's register file.
func (r *RF5C164) WriteRegister(reg int, data uint8) {
	ch := &r.channels[r.selChannel]

	switch reg {
	case 0x00:
		ch.env = data
	case 0x01:
		ch.pan = data
	case 0x02:
		ch.delta = ch.delta&0xff00 | uint16(data)
	case 0x03:
		ch.delta = ch.delta&0x00ff | uint16(data)<<8
	case 0x04:
		ch.loop = ch.loop&0xff00 | uint16(data)
	case 0x05:
		ch.loop = ch.loop&0x00ff | uint16(data)<<8
	case 0x06:
		ch.start = data
	case 0x07:
		// control: bit 6 selects channel or bank mode for the low bits
		if data&0x40 == 0x40 {
			r.selChannel = int(data) & 0x07
		} else {
			r.ramBank = int(data) & 0x0f
		}
		// bit 7 is the chip enable; a disabled chip holds its phase
		for i := range r.channels {
			r.channels[i].enabled = data&0x80 == 0x80
		}
	case 0x08:
		// channel on/off, inverted. switching a channel on reloads its
		// start address
		for i := range r.channels {
			bit := uint8(1) << uint(i)
			if r.sounding&bit != 0 && data&bit == 0 {
				r.channels[i].phase = uint32(r.channels[i].start) << 19
			}
		}
		r.sounding = data
	}
}

// sampleAt reads the sign-magnitude sample at the given byte address,
// honouring the loop marker. A stored value of 0xFF is the loop marker:
// playback jumps to the loop address.
func (r *RF5C164) sampleAt(ch *channel, addr uint32) float32 {
	v := r.ram[addr&0xffff]
	if v == 0xff {
		// loop marker resolves to the sample at the loop address
		v = r.ram[ch.loop]
		if v == 0xff {
			return 0
		}
	}
	if v&0x80 == 0x80 {
		return float32(v&0x7f) / 127
	}
	return -float32(v) / 127
}

// hermite4 is the classic 4-point, 3rd order hermite interpolator.
func hermite4(y0, y1, y2, y3, x float32) float32 {
	c0 := y1
	c1 := (y2 - y0) / 2
	c2 := y0 - 2.5*y1 + 2*y2 - y3/2
	c3 := (y3-y0)/2 + 1.5*(y1-y2)
	return ((c3*x+c2)*x+c1)*x + c0
}

// interpolate resolves the fractional sample position for a channel.
func (r *RF5C164) interpolate(ch *channel) float32 {
	addr := ch.phase >> 11
	frac := float32(ch.phase&0x7ff) / 0x800

	s := func(offset int32) float32 {
		return r.sampleAt(ch, uint32(int32(addr)+offset))
	}

	switch r.Interp {
	case InterpNearest:
		return s(0)

	case InterpLinear:
		return s(0) + (s(1)-s(0))*frac

	case InterpHermite4:
		return hermite4(s(-1), s(0), s(1), s(2), frac)

	case InterpHermite6:
		// cubic through the two inner points with slopes estimated from
		// a five point stencil either side
		y := [6]float32{s(-2), s(-1), s(0), s(1), s(2), s(3)}
		m1 := 0.58333333*(y[3]-y[1]) - 0.08333333*(y[4]-y[0])
		m2 := 0.58333333*(y[4]-y[2]) - 0.08333333*(y[5]-y[1])
		d := y[3] - y[2]
		a := m1 + m2 - 2*d
		b := 3*d - 2*m1 - m2
		return ((a*frac+b)*frac+m1)*frac + y[2]

	case InterpQuintic:
		// quintic hermite matching value, slope and curvature at the
		// two inner points
		y := [6]float32{s(-2), s(-1), s(0), s(1), s(2), s(3)}
		f0 := y[2]
		f1 := y[3]
		d0 := (y[3] - y[1]) / 2
		d1 := (y[4] - y[2]) / 2
		k0 := y[1] - 2*y[2] + y[3]
		k1 := y[2] - 2*y[3] + y[4]
		delta := f1 - f0

		c0 := f0
		c1 := d0
		c2 := k0 / 2
		c3 := 10*delta - 6*d0 - 4*d1 - 1.5*k0 + 0.5*k1
		c4 := -15*delta + 8*d0 + 7*d1 + 1.5*k0 - k1
		c5 := 6*delta - 3*(d0+d1) - 0.5*(k0-k1)

		return ((((c5*frac+c4)*frac+c3)*frac+c2)*frac+c1)*frac + c0
	}

	return 0
}

// Step advances the chip by the given number of master clock ticks.
func (r *RF5C164) Step(ticks int64) {
	r.acc += ticks
	for r.acc >= r.divider {
		r.acc -= r.divider
		r.tick += r.divider
		r.sample()
	}
}

// sample mixes all sounding channels into one output frame.
func (r *RF5C164) sample() {
	var left, right float32

	for i := range r.channels {
		ch := &r.channels[i]
		if !ch.enabled || r.sounding&(1<<uint(i)) != 0 {
			continue
		}

		v := r.interpolate(ch) * float32(ch.env) / 255

		left += v * float32(ch.pan&0x0f) / 15
		right += v * float32(ch.pan>>4) / 15

		// advance the phase; the loop marker check happens on read
		next := ch.phase + uint32(ch.delta)
		if r.ram[next>>11&0xffff] == 0xff {
			ch.phase = uint32(ch.loop) << 11
		} else {
			ch.phase = next
		}
	}

	r.ring.Push(mix.Frame{Tick: r.tick, L: left / 4, R: right / 4})
}

// Sounding reports whether the numbered channel is currently keyed on.
func (r *RF5C164) Sounding(ch int) bool {
	return r.sounding&(1<<uint(ch)) == 0
}
