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

// Package ym2612 emulates the YM2612 FM synthesiser of the Genesis. Six
// channels of four operators each, with channel 6 replaceable by a direct
// DAC feed. One stereo sample is produced every 144 68000 clocks.
package ym2612

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/clocks"
)

// BusyModel selects how the busy flag behaves on status reads. The YM2612
// reports busy for the full register write settle time; the YM3438 for a
// much shorter period; and the AlwaysZero model never reports busy. The
// AlwaysZero model is not accurate to any revision but some software runs
// faster with it and it is kept selectable.
type BusyModel int

// List of valid BusyModel values.
const (
	BusyYM2612 BusyModel = iota
	BusyYM3438
	BusyAlwaysZero
)

// busy durations in master clock ticks.
const (
	busyTicksYM2612 = 32 * clocks.GenesisM68KDivider * 6
	busyTicksYM3438 = 0
)

// YM2612 is the FM synthesiser.
type YM2612 struct {
	channels [6]channel

	// register address latches for the two register banks
	addr0 uint8
	addr1 uint8

	// block/f-num high writes are latched and only take effect on the
	// following write to the matching f-num low register
	fnumLatch  [3]uint8
	fnumLatch1 [3]uint8

	// channel 3 special mode gives each operator its own frequency
	ch3Special bool

	// DAC state for channel 6
	dacEnabled bool
	dacData    uint8

	// the optional "ladder effect": the crossover distortion of the
	// YM2612's DAC. adds a small offset whose sign follows the sample sign
	Ladder bool

	Busy BusyModel

	// LFO
	lfoEnabled bool
	lfoRate    int
	lfoCounter int
	lfoStep    int

	// timers
	timerALoad  int
	timerBLoad  int
	timerA      int
	timerB      int
	timerARun   bool
	timerBRun   bool
	timerAFlag  bool
	timerBFlag  bool
	timerAReset bool

	// busy countdown in master clock ticks
	busyCountdown int64

	// master clock accumulator towards the next sample
	acc  int64
	tick int64

	ring *mix.Ring
}

// NewYM2612 is the preferred method of initialisation for the YM2612 type.
// Samples are pushed into the given ring.
func NewYM2612(ring *mix.Ring) *YM2612 {
	fm := &YM2612{ring: ring}
	fm.Reset()
	return fm
}

// Reset returns the chip to its power-on state. On the Genesis the Z80
// RESET line also resets the YM2612, so the Z80 control logic calls this.
func (fm *YM2612) Reset() {
	for i := range fm.channels {
		fm.channels[i].reset()
	}
	fm.dacEnabled = false
	fm.dacData = 0x80
	fm.timerARun = false
	fm.timerBRun = false
	fm.timerAFlag = false
	fm.timerBFlag = false
	fm.busyCountdown = 0
}

// ReadStatus returns the status register: busy flag in bit 7, timer
// overflow flags in bits 1 and 0.
func (fm *YM2612) ReadStatus() uint8 {
	var s uint8
	if fm.timerAFlag {
		s |= 0x01
	}
	if fm.timerBFlag {
		s |= 0x02
	}

	switch fm.Busy {
	case BusyYM2612:
		if fm.busyCountdown > 0 {
			s |= 0x80
		}
	case BusyYM3438:
		// the YM3438 busy window is too short to observe at 68000 speeds
	case BusyAlwaysZero:
		// never busy. not hardware accurate
	}

	return s
}

// WriteAddr sets the register address for the given bank (0 for channels
// 1-3, 1 for channels 4-6).
func (fm *YM2612) WriteAddr(bank int, data uint8) {
	if bank == 0 {
		fm.addr0 = data
	} else {
		fm.addr1 = data
	}
}

// WriteData writes to the register previously addressed in the given bank.
func (fm *YM2612) WriteData(bank int, data uint8) {
	if fm.Busy == BusyYM2612 {
		fm.busyCountdown = busyTicksYM2612
	}

	addr := fm.addr0
	if bank == 1 {
		addr = fm.addr1
	}

	if addr < 0x30 {
		if bank == 0 {
			fm.writeGlobal(addr, data)
		}
		return
	}

	// channel/operator registers. the channel index is in the low two
	// bits; value 3 is unused
	ch := int(addr & 0x03)
	if ch == 3 {
		return
	}
	if bank == 1 {
		ch += 3
	}

	switch {
	case addr >= 0x30 && addr < 0xa0:
		op := opIndex(addr)
		fm.channels[ch].ops[op].write(addr, data)
	case addr >= 0xa0 && addr < 0xa4:
		// f-num low: combines with the latched block/f-num high
		latch := fm.fnumLatch[ch%3]
		if bank == 1 {
			latch = fm.fnumLatch1[ch%3]
		}
		fm.channels[ch].setFrequency(uint16(latch&0x07)<<8|uint16(data), int(latch>>3)&0x07)
	case addr >= 0xa4 && addr < 0xa8:
		// block/f-num high: latched, no audible effect until the next
		// f-num low write
		if bank == 1 {
			fm.fnumLatch1[ch%3] = data & 0x3f
		} else {
			fm.fnumLatch[ch%3] = data & 0x3f
		}
	case addr >= 0xa8 && addr < 0xb0 && bank == 0:
		// channel 3 special mode supplemental frequencies
		fm.channels[2].writeSupplemental(addr, data)
	case addr >= 0xb0 && addr < 0xb4:
		fm.channels[ch].algorithm = int(data & 0x07)
		fm.channels[ch].feedback = int(data>>3) & 0x07
	case addr >= 0xb4 && addr < 0xb8:
		fm.channels[ch].panL = data&0x80 == 0x80
		fm.channels[ch].panR = data&0x40 == 0x40
		fm.channels[ch].ams = int(data>>4) & 0x03
		fm.channels[ch].pms = int(data) & 0x07
	}
}

// writeGlobal services the global registers of bank 0.
func (fm *YM2612) writeGlobal(addr uint8, data uint8) {
	switch addr {
	case 0x22:
		fm.lfoEnabled = data&0x08 == 0x08
		fm.lfoRate = int(data & 0x07)
	case 0x24:
		fm.timerALoad = fm.timerALoad&0x03 | int(data)<<2
	case 0x25:
		fm.timerALoad = fm.timerALoad&0x3fc | int(data&0x03)
	case 0x26:
		fm.timerBLoad = int(data)
	case 0x27:
		fm.ch3Special = data&0x40 == 0x40
		if data&0x01 == 0x01 && !fm.timerARun {
			fm.timerA = 1024 - fm.timerALoad
		}
		if data&0x02 == 0x02 && !fm.timerBRun {
			fm.timerB = (256 - fm.timerBLoad) * 16
		}
		fm.timerARun = data&0x01 == 0x01
		fm.timerBRun = data&0x02 == 0x02
		if data&0x10 == 0x10 {
			fm.timerAFlag = false
		}
		if data&0x20 == 0x20 {
			fm.timerBFlag = false
		}
	case 0x28:
		// key on/off. the channel field addresses both banks
		ch := int(data & 0x03)
		if ch == 3 {
			return
		}
		if data&0x04 == 0x04 {
			ch += 3
		}
		fm.channels[ch].keyOnOff(data >> 4)
	case 0x2a:
		fm.dacData = data
	case 0x2b:
		fm.dacEnabled = data&0x80 == 0x80
	}
}

// Step advances the chip by the given number of master clock ticks,
// producing samples as sample boundaries pass.
func (fm *YM2612) Step(ticks int64) {
	if fm.busyCountdown > 0 {
		fm.busyCountdown -= ticks
	}

	fm.acc += ticks
	for fm.acc >= clocks.GenesisFMDivider {
		fm.acc -= clocks.GenesisFMDivider
		fm.tick += clocks.GenesisFMDivider
		fm.sample()
	}
}

// sample produces one stereo sample and pushes it into the ring.
func (fm *YM2612) sample() {
	// timers tick at the sample rate
	if fm.timerARun {
		fm.timerA--
		if fm.timerA <= 0 {
			fm.timerA = 1024 - fm.timerALoad
			fm.timerAFlag = true
		}
	}
	if fm.timerBRun {
		fm.timerB--
		if fm.timerB <= 0 {
			fm.timerB = (256 - fm.timerBLoad) * 16
			fm.timerBFlag = true
		}
	}

	// LFO advances on a divider chosen by the rate field
	if fm.lfoEnabled {
		fm.lfoCounter++
		if fm.lfoCounter >= lfoDividers[fm.lfoRate] {
			fm.lfoCounter = 0
			fm.lfoStep = (fm.lfoStep + 1) % 128
		}
	} else {
		fm.lfoStep = 0
	}

	var left, right float32
	for i := range fm.channels {
		ch := &fm.channels[i]

		var out float32
		if i == 5 && fm.dacEnabled {
			out = (float32(fm.dacData) - 128) / 128
		} else {
			out = ch.output(fm.lfoStep, fm.ch3Special && i == 2)
		}

		if fm.Ladder {
			// crossover distortion of the YM2612 DAC: a small offset that
			// follows the sign of the sample
			if out >= 0 {
				out += ladderOffset
			} else {
				out -= ladderOffset
			}
		}

		if ch.panL {
			left += out
		}
		if ch.panR {
			right += out
		}
	}

	fm.ring.Push(mix.Frame{Tick: fm.tick, L: left / 6, R: right / 6})
}

// TimerFlags returns the timer A and timer B overflow flags.
func (fm *YM2612) TimerFlags() (bool, bool) {
	return fm.timerAFlag, fm.timerBFlag
}

// the additional offset applied per sample when the ladder effect is
// enabled.
const ladderOffset = 1.0 / 512

// lfo step dividers per rate setting, in samples.
var lfoDividers = [8]int{108, 77, 71, 67, 62, 44, 8, 5}

// OperatorPhase returns the current phase accumulator of the given
// operator. Used by tests to observe frequency changes.
func (fm *YM2612) OperatorPhase(ch int, op int) uint32 {
	return fm.channels[ch].ops[op].phase
}

// PhaseIncrement returns the per-sample phase increment of the given
// operator.
func (fm *YM2612) PhaseIncrement(ch int, op int) uint32 {
	return fm.channels[ch].ops[op].increment
}
