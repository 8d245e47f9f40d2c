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

package ym2612_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/genesis/ym2612"
	"github.com/jetsetilly/gophergen/test"
)

func TestFnumLatch(t *testing.T) {
	ring := mix.NewRing(1024)
	fm := ym2612.NewYM2612(ring)

	// set an initial frequency on channel 0: block/f-num high first, then
	// f-num low
	fm.WriteAddr(0, 0xa4)
	fm.WriteData(0, 0x22)
	fm.WriteAddr(0, 0xa0)
	fm.WriteData(0, 0x69)

	initial := fm.PhaseIncrement(0, 0)
	test.ExpectSuccess(t, initial != 0)

	// writing a new block/f-num high value has no effect on the phase
	// increment until the matching f-num low write arrives
	fm.WriteAddr(0, 0xa4)
	fm.WriteData(0, 0x34)
	fm.Step(clocks.GenesisFMDivider)
	test.ExpectEquality(t, fm.PhaseIncrement(0, 0), initial)

	// the f-num low write commits the latched value
	fm.WriteAddr(0, 0xa0)
	fm.WriteData(0, 0x69)
	test.ExpectInequality(t, fm.PhaseIncrement(0, 0), initial)
}

func TestBusyFlagModels(t *testing.T) {
	ring := mix.NewRing(1024)
	fm := ym2612.NewYM2612(ring)

	// YM2612 model: busy immediately after a data write, clear after the
	// settle time passes
	fm.Busy = ym2612.BusyYM2612
	fm.WriteAddr(0, 0x22)
	fm.WriteData(0, 0x00)
	test.ExpectEquality(t, fm.ReadStatus()&0x80, uint8(0x80))
	fm.Step(10000)
	test.ExpectEquality(t, fm.ReadStatus()&0x80, uint8(0))

	// YM3438 model: the busy window is unobservable
	fm.Busy = ym2612.BusyYM3438
	fm.WriteData(0, 0x00)
	test.ExpectEquality(t, fm.ReadStatus()&0x80, uint8(0))

	// always-zero model
	fm.Busy = ym2612.BusyAlwaysZero
	fm.WriteData(0, 0x00)
	test.ExpectEquality(t, fm.ReadStatus()&0x80, uint8(0))
}

func TestTimerA(t *testing.T) {
	ring := mix.NewRing(8192)
	fm := ym2612.NewYM2612(ring)

	// timer A at its longest period: overflows after 1024 samples
	fm.WriteAddr(0, 0x24)
	fm.WriteData(0, 0x00)
	fm.WriteAddr(0, 0x25)
	fm.WriteData(0, 0x00)
	fm.WriteAddr(0, 0x27)
	fm.WriteData(0, 0x01) // load+run timer A

	test.ExpectEquality(t, fm.ReadStatus()&0x01, uint8(0))

	fm.Step(clocks.GenesisFMDivider * 1024)
	test.ExpectEquality(t, fm.ReadStatus()&0x01, uint8(0x01))

	// the reset bit clears the flag
	fm.WriteAddr(0, 0x27)
	fm.WriteData(0, 0x11)
	test.ExpectEquality(t, fm.ReadStatus()&0x01, uint8(0))
}

func TestSampleRate(t *testing.T) {
	ring := mix.NewRing(8192)
	fm := ym2612.NewYM2612(ring)

	// one sample per 1008 master clock ticks
	fm.Step(clocks.GenesisFMDivider * 100)
	test.ExpectEquality(t, ring.Len(), 100)
}

func TestDAC(t *testing.T) {
	ring := mix.NewRing(1024)
	fm := ym2612.NewYM2612(ring)

	// enable the DAC and feed it a positive sample. channel 6 pans centre
	// after reset
	fm.WriteAddr(0, 0x2b)
	fm.WriteData(0, 0x80)
	fm.WriteAddr(0, 0x2a)
	fm.WriteData(0, 0xff)

	fm.Step(clocks.GenesisFMDivider)

	f, ok := ring.Pop()
	test.ExpectSuccess(t, ok)
	test.ExpectSuccess(t, f.L > 0)
	test.ExpectSuccess(t, f.R > 0)
}

func TestResetClearsState(t *testing.T) {
	ring := mix.NewRing(1024)
	fm := ym2612.NewYM2612(ring)

	fm.WriteAddr(0, 0x2b)
	fm.WriteData(0, 0x80)

	// a Z80 RESET propagates to the chip and disables the DAC
	fm.Reset()

	fm.Step(clocks.GenesisFMDivider)
	f, ok := ring.Pop()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, f.L, float32(0))
}
