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

package rf5c164_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/segacd/rf5c164"
	"github.com/jetsetilly/gophergen/test"
)

// buildChip sets up channel 0 playing a simple ramp from waveform RAM.
func buildChip(interp rf5c164.Interpolation, delta uint16) (*rf5c164.RF5C164, *mix.Ring) {
	ring := mix.NewRing(65536)
	r := rf5c164.NewRF5C164(ring, 384)
	r.Interp = interp

	// enable the chip and select channel 0
	r.WriteRegister(0x07, 0xc0)

	// waveform: positive ramp (sign-magnitude: 0x80 is +0)
	for i := 0; i < 0x100; i++ {
		r.WriteRAM(uint16(i), uint8(0x80|i&0x7f))
	}

	// full volume, centre pan
	r.WriteRegister(0x00, 0xff)
	r.WriteRegister(0x01, 0xff)

	// sample step
	r.WriteRegister(0x02, uint8(delta))
	r.WriteRegister(0x03, uint8(delta>>8))

	// start at address 0, loop at 0
	r.WriteRegister(0x06, 0x00)
	r.WriteRegister(0x04, 0x00)
	r.WriteRegister(0x05, 0x00)

	// key on channel 0
	r.WriteRegister(0x08, 0xfe)

	return r, ring
}

func TestKeyOn(t *testing.T) {
	r, _ := buildChip(rf5c164.InterpNearest, 0x800)
	test.ExpectSuccess(t, r.Sounding(0))
	test.ExpectSuccess(t, !r.Sounding(1))
}

func TestPhaseAccumulator(t *testing.T) {
	// delta 0x800 is exactly one sample per output step: the ramp comes
	// out one step per sample
	r, ring := buildChip(rf5c164.InterpNearest, 0x800)

	r.Step(384 * 8)
	test.ExpectEquality(t, ring.Len(), 8)

	var last float32 = -1
	for {
		f, ok := ring.Pop()
		if !ok {
			break
		}
		// the ramp rises monotonically
		test.ExpectSuccess(t, f.L >= last)
		last = f.L
	}
}

func TestFractionalStep(t *testing.T) {
	// delta 0x400 is half a sample per step: adjacent outputs repeat
	// under nearest interpolation but rise smoothly under linear
	nearest, nRing := buildChip(rf5c164.InterpNearest, 0x400)
	nearest.Step(384 * 16)

	var repeats int
	var prev float32 = -999
	for {
		f, ok := nRing.Pop()
		if !ok {
			break
		}
		if f.L == prev {
			repeats++
		}
		prev = f.L
	}
	test.ExpectSuccess(t, repeats > 0)

	linear, lRing := buildChip(rf5c164.InterpLinear, 0x400)
	linear.Step(384 * 16)

	repeats = 0
	prev = -999
	var count int
	for {
		f, ok := lRing.Pop()
		if !ok {
			break
		}
		if f.L == prev {
			repeats++
		}
		prev = f.L
		count++
	}
	// the first couple of samples sit at zero while the ramp starts but
	// the interpolated stream does not plateau the way nearest does
	test.ExpectSuccess(t, repeats < count/4)
}

func TestInterpolationModesAgreeOnWholeSamples(t *testing.T) {
	// at integer phase positions every interpolation mode returns the
	// stored sample, so a delta of exactly 1.0 produces identical
	// streams
	var streams [][]float32

	for _, interp := range []rf5c164.Interpolation{
		rf5c164.InterpNearest,
		rf5c164.InterpLinear,
		rf5c164.InterpHermite4,
		rf5c164.InterpHermite6,
		rf5c164.InterpQuintic,
	} {
		r, ring := buildChip(interp, 0x800)
		r.Step(384 * 16)

		var out []float32
		for {
			f, ok := ring.Pop()
			if !ok {
				break
			}
			out = append(out, f.L)
		}
		streams = append(streams, out)
	}

	for i := 1; i < len(streams); i++ {
		test.ExpectEquality(t, len(streams[i]), len(streams[0]))
		for j := range streams[i] {
			if streams[i][j] != streams[0][j] {
				t.Fatalf("mode %d diverges from nearest at sample %d", i, j)
			}
		}
	}
}
