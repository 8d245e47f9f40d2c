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

package psg_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/genesis/psg"
	"github.com/jetsetilly/gophergen/test"
)

// count output toggles of channel 0 over the given number of updates.
func countToggles(p *psg.PSG, updates int) int {
	var toggles int
	last := p.Output(0)
	for i := 0; i < updates; i++ {
		p.Step(clocks.GenesisPSGDivider)
		if p.Output(0) != last {
			toggles++
			last = p.Output(0)
		}
	}
	return toggles
}

// setPeriod performs the latch/data write pair for a tone channel period.
func setPeriod(p *psg.PSG, period int) {
	p.Write(0x80 | uint8(period&0x0f))
	p.Write(uint8(period >> 4 & 0x3f))
}

func TestPeriodZeroEqualsOne(t *testing.T) {
	// a period of zero oscillates exactly like a period of one
	ringA := mix.NewRing(4096)
	a := psg.NewPSG(ringA, clocks.GenesisPSGDivider)
	setPeriod(a, 0)

	ringB := mix.NewRing(4096)
	b := psg.NewPSG(ringB, clocks.GenesisPSGDivider)
	setPeriod(b, 1)

	test.ExpectEquality(t, countToggles(a, 256), countToggles(b, 256))
}

func TestTonePeriod(t *testing.T) {
	ring := mix.NewRing(65536)
	p := psg.NewPSG(ring, clocks.GenesisPSGDivider)

	// period 16: the output toggles every 16 updates
	setPeriod(p, 16)
	toggles := countToggles(p, 1600)
	test.ExpectApproximate(t, toggles, 100, 0.05)
}

func TestVolume(t *testing.T) {
	ring := mix.NewRing(4096)
	p := psg.NewPSG(ring, clocks.GenesisPSGDivider)

	// full attenuation at power on: silent output
	p.Step(clocks.GenesisPSGDivider * 16)
	for {
		f, ok := ring.Pop()
		if !ok {
			break
		}
		test.ExpectEquality(t, f.L, float32(0))
		test.ExpectEquality(t, f.R, float32(0))
	}

	// channel 0 at full volume produces signal
	p.Write(0x90) // channel 0 volume 0
	setPeriod(p, 4)
	p.Step(clocks.GenesisPSGDivider * 64)

	var heard bool
	for {
		f, ok := ring.Pop()
		if !ok {
			break
		}
		if f.L > 0 {
			heard = true
		}
	}
	test.ExpectSuccess(t, heard)
}

func TestStereoMask(t *testing.T) {
	ring := mix.NewRing(4096)
	p := psg.NewPSG(ring, clocks.GenesisPSGDivider)

	p.Write(0x90) // channel 0 volume 0
	setPeriod(p, 4)

	// channel 0 left only
	p.SetStereo(0x10)
	p.Step(clocks.GenesisPSGDivider * 64)

	var left, right float32
	for {
		f, ok := ring.Pop()
		if !ok {
			break
		}
		left += f.L
		right += f.R
	}
	test.ExpectSuccess(t, left > 0)
	test.ExpectEquality(t, right, float32(0))
}
