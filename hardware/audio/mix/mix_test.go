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

package mix_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/test"
)

func TestRing(t *testing.T) {
	r := mix.NewRing(4)

	test.ExpectEquality(t, r.Len(), 0)
	_, ok := r.Pop()
	test.ExpectSuccess(t, !ok)

	for i := 0; i < 4; i++ {
		test.ExpectSuccess(t, r.Push(mix.Frame{Tick: int64(i)}))
	}

	// ring is full
	test.ExpectSuccess(t, !r.Push(mix.Frame{Tick: 99}))
	test.ExpectEquality(t, r.Len(), 4)

	// frames come out in the order they went in
	for i := 0; i < 4; i++ {
		f, ok := r.Pop()
		test.ExpectSuccess(t, ok)
		test.ExpectEquality(t, f.Tick, int64(i))
	}

	_, ok = r.Pop()
	test.ExpectSuccess(t, !ok)
}

func TestRingWrap(t *testing.T) {
	r := mix.NewRing(4)

	// push and pop many times the capacity to exercise index wrapping
	var next int64
	for i := 0; i < 100; i++ {
		r.Push(mix.Frame{Tick: int64(i)})
		if r.Len() == 3 {
			f, _ := r.Pop()
			test.ExpectEquality(t, f.Tick, next)
			next++
		}
	}
}

func TestMixSum(t *testing.T) {
	// two sources at the same (host) rate: the mix is the commutative sum
	m := mix.NewMixer(48000, 2048)
	a := m.AddSource("a", 48000, false, filters.PresetNone)
	b := m.AddSource("b", 48000, false, filters.PresetNone)

	for i := 0; i < 100; i++ {
		a.Push(mix.Frame{Tick: int64(i), L: 0.25, R: 0.25})
		b.Push(mix.Frame{Tick: int64(i), L: 0.5, R: -0.25})
	}

	m.Mix()
	out := m.Drain()

	test.ExpectSuccess(t, len(out) > 0)
	test.ExpectEquality(t, len(out)%2, 0)

	// at a 1:1 ratio with no filter, every output frame is the plain sum
	for i := 0; i < len(out); i += 2 {
		test.ExpectEquality(t, out[i], float32(0.75))
		test.ExpectEquality(t, out[i+1], float32(0.0))
	}
}

func TestMixGainAndMute(t *testing.T) {
	m := mix.NewMixer(48000, 2048)
	a := m.AddSource("a", 48000, false, filters.PresetNone)

	m.SetGain("a", 0.5)
	for i := 0; i < 100; i++ {
		a.Push(mix.Frame{Tick: int64(i), L: 1.0, R: 1.0})
	}
	m.Mix()
	out := m.Drain()
	test.ExpectSuccess(t, len(out) > 0)
	test.ExpectEquality(t, out[0], float32(0.5))

	m.Mute(true)
	for i := 100; i < 200; i++ {
		a.Push(mix.Frame{Tick: int64(i), L: 1.0, R: 1.0})
	}
	m.Mix()
	out = m.Drain()
	test.ExpectSuccess(t, len(out) > 0)
	for _, v := range out {
		test.ExpectEquality(t, v, float32(0))
	}
}

func TestQueueSteering(t *testing.T) {
	m := mix.NewMixer(48000, 1000)

	// a queue above target trims the ratio upwards (consuming input
	// faster, emitting less)
	m.ReportQueue(2000)
	test.ExpectSuccess(t, m.Trim() > 0)

	// a queue below target trims downwards
	m.ReportQueue(500)
	test.ExpectSuccess(t, m.Trim() < 0)

	// on target there is no trim
	m.ReportQueue(1000)
	test.ExpectEquality(t, m.Trim(), 0.0)
}
