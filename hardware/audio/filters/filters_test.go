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

package filters_test

import (
	"math"
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/test"
)

// rms amplitude of a sine at the given frequency after passing through the
// filter.
func response(f filters.Filter, freq float64, rate float64) float64 {
	var sum float64
	var n int

	// settle first
	for i := 0; i < int(rate); i++ {
		v := f.Process(float32(math.Sin(2 * math.Pi * freq * float64(i) / rate)))
		if i > int(rate)/2 {
			sum += float64(v) * float64(v)
			n++
		}
	}

	return math.Sqrt(sum/float64(n)) * math.Sqrt2
}

func TestFirstOrderResponse(t *testing.T) {
	const rate = 48000.0

	f := filters.NewFirstOrder(rate, 5000)

	// passband: well below cutoff the signal is untouched
	test.ExpectApproximate(t, response(f, 100, rate), 1.0, 0.05)

	// around -3dB at the cutoff
	f.Reset()
	test.ExpectApproximate(t, response(f, 5000, rate), math.Sqrt2/2, 0.1)

	// attenuating above the cutoff
	f.Reset()
	test.ExpectSuccess(t, response(f, 15000, rate) < 0.45)
}

func TestSecondOrderResponse(t *testing.T) {
	const rate = 48000.0

	f := filters.NewSecondOrder(rate, 7970)

	test.ExpectApproximate(t, response(f, 100, rate), 1.0, 0.05)
	test.ExpectApproximate(t, response(f, 7970, rate), math.Sqrt2/2, 0.1)

	// a second-order filter falls much faster than a first-order one
	f.Reset()
	test.ExpectSuccess(t, response(f, 20000, rate) < 0.2)
}

func TestSubnormalFlush(t *testing.T) {
	f := filters.NewSecondOrder(48000, 5000)

	// drive the filter with an impulse and let it decay. the state must
	// reach exactly zero rather than decaying forever through subnormal
	// territory
	f.Process(1.0)
	var v float32
	for i := 0; i < 100000; i++ {
		v = f.Process(0)
	}
	test.ExpectEquality(t, v, float32(0))

	// processing a stream of injected denormals must produce clean zeros
	denormal := math.Float32frombits(0x00000001)
	for i := 0; i < 1000; i++ {
		v = f.Process(denormal)
	}
	test.ExpectEquality(t, v, float32(0))
}

func TestPresets(t *testing.T) {
	for _, p := range []filters.Preset{
		filters.Preset5kHz,
		filters.Preset10kHz,
		filters.Preset15kHz,
		filters.PresetGenesisModel1,
		filters.PresetSegaCD,
	} {
		test.ExpectSuccess(t, filters.NewPreset(p, 48000) != nil)
	}
	test.ExpectSuccess(t, filters.NewPreset(filters.PresetNone, 48000) == nil)
}
