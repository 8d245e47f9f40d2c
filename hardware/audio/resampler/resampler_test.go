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

package resampler_test

import (
	"math"
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/resampler"
	"github.com/jetsetilly/gophergen/test"
)

// measure how much of the output is the wanted sine and how much is
// everything else. the wanted component is found by projecting onto the
// sine and cosine at the test frequency; the residual is distortion plus
// noise.
func distortion(out []float32, freq float64, rate float64) float64 {
	// discard the edges: filter warm-up
	out = out[1000 : len(out)-1000]

	var ss, sc float64
	for i, v := range out {
		ph := 2 * math.Pi * freq * float64(i) / rate
		ss += float64(v) * math.Sin(ph)
		sc += float64(v) * math.Cos(ph)
	}
	n := float64(len(out))
	amp2 := (ss*ss + sc*sc) * 4 / (n * n)

	var resid float64
	for i, v := range out {
		ph := 2 * math.Pi * freq * float64(i) / rate
		w := math.Sqrt(amp2) * math.Sin(ph+math.Atan2(sc, ss))
		d := float64(v) - w
		resid += d * d
	}
	resid /= n

	// power ratio in dB
	return 10 * math.Log10(resid/(amp2/2))
}

func TestSineRoundTrip(t *testing.T) {
	const (
		inRate  = 53267.0
		outRate = 48000.0
		freq    = 1000.0
	)

	rs := resampler.New(inRate, outRate)

	var out []float32
	for i := 0; i < int(inRate); i++ {
		v := float32(math.Sin(2 * math.Pi * freq * float64(i) / inRate))
		rs.Push(v, v)
		l, _ := rs.Drain()
		out = append(out, l...)
	}

	// one second of input produces very nearly one second of output
	test.ExpectApproximate(t, len(out), int(outRate), 0.01)

	// residual distortion must be below -60dB
	db := distortion(out, freq, outRate)
	if db > -60 {
		t.Errorf("distortion %0.1fdB is above -60dB", db)
	}
}

func TestTrim(t *testing.T) {
	const (
		inRate  = 32000.0
		outRate = 48000.0
	)

	count := func(trim float64) int {
		rs := resampler.New(inRate, outRate)
		rs.SetTrim(trim)
		var n int
		for i := 0; i < int(inRate); i++ {
			rs.Push(0, 0)
			l, _ := rs.Drain()
			n += len(l)
		}
		return n
	}

	// a positive trim consumes input faster and so produces fewer output
	// samples; a negative trim produces more
	slow := count(resampler.MaxTrim)
	fast := count(-resampler.MaxTrim)
	test.ExpectSuccess(t, slow < fast)

	// the difference is about 1% (0.5% each way)
	test.ExpectApproximate(t, fast-slow, int(outRate/100), 0.25)

	// trims beyond the limit are clamped
	test.ExpectEquality(t, count(10), slow)
}

func TestNearest(t *testing.T) {
	const (
		inRate  = 44100.0
		outRate = 48000.0
	)

	rs := resampler.NewNearest(inRate, outRate)

	var out []float32
	for i := 0; i < int(inRate); i++ {
		rs.Push(0.5, 0.5)
		l, _ := rs.Drain()
		out = append(out, l...)
	}

	test.ExpectApproximate(t, len(out), int(outRate), 0.01)

	// dc passes through the prefilter unchanged once settled
	test.ExpectApproximate(t, float64(out[len(out)-1]), 0.5, 0.01)
}
