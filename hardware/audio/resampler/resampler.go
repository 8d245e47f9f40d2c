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

// Package resampler converts a sample stream from an audio unit's native
// rate to the host output rate.
//
// The default method is a Kaiser-windowed sinc polyphase filter. A cheaper
// method (a one-pole prefilter followed by nearest-neighbour selection) is
// available for the low-rate units where the full filter is a waste of
// host cycles.
//
// The ratio of a resampler can be trimmed at runtime within +/-0.5% of the
// nominal value. The mixer uses this to steer the host audio queue towards
// its target depth, absorbing the drift between the emulated crystal and
// the host sound card crystal. The filtering converters absorb the trim
// in their interpolation; the Identity converter drops or repeats single
// samples instead.
package resampler

import (
	"math"
)

const (
	// number of filter taps evaluated per output sample
	taps = 32

	// number of phase-shifted kernels. the fractional position between
	// input samples is quantised to one of these
	phases = 512

	// kaiser window shape. beta of 9 puts the stopband below -60dB which
	// is where the resampler round-trip property needs it
	kaiserBeta = 9.0

	// maximum ratio trim requested by the dynamic rate control
	MaxTrim = 0.005
)

// Resampler converts a stereo stream between two sample rates.
type Resampler struct {
	nominal float64
	ratio   float64

	kernel [][]float32

	// input history. a circular buffer of the most recent taps samples per
	// channel
	histL [taps]float32
	histR [taps]float32
	hist  int

	// fractional position of the next output sample, measured in input
	// samples behind the most recent input sample
	pos float64

	outL []float32
	outR []float32
}

// New creates a windowed-sinc resampler between the two rates.
func New(inRate float64, outRate float64) *Resampler {
	r := &Resampler{
		nominal: inRate / outRate,
		ratio:   inRate / outRate,
	}
	r.buildKernel(inRate, outRate)
	return r
}

// modified bessel function of the first kind, order zero. used by the
// kaiser window.
func bessi0(x float64) float64 {
	sum := 1.0
	term := 1.0
	for i := 1; i < 32; i++ {
		term *= (x / 2) * (x / 2) / float64(i*i)
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}

func (r *Resampler) buildKernel(inRate float64, outRate float64) {
	// cutoff a little below the lower nyquist to leave room for the
	// transition band
	cutoff := 0.45 * min(inRate, outRate) / inRate

	r.kernel = make([][]float32, phases)
	den := bessi0(kaiserBeta)

	for p := 0; p < phases; p++ {
		k := make([]float32, taps)
		frac := float64(p) / phases

		var sum float64
		for i := 0; i < taps; i++ {
			// t is the distance from the filter centre in input samples
			t := float64(i-taps/2) + frac

			// sinc
			var s float64
			x := 2 * math.Pi * cutoff * t
			if math.Abs(x) < 1e-9 {
				s = 2 * cutoff
			} else {
				s = math.Sin(x) / x * 2 * cutoff
			}

			// kaiser window
			w := 2*float64(i) + 2*frac
			w = w/float64(taps) - 1
			if w < -1 || w > 1 {
				s = 0
			} else {
				s *= bessi0(kaiserBeta*math.Sqrt(1-w*w)) / den
			}

			k[i] = float32(s)
			sum += s
		}

		// normalise for unity DC gain
		for i := range k {
			k[i] = float32(float64(k[i]) / sum)
		}

		r.kernel[p] = k
	}
}

// SetTrim adjusts the resampling ratio by the given fraction of the nominal
// ratio. Values outside +/-MaxTrim are clamped.
func (r *Resampler) SetTrim(trim float64) {
	if trim > MaxTrim {
		trim = MaxTrim
	} else if trim < -MaxTrim {
		trim = -MaxTrim
	}
	r.ratio = r.nominal * (1 + trim)
}

// convolve the history buffer with the kernel for the given phase. the
// four-accumulator form keeps the loop free of a serial dependency so the
// compiler can use the wide multiply-add units where they exist.
func (r *Resampler) convolve(k []float32) (float32, float32) {
	var l0, l1, l2, l3 float32
	var r0, r1, r2, r3 float32

	h := r.hist
	for i := 0; i < taps; i += 4 {
		i0 := (h + i) % taps
		i1 := (h + i + 1) % taps
		i2 := (h + i + 2) % taps
		i3 := (h + i + 3) % taps
		l0 += k[i] * r.histL[i0]
		l1 += k[i+1] * r.histL[i1]
		l2 += k[i+2] * r.histL[i2]
		l3 += k[i+3] * r.histL[i3]
		r0 += k[i] * r.histR[i0]
		r1 += k[i+1] * r.histR[i1]
		r2 += k[i+2] * r.histR[i2]
		r3 += k[i+3] * r.histR[i3]
	}

	return l0 + l1 + l2 + l3, r0 + r1 + r2 + r3
}

// Push adds one input sample to the resampler. Any output samples that
// become available are appended to the output buffer, retrievable with
// Drain().
func (r *Resampler) Push(left float32, right float32) {
	r.histL[r.hist] = left
	r.histR[r.hist] = right
	r.hist = (r.hist + 1) % taps

	// one more input sample is available: the position of the next output
	// sample moves one sample closer
	r.pos -= 1

	for r.pos <= 0 {
		// quantise the fractional position to a kernel phase
		frac := -r.pos
		p := int(frac*phases) % phases

		l, rr := r.convolve(r.kernel[p])
		r.outL = append(r.outL, l)
		r.outR = append(r.outR, rr)

		r.pos += r.ratio
	}
}

// Drain returns the output samples accumulated since the last call. The
// returned slices are valid until the next call to Push.
func (r *Resampler) Drain() ([]float32, []float32) {
	l := r.outL
	rr := r.outR
	r.outL = r.outL[:0]
	r.outR = r.outR[:0]
	return l, rr
}

// Reset discards all state, including pending output samples.
func (r *Resampler) Reset() {
	r.histL = [taps]float32{}
	r.histR = [taps]float32{}
	r.hist = 0
	r.pos = 0
	r.outL = r.outL[:0]
	r.outR = r.outR[:0]
}
