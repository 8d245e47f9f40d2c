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

// Package filters is a small library of low-pass filters for the audio
// path. The cutoff presets correspond to the output stages of the real
// consoles: the model 1 Genesis has a 3.39kHz first-order filter, the Sega
// CD a 7.97kHz second-order filter. Generic 5, 10 and 15kHz options are
// also available.
//
// All filter state flushes subnormal values to zero. A subnormal left to
// circulate in a filter tap makes the multiply in the inner loop two
// orders of magnitude slower on x86 and the audio thread cannot afford
// that.
package filters

import (
	"math"
)

// Filter processes one sample at a time. Implementations are mono;
// the audio units run one instance per channel.
type Filter interface {
	Process(x float32) float32
	Reset()
}

// any value below this threshold is treated as zero when it appears in
// filter state. well above the subnormal boundary (2^-126) so that values
// decaying towards it never linger in subnormal territory.
const flushThreshold = 1e-20

func flush(v float32) float32 {
	if v < flushThreshold && v > -flushThreshold {
		return 0
	}
	return v
}

// FirstOrder is a one-pole low-pass filter.
type FirstOrder struct {
	a float32
	y float32
}

// NewFirstOrder creates a one-pole low-pass with the given cutoff.
func NewFirstOrder(sampleRate float64, cutoff float64) *FirstOrder {
	// impulse-invariant mapping of the RC response
	return &FirstOrder{
		a: float32(1 - math.Exp(-2*math.Pi*cutoff/sampleRate)),
	}
}

// Process implements the Filter interface.
func (f *FirstOrder) Process(x float32) float32 {
	f.y = flush(f.y + f.a*(x-f.y))
	return f.y
}

// Reset implements the Filter interface.
func (f *FirstOrder) Reset() {
	f.y = 0
}

// Biquad is a second-order IIR section in direct form 1.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 float32
	y1, y2 float32
}

// NewSecondOrder creates a second-order Butterworth low-pass with the given
// cutoff.
func NewSecondOrder(sampleRate float64, cutoff float64) *Biquad {
	const q = math.Sqrt2 / 2

	w := 2 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(w) / (2 * q)
	cw := math.Cos(w)

	a0 := 1 + alpha
	return &Biquad{
		b0: float32((1 - cw) / 2 / a0),
		b1: float32((1 - cw) / a0),
		b2: float32((1 - cw) / 2 / a0),
		a1: float32(-2 * cw / a0),
		a2: float32((1 - alpha) / a0),
	}
}

// Process implements the Filter interface.
func (f *Biquad) Process(x float32) float32 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	y = flush(y)

	f.x2 = f.x1
	f.x1 = x
	f.y2 = flush(f.y1)
	f.y1 = y

	return y
}

// Reset implements the Filter interface.
func (f *Biquad) Reset() {
	f.x1 = 0
	f.x2 = 0
	f.y1 = 0
	f.y2 = 0
}

// Preset identifies one of the documented output-stage responses.
type Preset int

// List of valid Preset values.
const (
	PresetNone Preset = iota
	Preset5kHz
	Preset10kHz
	Preset15kHz
	PresetGenesisModel1
	PresetSegaCD
)

func (p Preset) String() string {
	switch p {
	case PresetNone:
		return "none"
	case Preset5kHz:
		return "5kHz first-order"
	case Preset10kHz:
		return "10kHz first-order"
	case Preset15kHz:
		return "15kHz first-order"
	case PresetGenesisModel1:
		return "3.39kHz first-order (Genesis model 1)"
	case PresetSegaCD:
		return "7.97kHz second-order (Sega CD)"
	}
	return "unknown"
}

// NewPreset creates the filter described by the preset, for a stream at the
// given sample rate. The PresetNone preset returns nil; a nil Filter means
// no filtering.
func NewPreset(p Preset, sampleRate float64) Filter {
	switch p {
	case Preset5kHz:
		return NewFirstOrder(sampleRate, 5000)
	case Preset10kHz:
		return NewFirstOrder(sampleRate, 10000)
	case Preset15kHz:
		return NewFirstOrder(sampleRate, 14973)
	case PresetGenesisModel1:
		return NewFirstOrder(sampleRate, 3390)
	case PresetSegaCD:
		return NewSecondOrder(sampleRate, 7970)
	}
	return nil
}
