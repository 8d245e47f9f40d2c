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

package resampler

import (
	"github.com/jetsetilly/gophergen/hardware/audio/filters"
)

// Nearest is the low-cost fallback resampler: a one-pole low-pass at a
// little under half the destination rate followed by nearest-neighbour
// selection. Suitable for the NES and Game Boy APUs where the full sinc
// filter is unnecessary work for the host.
type Nearest struct {
	nominal float64
	ratio   float64

	preL filters.Filter
	preR filters.Filter

	lastL float32
	lastR float32
	pos   float64

	outL []float32
	outR []float32
}

// NewNearest creates a nearest-neighbour resampler between the two rates.
func NewNearest(inRate float64, outRate float64) *Nearest {
	return &Nearest{
		nominal: inRate / outRate,
		ratio:   inRate / outRate,
		preL:    filters.NewFirstOrder(inRate, 0.45*min(inRate, outRate)),
		preR:    filters.NewFirstOrder(inRate, 0.45*min(inRate, outRate)),
	}
}

// SetTrim adjusts the resampling ratio. See Resampler.SetTrim().
func (r *Nearest) SetTrim(trim float64) {
	if trim > MaxTrim {
		trim = MaxTrim
	} else if trim < -MaxTrim {
		trim = -MaxTrim
	}
	r.ratio = r.nominal * (1 + trim)
}

// Push adds one input sample. See Resampler.Push().
func (r *Nearest) Push(left float32, right float32) {
	r.lastL = r.preL.Process(left)
	r.lastR = r.preR.Process(right)

	r.pos -= 1
	for r.pos <= 0 {
		r.outL = append(r.outL, r.lastL)
		r.outR = append(r.outR, r.lastR)
		r.pos += r.ratio
	}
}

// Drain returns the output samples accumulated since the last call.
func (r *Nearest) Drain() ([]float32, []float32) {
	l := r.outL
	rr := r.outR
	r.outL = r.outL[:0]
	r.outR = r.outR[:0]
	return l, rr
}

// Reset discards all state.
func (r *Nearest) Reset() {
	r.preL.Reset()
	r.preR.Reset()
	r.lastL = 0
	r.lastR = 0
	r.pos = 0
	r.outL = r.outL[:0]
	r.outR = r.outR[:0]
}

// Converter is implemented by both resampler types. The mixer works with
// either.
type Converter interface {
	SetTrim(trim float64)
	Push(left float32, right float32)
	Drain() ([]float32, []float32)
	Reset()
}
