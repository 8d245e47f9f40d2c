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

package mix

import (
	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/hardware/audio/resampler"
)

// Source is one audio unit's contribution to the mix.
type Source struct {
	label string
	ring  *Ring
	conv  resampler.Converter
	gain  float32

	// per-channel filter chain applied at the unit's native rate, before
	// resampling
	filterL filters.Filter
	filterR filters.Filter

	// host-rate samples waiting to be mixed
	pendL []float32
	pendR []float32

	// tick of the most recently consumed frame
	tick int64
}

// Mixer drains the audio unit rings in master-clock order, resamples each
// stream to the host rate and sums them.
type Mixer struct {
	hostRate int
	sources  []*Source

	// mixed output, interleaved stereo, waiting for the sink
	out []float32

	muted bool

	// dynamic rate control
	queueTarget int
	trim        float64
}

// NewMixer is the preferred method of initialisation for the Mixer type.
// The queueTarget argument is the host queue depth, in frames, that the
// dynamic rate control steers towards.
func NewMixer(hostRate int, queueTarget int) *Mixer {
	return &Mixer{
		hostRate:    hostRate,
		queueTarget: queueTarget,
	}
}

// AddSource registers an audio unit with the mixer. The rate argument is
// the unit's native sample rate; sinc selects the windowed-sinc resampler
// over the nearest-neighbour fallback. The returned Ring is the unit's to
// push into.
func (m *Mixer) AddSource(label string, rate float64, sinc bool, preset filters.Preset) *Ring {
	var conv resampler.Converter
	if rate == float64(m.hostRate) {
		conv = resampler.NewIdentity()
	} else if sinc {
		conv = resampler.New(rate, float64(m.hostRate))
	} else {
		conv = resampler.NewNearest(rate, float64(m.hostRate))
	}

	s := &Source{
		label:   label,
		ring:    NewRing(int(rate / 10)),
		conv:    conv,
		gain:    1.0,
		filterL: filters.NewPreset(preset, rate),
		filterR: filters.NewPreset(preset, rate),
	}

	m.sources = append(m.sources, s)
	return s.ring
}

// SetGain adjusts the contribution of the labelled source.
func (m *Mixer) SetGain(label string, gain float32) {
	for _, s := range m.sources {
		if s.label == label {
			s.gain = gain
		}
	}
}

// Mute silences the mixed output without stopping the mixing process.
func (m *Mixer) Mute(set bool) {
	m.muted = set
}

// nextSource returns the source whose ring holds the oldest unconsumed
// frame.
func (m *Mixer) nextSource() *Source {
	var sel *Source
	var selTick int64

	for _, s := range m.sources {
		f, ok := s.ring.Peek()
		if !ok {
			continue
		}
		if sel == nil || f.Tick < selTick {
			sel = s
			selTick = f.Tick
		}
	}

	return sel
}

// Mix drains the unit rings and accumulates host-rate output. Call Drain()
// afterwards to collect the mixed samples.
//
// Frames are consumed strictly in tick order across all rings. Samples from
// different units that resolve to the same output position are summed;
// addition is commutative so the order of units within a tick does not
// matter.
func (m *Mixer) Mix() {
	for {
		s := m.nextSource()
		if s == nil {
			break
		}

		f, _ := s.ring.Pop()
		s.tick = f.Tick

		l := f.L * s.gain
		r := f.R * s.gain
		if s.filterL != nil {
			l = s.filterL.Process(l)
			r = s.filterR.Process(r)
		}

		s.conv.Push(l, r)
		pl, pr := s.conv.Drain()
		s.pendL = append(s.pendL, pl...)
		s.pendR = append(s.pendR, pr...)
	}

	// the number of output frames that every source can contribute to
	n := -1
	for _, s := range m.sources {
		if len(s.pendL) < n || n == -1 {
			n = len(s.pendL)
		}
	}
	if n <= 0 {
		return
	}

	for i := 0; i < n; i++ {
		var l, r float32
		for _, s := range m.sources {
			l += s.pendL[i]
			r += s.pendR[i]
		}
		if m.muted {
			l = 0
			r = 0
		}
		m.out = append(m.out, l, r)
	}

	for _, s := range m.sources {
		copy(s.pendL, s.pendL[n:])
		s.pendL = s.pendL[:len(s.pendL)-n]
		copy(s.pendR, s.pendR[n:])
		s.pendR = s.pendR[:len(s.pendR)-n]
	}
}

// Drain returns the mixed output accumulated since the last call,
// interleaved stereo at the host rate. The returned slice is valid until
// the next call to Mix.
func (m *Mixer) Drain() []float32 {
	out := m.out
	m.out = m.out[:0]
	return out
}

// ReportQueue tells the mixer the current depth of the host audio queue in
// frames. The mixer trims the resampling ratio of every source within
// +/-0.5% to steer the queue towards the target depth, avoiding both
// underruns and overruns.
func (m *Mixer) ReportQueue(depth int) {
	if m.queueTarget <= 0 {
		return
	}

	// proportional control. a full target's worth of error maps to the
	// maximum trim
	err := float64(depth-m.queueTarget) / float64(m.queueTarget)
	m.trim = err * resampler.MaxTrim
	if m.trim > resampler.MaxTrim {
		m.trim = resampler.MaxTrim
	} else if m.trim < -resampler.MaxTrim {
		m.trim = -resampler.MaxTrim
	}

	for _, s := range m.sources {
		s.conv.SetTrim(m.trim)
	}
}

// Trim returns the current resampling ratio trim. Useful for the host's
// diagnostic overlays.
func (m *Mixer) Trim() float64 {
	return m.trim
}
