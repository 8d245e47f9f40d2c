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

package gb

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/clocks"
)

// the rate at which a channel's DAC output slews towards its target
// when the DAC is switched on or off. per output sample; avoids the pop
// the real hardware also largely avoids through its analogue path
const dacSlew = 1.0 / 256

// gbPulse is one of the two square channels.
type gbPulse struct {
	enabled bool
	dacOn   bool

	duty   int
	seq    int
	freq   int
	timer  int
	length int
	lenOn  bool

	// envelope
	envVol  int
	envDir  int
	envPace int
	envTick int

	// sweep (channel 1 only)
	sweepPace  int
	sweepDir   int
	sweepShift int
	sweepTick  int

	// the DAC fade state
	fade float32
}

// duty sequences.
var gbDuty = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 0},
}

// APU is the Game Boy sound unit.
type APU struct {
	pulses [2]gbPulse

	wave struct {
		enabled bool
		dacOn   bool
		freq    int
		timer   int
		pos     int
		length  int
		lenOn   bool
		volume  int
		ram     [16]uint8
		fade    float32
	}

	noise struct {
		enabled bool
		dacOn   bool
		lfsr    uint16
		narrow  bool
		divisor int
		shift   int
		timer   int
		length  int
		lenOn   bool
		envVol  int
		envDir  int
		envPace int
		envTick int
		fade    float32
	}

	// master enable and panning (NR50-NR52)
	masterOn bool
	nr50     uint8
	nr51     uint8

	// frame sequencer
	seqStep  int
	seqTimer int

	// sample output: one sample per gbSampleDots dots (65536Hz); the
	// mixer's resampler carries the stream to the host rate
	sampleTimer int
	tick        int64

	ring *mix.Ring
}

// dots per output sample. 4194304 / 64 = 65536Hz native rate
const gbSampleDots = 64

// GBSampleRate is the native sample rate of the APU.
const GBSampleRate = clocks.GBCrystal / gbSampleDots

// NewAPU is the preferred method of initialisation for the GB APU type.
func NewAPU(ring *mix.Ring) *APU {
	a := &APU{ring: ring}
	a.noise.lfsr = 0x7fff
	return a
}

// WriteRegister services writes to $FF10-$FF3F. The reg argument is the
// low byte of the address.
func (a *APU) WriteRegister(reg uint8, data uint8) {
	if !a.masterOn && reg != 0x26 && (reg < 0x30 || reg > 0x3f) {
		// registers are inert while the APU is off
		return
	}

	switch {
	case reg >= 0x10 && reg <= 0x14:
		a.writePulse(0, reg-0x10, data)
	case reg >= 0x15 && reg <= 0x19:
		a.writePulse(1, reg-0x15, data)
	case reg == 0x1a:
		a.wave.dacOn = data&0x80 == 0x80
		if !a.wave.dacOn {
			a.wave.enabled = false
		}
	case reg == 0x1b:
		a.wave.length = 256 - int(data)
	case reg == 0x1c:
		a.wave.volume = int(data >> 5 & 0x03)
	case reg == 0x1d:
		a.wave.freq = a.wave.freq&0x700 | int(data)
	case reg == 0x1e:
		a.wave.freq = a.wave.freq&0xff | int(data&0x07)<<8
		a.wave.lenOn = data&0x40 == 0x40
		if data&0x80 == 0x80 && a.wave.dacOn {
			a.wave.enabled = true
			a.wave.pos = 0
			if a.wave.length == 0 {
				a.wave.length = 256
			}
		}
	case reg >= 0x20 && reg <= 0x23:
		a.writeNoise(reg-0x20, data)
	case reg == 0x24:
		a.nr50 = data
	case reg == 0x25:
		a.nr51 = data
	case reg == 0x26:
		on := data&0x80 == 0x80
		if a.masterOn && !on {
			// switching the APU off clears every register
			*a = APU{ring: a.ring, tick: a.tick}
			a.noise.lfsr = 0x7fff
		}
		a.masterOn = on
	case reg >= 0x30 && reg <= 0x3f:
		a.wave.ram[reg-0x30] = data
	}
}

// writePulse services the five registers of a pulse channel.
func (a *APU) writePulse(ch int, reg uint8, data uint8) {
	p := &a.pulses[ch]

	switch reg {
	case 0:
		if ch == 0 {
			p.sweepPace = int(data >> 4 & 0x07)
			p.sweepDir = int(data >> 3 & 0x01)
			p.sweepShift = int(data & 0x07)
		}
	case 1:
		p.duty = int(data >> 6)
		p.length = 64 - int(data&0x3f)
	case 2:
		p.envVol = int(data >> 4)
		p.envDir = int(data >> 3 & 0x01)
		p.envPace = int(data & 0x07)
		p.dacOn = data&0xf8 != 0
		if !p.dacOn {
			p.enabled = false
		}
	case 3:
		// writing the low frequency byte does not reload the running
		// period counter; the new period takes effect when the counter
		// next expires
		p.freq = p.freq&0x700 | int(data)
	case 4:
		p.freq = p.freq&0xff | int(data&0x07)<<8
		p.lenOn = data&0x40 == 0x40
		if data&0x80 == 0x80 && p.dacOn {
			p.enabled = true
			if p.length == 0 {
				p.length = 64
			}
			// the timer reloads but the duty position is kept: the
			// first step after a retrigger finishes the old waveform
			p.timer = (2048 - p.freq) * 4
			p.envTick = 0
		}
	}
}

// writeNoise services the noise channel registers.
func (a *APU) writeNoise(reg uint8, data uint8) {
	n := &a.noise

	switch reg {
	case 0:
		n.length = 64 - int(data&0x3f)
	case 1:
		n.envVol = int(data >> 4)
		n.envDir = int(data >> 3 & 0x01)
		n.envPace = int(data & 0x07)
		n.dacOn = data&0xf8 != 0
		if !n.dacOn {
			n.enabled = false
		}
	case 2:
		n.shift = int(data >> 4)
		n.narrow = data&0x08 == 0x08
		n.divisor = int(data & 0x07)
	case 3:
		n.lenOn = data&0x40 == 0x40
		if data&0x80 == 0x80 && n.dacOn {
			n.enabled = true
			n.lfsr = 0x7fff
			if n.length == 0 {
				n.length = 64
			}
		}
	}
}

// ReadNR52 services the $FF26 status read.
func (a *APU) ReadNR52() uint8 {
	var v uint8 = 0x70
	if a.masterOn {
		v |= 0x80
	}
	if a.pulses[0].enabled {
		v |= 0x01
	}
	if a.pulses[1].enabled {
		v |= 0x02
	}
	if a.wave.enabled {
		v |= 0x04
	}
	if a.noise.enabled {
		v |= 0x08
	}
	return v
}

// Step advances the APU by the given number of 4MHz dots.
func (a *APU) Step(dots int) {
	for i := 0; i < dots; i++ {
		a.tick++

		// frame sequencer at 512Hz
		a.seqTimer++
		if a.seqTimer >= clocks.GBAPUFrameSequencerDivider {
			a.seqTimer = 0
			a.stepSequencer()
		}

		if a.masterOn {
			// pulse timers
			for c := range a.pulses {
				p := &a.pulses[c]
				p.timer--
				if p.timer <= 0 {
					p.timer = (2048 - p.freq) * 4
					p.seq = (p.seq + 1) & 0x07
				}
			}

			// wave timer
			a.wave.timer--
			if a.wave.timer <= 0 {
				a.wave.timer = (2048 - a.wave.freq) * 2
				a.wave.pos = (a.wave.pos + 1) & 0x1f
			}

			// noise timer
			n := &a.noise
			n.timer--
			if n.timer <= 0 {
				d := n.divisor * 16
				if d == 0 {
					d = 8
				}
				n.timer = d << uint(n.shift)

				fb := (n.lfsr ^ n.lfsr>>1) & 0x01
				n.lfsr = n.lfsr>>1 | fb<<14
				if n.narrow {
					n.lfsr = n.lfsr&^0x40 | fb<<6
				}
			}
		}

		a.sampleTimer++
		if a.sampleTimer >= gbSampleDots {
			a.sampleTimer = 0
			a.emitSample()
		}
	}
}

// stepSequencer advances the 512Hz frame sequencer.
func (a *APU) stepSequencer() {
	a.seqStep = (a.seqStep + 1) & 0x07

	// length counters on even steps
	if a.seqStep&0x01 == 0 {
		for c := range a.pulses {
			p := &a.pulses[c]
			if p.lenOn && p.length > 0 {
				p.length--
				if p.length == 0 {
					p.enabled = false
				}
			}
		}
		if a.wave.lenOn && a.wave.length > 0 {
			a.wave.length--
			if a.wave.length == 0 {
				a.wave.enabled = false
			}
		}
		if a.noise.lenOn && a.noise.length > 0 {
			a.noise.length--
			if a.noise.length == 0 {
				a.noise.enabled = false
			}
		}
	}

	// sweep on steps 2 and 6
	if a.seqStep == 2 || a.seqStep == 6 {
		p := &a.pulses[0]
		if p.sweepPace > 0 {
			p.sweepTick++
			if p.sweepTick >= p.sweepPace {
				p.sweepTick = 0
				delta := p.freq >> uint(p.sweepShift)
				if p.sweepDir == 1 {
					p.freq -= delta
				} else {
					p.freq += delta
					if p.freq > 2047 {
						p.enabled = false
						p.freq = 2047
					}
				}
			}
		}
	}

	// envelopes on step 7
	if a.seqStep == 7 {
		stepGBEnvelope := func(vol *int, dir int, pace int, tick *int) {
			if pace == 0 {
				return
			}
			*tick++
			if *tick < pace {
				return
			}
			*tick = 0
			if dir == 1 && *vol < 15 {
				*vol++
			} else if dir == 0 && *vol > 0 {
				*vol--
			}
		}
		stepGBEnvelope(&a.pulses[0].envVol, a.pulses[0].envDir, a.pulses[0].envPace, &a.pulses[0].envTick)
		stepGBEnvelope(&a.pulses[1].envVol, a.pulses[1].envDir, a.pulses[1].envPace, &a.pulses[1].envTick)
		stepGBEnvelope(&a.noise.envVol, a.noise.envDir, a.noise.envPace, &a.noise.envTick)
	}
}

// channelOut returns a channel's DAC input (0-15) and whether its DAC is
// on.
func (a *APU) channelOut(ch int) (int, bool) {
	switch ch {
	case 0, 1:
		p := &a.pulses[ch]
		if !p.dacOn {
			return 0, false
		}
		if !p.enabled || gbDuty[p.duty][p.seq] == 0 {
			return 0, true
		}
		return p.envVol, true
	case 2:
		w := &a.wave
		if !w.dacOn {
			return 0, false
		}
		if !w.enabled || w.volume == 0 {
			return 0, true
		}
		s := w.ram[w.pos/2]
		if w.pos&0x01 == 0 {
			s >>= 4
		} else {
			s &= 0x0f
		}
		return int(s) >> uint(w.volume-1), true
	default:
		n := &a.noise
		if !n.dacOn {
			return 0, false
		}
		if !n.enabled || n.lfsr&0x01 == 0x01 {
			return 0, true
		}
		return n.envVol, true
	}
}

// emitSample mixes the four channels with panning and DAC fades.
func (a *APU) emitSample() {
	var left, right float32

	fades := []*float32{&a.pulses[0].fade, &a.pulses[1].fade, &a.wave.fade, &a.noise.fade}

	for ch := 0; ch < 4; ch++ {
		out, dacOn := a.channelOut(ch)

		// a DAC that has just switched on or off slews its contribution
		// rather than stepping, removing the transition pop
		target := float32(0)
		if dacOn {
			target = 1
		}
		f := fades[ch]
		if *f < target {
			*f = min(*f+dacSlew, 1)
		} else if *f > target {
			*f = max(*f-dacSlew, 0)
		}

		// the DAC maps 0-15 to +1..-1
		v := (1 - float32(out)/7.5) * *f

		if a.nr51&(1<<uint(ch+4)) != 0 {
			left += v
		}
		if a.nr51&(1<<uint(ch)) != 0 {
			right += v
		}
	}

	lvol := float32(a.nr50>>4&0x07+1) / 8
	rvol := float32(a.nr50&0x07+1) / 8

	a.ring.Push(mix.Frame{
		Tick: a.tick,
		L:    left / 4 * lvol,
		R:    right / 4 * rvol,
	})
}
