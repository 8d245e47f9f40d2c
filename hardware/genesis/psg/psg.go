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

// Package psg emulates the SN76489 programmable sound generator, used in
// the Genesis, the Master System and the Game Gear. Three square wave
// generators and an LFSR noise source.
//
// The chip updates its counters every 16 input clocks and the package
// emits one sample per update.
package psg

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
)

// the logarithmic volume table. each attenuation step is 2dB; level 15 is
// silence
var volumeTable = [16]float32{
	1.0, 0.7943, 0.6310, 0.5012, 0.3981, 0.3162, 0.2512, 0.1995,
	0.1585, 0.1259, 0.1, 0.0794, 0.0631, 0.0501, 0.0398, 0,
}

// PSG is the SN76489 sound generator.
type PSG struct {
	// tone periods, counters and outputs for the three square channels
	period  [4]int
	counter [4]int
	output  [4]bool

	// attenuation per channel (15 is silence)
	volume [4]int

	// the latched channel/register for data byte writes
	latchChannel int
	latchVolume  bool

	// noise
	noiseShift   uint16
	noiseWhite   bool
	noiseDivider int

	// the Game Gear stereo register: upper nibble enables channels on the
	// left, lower nibble on the right
	stereoMask uint8

	// master clock ticks per counter update and accumulator
	divider int64
	acc     int64
	tick    int64

	ring *mix.Ring
}

// NewPSG is the preferred method of initialisation for the PSG type. The
// divider argument is the number of master clock ticks per internal
// update (16 input clocks).
func NewPSG(ring *mix.Ring, divider int64) *PSG {
	p := &PSG{
		ring:       ring,
		divider:    divider,
		noiseShift: 0x8000,
		stereoMask: 0xff,
	}
	for i := range p.volume {
		p.volume[i] = 15
	}
	return p
}

// Write services a write to the PSG's single port.
func (p *PSG) Write(data uint8) {
	if data&0x80 == 0x80 {
		// latch/data byte
		p.latchChannel = int(data>>5) & 0x03
		p.latchVolume = data&0x10 == 0x10

		if p.latchVolume {
			p.volume[p.latchChannel] = int(data & 0x0f)
		} else if p.latchChannel == 3 {
			p.writeNoise(data)
		} else {
			p.period[p.latchChannel] = p.period[p.latchChannel]&0x3f0 | int(data&0x0f)
		}
		return
	}

	// data byte: completes the latched register
	if p.latchVolume {
		p.volume[p.latchChannel] = int(data & 0x0f)
	} else if p.latchChannel == 3 {
		p.writeNoise(data)
	} else {
		p.period[p.latchChannel] = p.period[p.latchChannel]&0x00f | int(data&0x3f)<<4
	}
}

// writeNoise services a write to the noise control register.
func (p *PSG) writeNoise(data uint8) {
	p.noiseWhite = data&0x04 == 0x04
	p.noiseDivider = int(data & 0x03)
	p.noiseShift = 0x8000
}

// SetStereo sets the Game Gear stereo enable register.
func (p *PSG) SetStereo(mask uint8) {
	p.stereoMask = mask
}

// Step advances the PSG by the given number of master clock ticks.
func (p *PSG) Step(ticks int64) {
	p.acc += ticks
	for p.acc >= p.divider {
		p.acc -= p.divider
		p.tick += p.divider
		p.update()
	}
}

// update advances all counters by one 16-clock unit and emits a sample.
func (p *PSG) update() {
	// tone channels. a period of zero behaves exactly like a period of
	// one: the output toggles on every update
	for ch := 0; ch < 3; ch++ {
		p.counter[ch]--
		if p.counter[ch] <= 0 {
			p.counter[ch] = max(p.period[ch], 1)
			p.output[ch] = !p.output[ch]
		}
	}

	// noise channel. divider 3 tracks tone channel 2's period
	p.counter[3]--
	if p.counter[3] <= 0 {
		switch p.noiseDivider {
		case 0:
			p.counter[3] = 0x10
		case 1:
			p.counter[3] = 0x20
		case 2:
			p.counter[3] = 0x40
		default:
			p.counter[3] = max(p.period[2], 1)
		}

		if p.output[3] {
			// shift on the falling edge of the divided clock
			var in uint16
			if p.noiseWhite {
				in = (p.noiseShift ^ p.noiseShift>>3) & 0x01
			} else {
				in = p.noiseShift & 0x01
			}
			p.noiseShift = p.noiseShift>>1 | in<<15
		}
		p.output[3] = !p.output[3]
	}

	var left, right float32
	for ch := 0; ch < 4; ch++ {
		var high bool
		if ch == 3 {
			high = p.noiseShift&0x01 == 0x01
		} else {
			high = p.output[ch]
		}

		if !high {
			continue
		}

		v := volumeTable[p.volume[ch]]
		if p.stereoMask&(1<<uint(ch+4)) != 0 {
			left += v
		}
		if p.stereoMask&(1<<uint(ch)) != 0 {
			right += v
		}
	}

	p.ring.Push(mix.Frame{Tick: p.tick, L: left / 4, R: right / 4})
}

// Output returns the current output state of a tone channel. Used by
// tests.
func (p *PSG) Output(ch int) bool {
	return p.output[ch]
}
