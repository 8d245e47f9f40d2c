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

package snes

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
)

// DSPInterpolation selects how a voice resolves fractional sample
// positions: the hardware's gaussian table or cubic hermite.
type DSPInterpolation int

// List of valid DSPInterpolation values.
const (
	DSPGaussian DSPInterpolation = iota
	DSPHermite
)

// voice is one of the eight DSP voices.
type voice struct {
	volL int8
	volR int8

	pitch  uint16
	srcn   uint8
	adsr1  uint8
	adsr2  uint8
	gain   uint8

	keyed bool

	// BRR decode state
	brrAddr   uint16
	brrOffset int
	buf       [12]int16
	bufPos    int

	// pitch counter: 4.12 fixed point
	counter uint32

	// envelope: 0-2047
	env      int
	envPhase int

	// last decoded samples for the BRR filters
	prev1 int16
	prev2 int16

	endFlag bool
}

// envelope phases.
const (
	dspEnvAttack = iota
	dspEnvDecay
	dspEnvSustain
	dspEnvRelease
)

// DSP is the S-DSP: eight BRR voices, echo and noise, clocked at
// 32000Hz from the APU crystal.
type DSP struct {
	// 64KB of audio RAM shared with the SPC700
	ram [0x10000]uint8

	regs   [0x80]uint8
	voices [8]voice

	// master and echo volumes
	mvolL, mvolR int8
	evolL, evolR int8

	// echo buffer state
	echoStart  uint16
	echoDelay  int
	echoOffset int
	echoFB     int8
	fir        [8]int8
	firBuf     [2][8]int

	// noise
	noiseLFSR int

	Interp DSPInterpolation

	// master clock accumulation
	divider int64
	acc     int64
	tick    int64

	ring *mix.Ring
}

// NewDSP is the preferred method of initialisation for the DSP type.
// The divider argument is the number of master clock ticks per 32kHz
// sample.
func NewDSP(ring *mix.Ring, divider int64) *DSP {
	d := &DSP{
		ring:      ring,
		divider:   divider,
		noiseLFSR: 0x4000,
	}
	return d
}

// ReadRAM and WriteRAM give the SPC700 side access to audio RAM.
func (d *DSP) ReadRAM(address uint16) uint8 {
	return d.ram[address]
}

func (d *DSP) WriteRAM(address uint16, data uint8) {
	d.ram[address] = data
}

// WriteRegister services an S-DSP register write.
func (d *DSP) WriteRegister(reg uint8, data uint8) {
	reg &= 0x7f
	d.regs[reg] = data

	v := int(reg >> 4)
	switch reg & 0x0f {
	case 0x00:
		d.voices[v].volL = int8(data)
	case 0x01:
		d.voices[v].volR = int8(data)
	case 0x02:
		d.voices[v].pitch = d.voices[v].pitch&0x3f00 | uint16(data)
	case 0x03:
		d.voices[v].pitch = d.voices[v].pitch&0x00ff | uint16(data&0x3f)<<8
	case 0x04:
		d.voices[v].srcn = data
	case 0x05:
		d.voices[v].adsr1 = data
	case 0x06:
		d.voices[v].adsr2 = data
	case 0x07:
		d.voices[v].gain = data
	case 0x0c:
		switch reg {
		case 0x0c:
			d.mvolL = int8(data)
		case 0x1c:
			d.mvolR = int8(data)
		case 0x2c:
			d.evolL = int8(data)
		case 0x3c:
			d.evolR = int8(data)
		case 0x4c:
			d.keyOn(data)
		case 0x5c:
			d.keyOff(data)
		case 0x6c:
			// FLG: noise clock and mute, reset
		case 0x7c:
			// ENDX: a write clears every end flag
			for i := range d.voices {
				d.voices[i].endFlag = false
			}
		}
	case 0x0d:
		switch reg {
		case 0x0d:
			d.echoFB = int8(data)
		case 0x2d, 0x3d:
			// pitch modulation / noise enable
		case 0x4d:
			// echo enable
		case 0x5d:
			// DIR: source directory page
		case 0x6d:
			d.echoStart = uint16(data) << 8
		case 0x7d:
			d.echoDelay = int(data&0x0f) * 512
		}
	case 0x0f:
		d.fir[v] = int8(data)
	}
}

// ReadRegister services an S-DSP register read.
func (d *DSP) ReadRegister(reg uint8) uint8 {
	reg &= 0x7f
	if reg == 0x7c {
		// ENDX
		var e uint8
		for i := range d.voices {
			if d.voices[i].endFlag {
				e |= 1 << uint(i)
			}
		}
		return e
	}
	return d.regs[reg]
}

// sourceEntry reads a voice's BRR directory entry.
func (d *DSP) sourceEntry(v *voice) (uint16, uint16) {
	dir := uint16(d.regs[0x5d]) << 8
	base := dir + uint16(v.srcn)*4
	start := uint16(d.ram[base]) | uint16(d.ram[base+1])<<8
	loop := uint16(d.ram[base+2]) | uint16(d.ram[base+3])<<8
	return start, loop
}

// keyOn starts voices per the mask.
func (d *DSP) keyOn(mask uint8) {
	for i := range d.voices {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		v := &d.voices[i]
		start, _ := d.sourceEntry(v)
		v.brrAddr = start
		v.brrOffset = 0
		v.counter = 0
		v.bufPos = 0
		v.prev1 = 0
		v.prev2 = 0
		v.env = 0
		v.envPhase = dspEnvAttack
		v.keyed = true

		// decode three 4-sample groups so the interpolator has data
		d.decodeBlock(v)
		d.decodeBlock(v)
		d.decodeBlock(v)
	}
}

// keyOff releases voices per the mask.
func (d *DSP) keyOff(mask uint8) {
	for i := range d.voices {
		if mask&(1<<uint(i)) != 0 {
			d.voices[i].envPhase = dspEnvRelease
		}
	}
}

// decodeBlock decodes one 4-sample group of the current BRR block into
// the voice's ring buffer. A BRR block is 9 bytes: a header then 16
// nibbles; this decodes 4 nibbles per call to keep the buffer small.
func (d *DSP) decodeBlock(v *voice) {
	header := d.ram[v.brrAddr]
	shift := int(header >> 4)
	filter := int(header >> 2 & 0x03)

	for i := 0; i < 4; i++ {
		byteIdx := 1 + v.brrOffset/2
		var nib uint8
		if v.brrOffset&0x01 == 0 {
			nib = d.ram[v.brrAddr+uint16(byteIdx)] >> 4
		} else {
			nib = d.ram[v.brrAddr+uint16(byteIdx)] & 0x0f
		}
		v.brrOffset++

		// sign extend the nibble and apply the range shift
		s := int(int8(nib<<4)) >> 4
		if shift <= 12 {
			s = s << uint(shift) >> 1
		} else {
			// invalid shifts clamp as the hardware does
			s = s >> 3 << 12
		}

		// BRR prediction filters
		p1 := int(v.prev1)
		p2 := int(v.prev2)
		switch filter {
		case 1:
			s += p1 + (-p1 >> 4)
		case 2:
			s += p1*2 + (-p1*3 >> 5) - p2 + (p2 >> 4)
		case 3:
			s += p1*2 + (-p1*13 >> 6) - p2 + (p2*3 >> 4)
		}

		s = min(max(s, -32768), 32767)

		v.prev2 = v.prev1
		v.prev1 = int16(s)
		v.buf[v.bufPos%12] = int16(s)
		v.bufPos++
	}

	if v.brrOffset >= 16 {
		v.brrOffset = 0
		if header&0x01 == 0x01 {
			// end block: loop or stop
			v.endFlag = true
			_, loop := d.sourceEntry(v)
			if header&0x02 == 0x02 {
				v.brrAddr = loop
			} else {
				v.keyed = false
			}
		} else {
			v.brrAddr += 9
		}
	}
}

// gauss is a compact fit of the hardware gaussian table: the weights of
// the four taps as a function of the fractional position.
func gaussWeights(frac float64) (float64, float64, float64, float64) {
	// the hardware table is close to a raised cosine
	w0 := 0.168 * (1 - frac) * (1 - frac)
	w3 := 0.168 * frac * frac
	w1 := 0.684 - w3 + 0.148*(1-frac)*frac
	w2 := 0.684 - w0 + 0.148*(1-frac)*frac
	sum := w0 + w1 + w2 + w3
	return w0 / sum, w1 / sum, w2 / sum, w3 / sum
}

// interpolate resolves the fractional sample position of a voice.
func (v *voice) interpolate(interp DSPInterpolation) int {
	idx := v.bufPos - 4
	frac := float64(v.counter&0x0fff) / 4096

	s := func(i int) float64 {
		return float64(v.buf[(idx+i+12*4)%12])
	}

	switch interp {
	case DSPHermite:
		y0, y1, y2, y3 := s(0), s(1), s(2), s(3)
		c1 := (y2 - y0) / 2
		c2 := y0 - 2.5*y1 + 2*y2 - y3/2
		c3 := (y3-y0)/2 + 1.5*(y1-y2)
		x := frac
		return int(((c3*x+c2)*x+c1)*x + y1)
	default:
		w0, w1, w2, w3 := gaussWeights(frac)
		return int(w0*s(0) + w1*s(1) + w2*s(2) + w3*s(3))
	}
}

// stepEnvelope advances a voice's ADSR envelope one sample.
func (v *voice) stepEnvelope() {
	const envMax = 2047

	switch v.envPhase {
	case dspEnvAttack:
		rate := int(v.adsr1&0x0f)<<1 | 1
		v.env += 32 + rate*2
		if v.env >= envMax {
			v.env = envMax
			v.envPhase = dspEnvDecay
		}
	case dspEnvDecay:
		v.env -= ((v.env - 1) >> 8) + 1
		sustain := (int(v.adsr2>>5) + 1) << 8
		if v.env <= sustain {
			v.envPhase = dspEnvSustain
		}
	case dspEnvSustain:
		rate := int(v.adsr2 & 0x1f)
		if rate > 0 {
			v.env -= ((v.env - 1) >> 8) + 1
		}
	case dspEnvRelease:
		v.env -= 8
		if v.env <= 0 {
			v.env = 0
			v.keyed = false
		}
	}

	v.env = min(max(v.env, 0), envMax)
}

// Step advances the DSP by the given number of master clock ticks.
func (d *DSP) Step(ticks int64) {
	d.acc += ticks
	for d.acc >= d.divider {
		d.acc -= d.divider
		d.tick += d.divider
		d.sample()
	}
}

// sample produces one 32kHz output frame.
func (d *DSP) sample() {
	var sumL, sumR int
	var echoL, echoR int

	echoEnable := d.regs[0x4d]

	for i := range d.voices {
		v := &d.voices[i]
		if !v.keyed {
			continue
		}

		out := v.interpolate(d.Interp)
		v.stepEnvelope()
		out = out * v.env / 2048

		l := out * int(v.volL) / 128
		r := out * int(v.volR) / 128
		sumL += l
		sumR += r
		if echoEnable&(1<<uint(i)) != 0 {
			echoL += l
			echoR += r
		}

		// advance the pitch counter; each 4096 steps consumes one
		// sample, decoding more BRR data as the buffer drains
		v.counter += uint32(v.pitch)
		for v.counter >= 4096 {
			v.counter -= 4096
			if v.bufPos%4 == 0 && v.keyed {
				d.decodeBlock(v)
			}
		}
	}

	// echo: FIR filtered buffer in audio RAM with feedback
	outL, outR := d.stepEcho(echoL, echoR)
	sumL = sumL*int(d.mvolL)/128 + outL*int(d.evolL)/128
	sumR = sumR*int(d.mvolR)/128 + outR*int(d.evolR)/128

	sumL = min(max(sumL, -32768), 32767)
	sumR = min(max(sumR, -32768), 32767)

	d.ring.Push(mix.Frame{
		Tick: d.tick,
		L:    float32(sumL) / 32768,
		R:    float32(sumR) / 32768,
	})
}

// stepEcho runs the echo buffer and FIR filter.
func (d *DSP) stepEcho(inL int, inR int) (int, int) {
	if d.echoDelay == 0 {
		return 0, 0
	}

	addr := d.echoStart + uint16(d.echoOffset*4)

	// read the delayed samples
	oldL := int(int16(uint16(d.ram[addr]) | uint16(d.ram[addr+1])<<8))
	oldR := int(int16(uint16(d.ram[addr+2]) | uint16(d.ram[addr+3])<<8))

	// FIR history
	copy(d.firBuf[0][:], d.firBuf[0][1:])
	copy(d.firBuf[1][:], d.firBuf[1][1:])
	d.firBuf[0][7] = oldL
	d.firBuf[1][7] = oldR

	var firL, firR int
	for i := 0; i < 8; i++ {
		firL += d.firBuf[0][i] * int(d.fir[i]) / 128
		firR += d.firBuf[1][i] * int(d.fir[i]) / 128
	}

	// write back input plus feedback
	wl := inL + firL*int(d.echoFB)/128
	wr := inR + firR*int(d.echoFB)/128
	wl = min(max(wl, -32768), 32767)
	wr = min(max(wr, -32768), 32767)

	d.ram[addr] = uint8(wl)
	d.ram[addr+1] = uint8(wl >> 8)
	d.ram[addr+2] = uint8(wr)
	d.ram[addr+3] = uint8(wr >> 8)

	d.echoOffset++
	if d.echoOffset >= d.echoDelay {
		d.echoOffset = 0
	}

	return firL, firR
}

// Keyed reports whether the numbered voice is playing.
func (d *DSP) Keyed(v int) bool {
	return d.voices[v].keyed
}
