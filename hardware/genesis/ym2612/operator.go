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

package ym2612

import (
	"math"
)

// opIndex maps a register address to an operator array index. The YM2612
// interleaves its operator registers in the order op1, op3, op2, op4.
func opIndex(addr uint8) int {
	switch (addr >> 2) & 0x03 {
	case 0x01:
		return 2
	case 0x02:
		return 1
	case 0x03:
		return 3
	}
	return 0
}

// envelope phases.
const (
	envAttack = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// operator is one of the four FM operators of a channel.
type operator struct {
	// programmed values
	detune   int
	multiple int
	totalLvl int
	keyScale int
	attack   int
	decay    int
	sustain  int
	susLvl   int
	release  int
	amEnable bool
	ssgEG    uint8

	// phase generator. phase is a 20 bit accumulator
	phase     uint32
	increment uint32

	// envelope generator. attenuation is 0 (loudest) to 1023 (silent)
	envPhase int
	att      int

	keyed bool
}

// write services an operator register write (registers $30 to $9F).
func (op *operator) write(addr uint8, data uint8) {
	switch addr & 0xf0 {
	case 0x30:
		op.detune = int(data>>4) & 0x07
		op.multiple = int(data) & 0x0f
	case 0x40:
		op.totalLvl = int(data) & 0x7f
	case 0x50:
		op.keyScale = int(data>>6) & 0x03
		op.attack = int(data) & 0x1f
	case 0x60:
		op.amEnable = data&0x80 == 0x80
		op.decay = int(data) & 0x1f
	case 0x70:
		op.sustain = int(data) & 0x1f
	case 0x80:
		op.susLvl = int(data>>4) & 0x0f
		op.release = int(data) & 0x0f
	case 0x90:
		op.ssgEG = data & 0x0f
	}
}

// keyOn starts the envelope from the attack phase.
func (op *operator) keyOn() {
	if !op.keyed {
		op.keyed = true
		op.envPhase = envAttack
		op.phase = 0
	}
}

// keyOff moves the envelope to the release phase.
func (op *operator) keyOff() {
	if op.keyed {
		op.keyed = false
		op.envPhase = envRelease
	}
}

// setIncrement computes the phase increment from f-num, block, detune and
// multiple.
func (op *operator) setIncrement(fnum uint16, block int) {
	// the base increment is fnum shifted by the block
	inc := uint32(fnum) << uint(block) >> 1

	// detune adds or subtracts a small key-dependent amount
	kc := block<<2 | fnumToKeyCode(fnum)
	dt := detuneTable[kc][op.detune&0x03]
	if op.detune >= 4 {
		inc -= uint32(dt)
	} else {
		inc += uint32(dt)
	}

	// multiple scales the lot; multiple 0 means half
	if op.multiple == 0 {
		inc >>= 1
	} else {
		inc *= uint32(op.multiple)
	}

	op.increment = inc & 0xfffff
}

// stepEnvelope advances the envelope generator by one sample.
func (op *operator) stepEnvelope() {
	switch op.envPhase {
	case envAttack:
		if op.attack == 0 {
			return
		}
		// exponential attack towards zero attenuation
		op.att -= (op.att >> 4) + rateStep(op.attack)
		if op.att <= 0 {
			op.att = 0
			op.envPhase = envDecay
		}
	case envDecay:
		op.att += rateStep(op.decay)
		if op.att >= op.sustainAtt() {
			op.att = op.sustainAtt()
			op.envPhase = envSustain
		}
	case envSustain:
		op.att += rateStep(op.sustain)
		if op.att >= maxAtt {
			op.att = maxAtt
			op.envPhase = envOff
		}
	case envRelease:
		// release rates are 4 bits, mapped to the 5 bit scale
		op.att += rateStep(op.release<<1 | 0x01)
		if op.att >= maxAtt {
			op.att = maxAtt
			op.envPhase = envOff
		}
	}
}

const maxAtt = 1023

// sustainAtt converts the 4-bit sustain level to attenuation units.
func (op *operator) sustainAtt() int {
	if op.susLvl == 0x0f {
		return maxAtt
	}
	return op.susLvl << 5
}

// rateStep converts a 5-bit rate to an attenuation step per sample. Zero
// rates do not move.
func rateStep(rate int) int {
	if rate == 0 {
		return 0
	}
	return 1 << uint(rate>>2)
}

// output computes the operator's contribution for the given modulation
// input. Attenuation combines the envelope with the total level and
// (optionally) the LFO AM value.
func (op *operator) output(modulation float64, lfoAM int) float64 {
	op.phase = (op.phase + op.increment) & 0xfffff
	op.stepEnvelope()

	att := op.att + op.totalLvl<<3
	if op.amEnable {
		att += lfoAM
	}
	if att >= maxAtt {
		return 0
	}

	amp := math.Pow(2, -float64(att)/128)
	ph := float64(op.phase)/(1<<20)*2*math.Pi + modulation
	return math.Sin(ph) * amp
}

// channel is one of the six FM channels.
type channel struct {
	ops [4]operator

	fnum  uint16
	block int

	// channel 3 special mode frequencies for operators 1-3
	supFnum  [3]uint16
	supBlock [3]int
	supLatch [3]uint8

	algorithm int
	feedback  int
	panL      bool
	panR      bool
	ams       int
	pms       int

	// feedback history for operator 1
	fb1, fb2 float64
}

func (ch *channel) reset() {
	for i := range ch.ops {
		ch.ops[i].envPhase = envOff
		ch.ops[i].att = maxAtt
		ch.ops[i].keyed = false
	}
	ch.panL = true
	ch.panR = true
}

// setFrequency commits an f-num low write combined with the latched
// block/f-num high value.
func (ch *channel) setFrequency(fnum uint16, block int) {
	ch.fnum = fnum
	ch.block = block
	for i := range ch.ops {
		ch.ops[i].setIncrement(fnum, block)
	}
}

// writeSupplemental services the channel 3 special mode frequency
// registers ($A8 to $AF).
func (ch *channel) writeSupplemental(addr uint8, data uint8) {
	i := int(addr & 0x03)
	if i == 3 {
		return
	}
	if addr < 0xac {
		// f-num low: commit with latch
		ch.supFnum[i] = uint16(ch.supLatch[i]&0x07)<<8 | uint16(data)
		ch.supBlock[i] = int(ch.supLatch[i]>>3) & 0x07
		ch.ops[i].setIncrement(ch.supFnum[i], ch.supBlock[i])
	} else {
		ch.supLatch[i] = data & 0x3f
	}
}

// keyOnOff applies a key on/off mask (one bit per operator).
func (ch *channel) keyOnOff(mask uint8) {
	for i := range ch.ops {
		if mask&(1<<uint(i)) != 0 {
			ch.ops[i].keyOn()
		} else {
			ch.ops[i].keyOff()
		}
	}
}

// the LFO AM table: attenuation added at maximum AM sensitivity, indexed
// by LFO step. triangle wave
func lfoAM(step int, ams int) int {
	if ams == 0 {
		return 0
	}
	tri := step
	if tri >= 64 {
		tri = 127 - tri
	}
	return tri << uint(ams) >> 2
}

// output computes the channel's sample by running the operator chain
// according to the algorithm. In channel 3 special mode the supplemental
// frequencies have already been folded into the operator increments, so
// the chain runs the same either way.
func (ch *channel) output(lfoStep int, _ bool) float32 {
	am := lfoAM(lfoStep, ch.ams)

	// operator 1 with self feedback
	var fbIn float64
	if ch.feedback > 0 {
		fbIn = (ch.fb1 + ch.fb2) / 2 * math.Pow(2, float64(ch.feedback-10)) * 2 * math.Pi
	}
	op1 := ch.ops[0].output(fbIn, am)
	ch.fb2 = ch.fb1
	ch.fb1 = op1

	// modulation index scaling for operator chaining
	const mod = 4.0

	o := func(i int, m float64) float64 {
		return ch.ops[i].output(m*mod, am)
	}

	var out float64
	switch ch.algorithm {
	case 0:
		out = o(3, o(2, o(1, op1)))
	case 1:
		out = o(3, o(2, o(1, 0)+op1))
	case 2:
		out = o(3, o(2, o(1, 0))+op1)
	case 3:
		out = o(3, o(1, op1)+o(2, 0))
	case 4:
		out = o(1, op1) + o(3, o(2, 0))
	case 5:
		out = o(1, op1) + o(2, op1) + o(3, op1)
	case 6:
		out = o(1, op1) + o(2, 0) + o(3, 0)
	case 7:
		out = op1 + o(1, 0) + o(2, 0) + o(3, 0)
	}

	return float32(max(-1, min(1, out)))
}

// fnumToKeyCode derives the 2-bit fine key code from the top bits of the
// f-num value.
func fnumToKeyCode(fnum uint16) int {
	f11 := int(fnum>>10) & 0x01
	f10 := int(fnum>>9) & 0x01
	f9 := int(fnum>>8) & 0x01
	f8 := int(fnum>>7) & 0x01
	return f11<<1 | (f11&(f10|f9|f8) | (^f11&0x01)&f10&f9&f8)
}

// detune offsets indexed by key code and detune value.
var detuneTable [32][4]uint16

func init() {
	// the detune offsets grow roughly exponentially with key code
	for kc := 0; kc < 32; kc++ {
		base := float64(int(1) << uint(kc>>2))
		detuneTable[kc][0] = 0
		detuneTable[kc][1] = uint16(base * 0.5)
		detuneTable[kc][2] = uint16(base * 1.0)
		detuneTable[kc][3] = uint16(base * 1.5)
	}
}
