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
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/test"
)

// writeM7 performs the prev-byte write pair for a mode 7 register.
func writeM7(p *PPU, reg int, v uint16) {
	p.WriteRegister(reg, uint8(v))
	p.WriteRegister(reg, uint8(v>>8))
}

func TestMode7CentreClamp(t *testing.T) {
	p := NewPPU(false)

	// mode 7
	p.WriteRegister(0x05, 0x07)

	// identity matrix (1.0 in 8.8 fixed point)
	writeM7(p, 0x1b, 0x0100) // A
	writeM7(p, 0x1c, 0x0000) // B
	writeM7(p, 0x1d, 0x0000) // C
	writeM7(p, 0x1e, 0x0100) // D

	// centre X at -1025: beyond the signed 10 bit range of the centre
	// subtraction, so the hardware clamps to -1024
	x := int16(-1025)
	writeM7(p, 0x1f, uint16(x)&0x1fff) // M7X
	writeM7(p, 0x20, 0)                    // M7Y
	writeM7(p, 0x0d, 0)                    // M7HOFS
	writeM7(p, 0x0e, 0)                    // M7VOFS

	clamped := NewPPU(false)
	clamped.WriteRegister(0x05, 0x07)
	writeM7(clamped, 0x1b, 0x0100)
	writeM7(clamped, 0x1c, 0x0000)
	writeM7(clamped, 0x1d, 0x0000)
	writeM7(clamped, 0x1e, 0x0100)
	xClamped := int16(-1024)
	writeM7(clamped, 0x1f, uint16(xClamped)&0x1fff)
	writeM7(clamped, 0x20, 0)
	writeM7(clamped, 0x0d, 0)
	writeM7(clamped, 0x0e, 0)

	// tag the mode 7 tilemap so pixel lookups differ with position
	for i := 0; i < 0x4000; i++ {
		p.vram[i*2|1] = uint8(i)
		clamped.vram[i*2|1] = uint8(i)
		p.vram[i*2] = uint8(i >> 3)
		clamped.vram[i*2] = uint8(i >> 3)
	}

	// -1025 renders identically to -1024: the clamp is to signed 10
	// bits, not 11
	for _, xy := range [][2]int{{0, 0}, {100, 50}, {255, 200}} {
		test.ExpectEquality(t,
			p.Mode7Pixel(xy[0], xy[1]),
			clamped.Mode7Pixel(xy[0], xy[1]))
	}
}

func TestVTIMERetrigger(t *testing.T) {
	p := NewPPU(false)

	var irqs int
	p.Plumb(func() {}, func() { irqs++ }, func(_ *display.Frame) {})

	// run to line 100
	p.Step(100 * ppuDotsPerLine)
	test.ExpectEquality(t, p.Line(), 100)

	// setting VTIME to the current line fires immediately
	p.SetVTIME(100, true)
	test.ExpectEquality(t, irqs, 1)

	// repeating the same setting while at VTIME does not fire again
	p.SetVTIME(100, true)
	test.ExpectEquality(t, irqs, 1) // same value: no change, no refire

	// a later line fires when the counter reaches it
	p.SetVTIME(102, true)
	test.ExpectEquality(t, irqs, 1)
	p.Step(2 * ppuDotsPerLine)
	test.ExpectEquality(t, irqs, 2)
}

func TestBRRDecode(t *testing.T) {
	ring := mix.NewRing(4096)
	d := NewDSP(ring, 672)

	// source directory at page 1: source 0 starts at $0200
	d.WriteRegister(0x5d, 0x01)
	d.ram[0x100] = 0x00
	d.ram[0x101] = 0x02

	// one BRR block at $0200: shift 12, filter 0, end+loop flags, with
	// alternating +1/-1 nibbles
	d.ram[0x200] = 12<<4 | 0x03
	for i := 0; i < 8; i++ {
		d.ram[0x201+i] = 0x1f
	}
	// loop address: same block
	d.ram[0x102] = 0x00
	d.ram[0x103] = 0x02

	// voice 0: full volume, pitch 0x1000 (1.0)
	d.WriteRegister(0x00, 0x7f)
	d.WriteRegister(0x01, 0x7f)
	d.WriteRegister(0x02, 0x00)
	d.WriteRegister(0x03, 0x10)
	d.WriteRegister(0x0c, 0x7f) // MVOL L
	d.WriteRegister(0x1c, 0x7f) // MVOL R

	// key on voice 0
	d.WriteRegister(0x4c, 0x01)
	test.ExpectSuccess(t, d.Keyed(0))

	// run some samples: the voice produces non-zero output
	d.Step(672 * 256)
	test.ExpectEquality(t, ring.Len(), 256)

	var heard bool
	for {
		f, ok := ring.Pop()
		if !ok {
			break
		}
		if f.L != 0 {
			heard = true
		}
	}
	test.ExpectSuccess(t, heard)

	// the end flag latched when the block wrapped
	test.ExpectEquality(t, d.ReadRegister(0x7c)&0x01, uint8(0x01))
}
