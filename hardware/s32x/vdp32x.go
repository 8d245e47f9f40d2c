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

// Package s32x emulates the 32X side of a Genesis with the adapter
// attached: the frame buffer VDP and its compositor over the Genesis
// output, the PWM sound channels and the SH-2 bus adapters.
package s32x

import (
	"github.com/jetsetilly/gophergen/hardware/display"
)

// frame buffer geometry. two 128KB buffers, one displayed and one drawn.
const (
	FrameBufferSize = 0x20000
	PaletteSize     = 256
)

// display modes from the bitmap mode register.
const (
	ModeBlank = iota
	ModePacked
	ModeDirect
	ModeRunLength
)

// VDP is the 32X frame buffer video chip.
type VDP struct {
	// the two frame buffers. fbSelect names the buffer the SH-2s draw
	// into; the other is displayed
	fb       [2][FrameBufferSize]byte
	fbSelect int

	// palette of 256 15-bit colours; bit 15 is the through bit
	palette [PaletteSize]uint16

	mode     int
	priority bool // 32X pixels above Genesis pixels when set
	lineShift int

	// a pending buffer flip waits for vertical blank
	flipPending bool

	// auto fill state
	fillLength int
	fillAddr   uint16
	fillData   uint16
	fillBusy   int

	inVBlank bool
}

// NewVDP is the preferred method of initialisation for the 32X VDP type.
func NewVDP() *VDP {
	return &VDP{}
}

// WriteRegister services the bitmap mode and control registers.
func (v *VDP) WriteRegister(reg int, data uint16) {
	switch reg {
	case 0x00:
		// bitmap mode: bits 0-1 select the mode, bit 7 priority
		switch data & 0x03 {
		case 0x00:
			v.mode = ModeBlank
		case 0x01:
			v.mode = ModePacked
		case 0x02:
			v.mode = ModeDirect
		case 0x03:
			v.mode = ModeRunLength
		}
		v.priority = data&0x80 == 0x80
	case 0x02:
		v.lineShift = int(data & 0x01)
	case 0x04:
		v.fillLength = int(data&0xff) + 1
	case 0x06:
		v.fillAddr = data
	case 0x08:
		// writing the fill data register starts the fill. the words are
		// written at once; the busy countdown that follows shows in the
		// status register and does not hold off frame buffer access
		v.fillData = data
		v.runFill()
	case 0x0a:
		// frame buffer control: bit 0 requests a flip, applied at
		// vertical blank
		want := int(data & 0x01)
		if want != v.fbSelect {
			if v.inVBlank {
				v.fbSelect = want
			} else {
				v.flipPending = true
			}
		}
	}
}

// ReadRegister services reads of the control registers.
func (v *VDP) ReadRegister(reg int) uint16 {
	switch reg {
	case 0x0a:
		s := uint16(v.fbSelect)
		if v.fillBusy > 0 {
			s |= 0x0002
		}
		if v.inVBlank {
			s |= 0x8000
		}
		return s
	}
	return 0
}

// runFill performs the auto fill: length words written to successive
// addresses within a 256 word (512 byte) page.
func (v *VDP) runFill() {
	fb := &v.fb[v.fbSelect]
	addr := uint32(v.fillAddr) << 1
	for i := 0; i < v.fillLength; i++ {
		fb[addr&0x1fffe] = uint8(v.fillData >> 8)
		fb[addr&0x1fffe|1] = uint8(v.fillData)
		// the address increments within the low byte only
		addr = addr&^0x1ff | (addr+2)&0x1ff
	}

	// the fill takes roughly one access slot per word; the status
	// register reports busy until the countdown drains
	v.fillBusy = v.fillLength
}

// StepFill drains the auto fill busy counter. Called per scanline by the
// host system.
func (v *VDP) StepFill(slots int) {
	v.fillBusy = max(v.fillBusy-slots, 0)
}

// FillBusy reports whether the auto fill busy countdown is still running.
func (v *VDP) FillBusy() bool {
	return v.fillBusy > 0
}

// WriteFB writes a word to the draw frame buffer.
func (v *VDP) WriteFB(address uint32, data uint16) {
	fb := &v.fb[v.fbSelect]
	fb[address&0x1fffe] = uint8(data >> 8)
	fb[address&0x1fffe|1] = uint8(data)
}

// WriteFBByte writes a byte to the draw frame buffer. A zero byte write
// is dropped: the 32X frame buffer ignores zero byte writes so that
// software can overdraw without read-modify-write.
func (v *VDP) WriteFBByte(address uint32, data uint8) {
	if data == 0 {
		return
	}
	v.fb[v.fbSelect][address&0x1ffff] = data
}

// ReadFB reads a word from the draw frame buffer.
func (v *VDP) ReadFB(address uint32) uint16 {
	fb := &v.fb[v.fbSelect]
	return uint16(fb[address&0x1fffe])<<8 | uint16(fb[address&0x1fffe|1])
}

// WritePalette writes one CRAM entry.
func (v *VDP) WritePalette(index int, data uint16) {
	v.palette[index&0xff] = data
}

// ReadPalette reads one CRAM entry.
func (v *VDP) ReadPalette(index int) uint16 {
	return v.palette[index&0xff]
}

// SetVBlank tells the VDP the Genesis vertical blank state. Pending
// buffer flips apply on entry to the blank.
func (v *VDP) SetVBlank(in bool) {
	if in && !v.inVBlank && v.flipPending {
		v.fbSelect ^= 1
		v.flipPending = false
	}
	v.inVBlank = in
}

// decode15 converts a 15-bit BGR colour to RGB bytes.
func decode15(c uint16) (uint8, uint8, uint8) {
	r := uint8(c&0x1f) << 3
	g := uint8(c>>5&0x1f) << 3
	b := uint8(c>>10&0x1f) << 3
	return r, g, b
}

// RenderLine resolves one line of 32X output into the given RGB buffer.
// Pixels with the through bit produce opaque=false in the mask, meaning the
// Genesis pixel shows through.
//
// The displayed buffer is the one not selected for drawing.
func (v *VDP) RenderLine(line int, width int, rgb []byte, opaque []bool) {
	fb := &v.fb[v.fbSelect^1]

	// the line table at the front of the buffer gives the start word
	// address of each line
	lineAddr := uint32(fb[line*2&0x1fffe])<<8 | uint32(fb[line*2&0x1fffe|1])
	lineAddr <<= 1

	for i := range opaque {
		opaque[i] = false
	}

	switch v.mode {
	case ModeBlank:
		// nothing: all Genesis

	case ModePacked:
		// one palette index per byte
		for x := 0; x < width; x++ {
			p := fb[(lineAddr+uint32(x))&0x1ffff]
			c := v.palette[p]
			// the through bit of the palette entry punches to Genesis
			if c&0x8000 == 0x8000 && !v.priority {
				continue
			}
			r, g, b := decode15(c)
			rgb[x*3] = r
			rgb[x*3+1] = g
			rgb[x*3+2] = b
			opaque[x] = true
		}

	case ModeDirect:
		// one 15-bit colour per word
		for x := 0; x < width; x++ {
			a := (lineAddr + uint32(x*2)) & 0x1fffe
			c := uint16(fb[a])<<8 | uint16(fb[a|1])
			if c&0x8000 == 0x8000 && !v.priority {
				continue
			}
			r, g, b := decode15(c)
			rgb[x*3] = r
			rgb[x*3+1] = g
			rgb[x*3+2] = b
			opaque[x] = true
		}

	case ModeRunLength:
		// words of {count-1, palette index}
		x := 0
		a := lineAddr
		for x < width {
			w := uint16(fb[a&0x1fffe])<<8 | uint16(fb[a&0x1fffe|1])
			a += 2
			count := int(w>>8) + 1
			c := v.palette[uint8(w)]
			r, g, b := decode15(c)
			through := c&0x8000 == 0x8000 && !v.priority
			for i := 0; i < count && x < width; i++ {
				if !through {
					rgb[x*3] = r
					rgb[x*3+1] = g
					rgb[x*3+2] = b
					opaque[x] = true
				}
				x++
			}
		}
	}
}

// Compose overlays the 32X output on a Genesis frame. When the
// horizontal resolutions differ the output is widened to the least
// common width (1280 for Genesis H32 under 32X H40 material).
func (v *VDP) Compose(genesis *display.Frame, out *display.Frame) {
	width := genesis.Width
	const s32xWidth = 320

	outWidth := width
	if width != s32xWidth {
		// 256 and 320 meet at 1280
		outWidth = 1280
	}

	out.Resize(outWidth, genesis.Height)
	out.PixelAspectRatio = genesis.PixelAspectRatio * float32(width) / float32(outWidth)
	out.FrameNum = genesis.FrameNum

	rgb := make([]byte, s32xWidth*3)
	opaque := make([]bool, s32xWidth)

	genScale := outWidth / width
	s32xScale := outWidth / s32xWidth

	for y := 0; y < genesis.Height; y++ {
		v.RenderLine(y, s32xWidth, rgb, opaque)

		for x := 0; x < outWidth; x++ {
			sx := x / s32xScale
			gx := x / genScale

			if opaque[sx] {
				out.SetPixel(x, y, rgb[sx*3], rgb[sx*3+1], rgb[sx*3+2])
			} else {
				r, g, b := genesis.Pixel(gx, y)
				out.SetPixel(x, y, r, g, b)
			}
		}
	}
}
