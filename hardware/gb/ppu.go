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
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/display"
)

// PPU geometry and timing, in 4MHz dots.
const (
	ScreenWidth  = 160
	ScreenHeight = 144

	dotsPerLine  = 456
	totalLines   = 154
	vblankLine   = 144

	// mode boundaries within a line
	mode2Dots = 80
	mode3Dots = 172
)

// STAT interrupt sources.
const (
	statHBlank = 0x08
	statVBlank = 0x10
	statOAM    = 0x20
	statLYC    = 0x40
)

// PPU is the Game Boy picture processor.
type PPU struct {
	cgb bool

	vram [0x4000]uint8 // two banks on CGB
	oam  [0xa0]uint8

	vramBank int

	// registers
	lcdc uint8
	stat uint8
	scy  uint8
	scx  uint8
	lyc  uint8
	bgp  uint8
	obp0 uint8
	obp1 uint8
	wy   uint8
	wx   uint8

	// CGB palette RAM
	bgPal  [0x40]uint8
	obPal  [0x40]uint8
	bgPalIdx uint8
	obPalIdx uint8

	// position
	dot  int
	line int
	mode int

	// the window's internal line counter
	windowLine int

	// interrupt lines
	vblankIRQ func()
	statIRQ   func()

	// count of STAT mode 2 interrupts this frame; the quirk under test
	// is that line 153's early LY=0 gives 145 of them per frame, not 144
	mode2Count int

	present func(*display.Frame)
	fb      *display.Frame
}

// NewPPU is the preferred method of initialisation for the GB PPU type.
func NewPPU(cgb bool) *PPU {
	p := &PPU{cgb: cgb}
	p.fb = display.NewFrame(ScreenWidth, ScreenHeight, 1.0)
	p.vblankIRQ = func() {}
	p.statIRQ = func() {}
	p.present = func(_ *display.Frame) {}
	p.lcdc = 0x91
	return p
}

// Plumb attaches the interrupt lines and the frame sink.
func (p *PPU) Plumb(vblank func(), stat func(), present func(*display.Frame)) {
	p.vblankIRQ = vblank
	p.statIRQ = stat
	p.present = present
}

// ReadRegister services reads of the $FF40-$FF4B (and CGB palette)
// registers. The reg argument is the low byte of the address.
func (p *PPU) ReadRegister(reg uint8) uint8 {
	switch reg {
	case 0x40:
		return p.lcdc
	case 0x41:
		return p.stat&0xf8 | uint8(p.mode) | p.lycBit()
	case 0x42:
		return p.scy
	case 0x43:
		return p.scx
	case 0x44:
		return uint8(p.Line())
	case 0x45:
		return p.lyc
	case 0x47:
		return p.bgp
	case 0x48:
		return p.obp0
	case 0x49:
		return p.obp1
	case 0x4a:
		return p.wy
	case 0x4b:
		return p.wx
	case 0x4f:
		return uint8(p.vramBank) | 0xfe
	case 0x69:
		return p.bgPal[p.bgPalIdx&0x3f]
	case 0x6b:
		return p.obPal[p.obPalIdx&0x3f]
	}
	return 0xff
}

// WriteRegister services writes to the PPU registers.
func (p *PPU) WriteRegister(reg uint8, data uint8) {
	switch reg {
	case 0x40:
		was := p.lcdc
		p.lcdc = data
		if was&0x80 == 0x80 && data&0x80 == 0 {
			// display off: counters reset
			p.line = 0
			p.dot = 0
			p.mode = 0
		}
	case 0x41:
		p.stat = data & 0x78
	case 0x42:
		p.scy = data
	case 0x43:
		p.scx = data
	case 0x45:
		p.lyc = data
		p.checkLYC()
	case 0x47:
		p.bgp = data
	case 0x48:
		p.obp0 = data
	case 0x49:
		p.obp1 = data
	case 0x4a:
		p.wy = data
	case 0x4b:
		p.wx = data
	case 0x4f:
		if p.cgb {
			p.vramBank = int(data & 0x01)
		}
	case 0x68:
		p.bgPalIdx = data
	case 0x69:
		p.bgPal[p.bgPalIdx&0x3f] = data
		if p.bgPalIdx&0x80 == 0x80 {
			p.bgPalIdx = p.bgPalIdx&0x80 | (p.bgPalIdx+1)&0x3f
		}
	case 0x6a:
		p.obPalIdx = data
	case 0x6b:
		p.obPal[p.obPalIdx&0x3f] = data
		if p.obPalIdx&0x80 == 0x80 {
			p.obPalIdx = p.obPalIdx&0x80 | (p.obPalIdx+1)&0x3f
		}
	}
}

// VRAM and OAM access from the bus.
func (p *PPU) ReadVRAM(address uint16) uint8 {
	return p.vram[p.vramBank<<13|int(address&0x1fff)]
}

func (p *PPU) WriteVRAM(address uint16, data uint8) {
	p.vram[p.vramBank<<13|int(address&0x1fff)] = data
}

func (p *PPU) ReadOAM(address uint16) uint8 {
	return p.oam[address%0xa0]
}

func (p *PPU) WriteOAM(address uint16, data uint8) {
	p.oam[address%0xa0] = data
}

// lycBit returns the LY=LYC coincidence bit.
func (p *PPU) lycBit() uint8 {
	if uint8(p.Line()) == p.lyc {
		return 0x04
	}
	return 0
}

// checkLYC raises the STAT interrupt on an LY=LYC coincidence.
func (p *PPU) checkLYC() {
	if p.stat&statLYC != 0 && uint8(p.Line()) == p.lyc {
		p.statIRQ()
	}
}

// Step advances the PPU by the given number of dots.
func (p *PPU) Step(dots int) {
	if p.lcdc&0x80 == 0 {
		return
	}

	for i := 0; i < dots; i++ {
		p.tickDot()
	}
}

func (p *PPU) tickDot() {
	p.dot++

	if p.line < vblankLine {
		switch {
		case p.dot == 1 && p.line == 0 && p.mode != 2:
			p.enterMode(2)
		case p.dot == mode2Dots:
			p.enterMode(3)
		case p.dot == mode2Dots+mode3Dots:
			p.renderLine(p.line)
			p.enterMode(0)
		}
	}

	if p.dot < dotsPerLine {
		return
	}
	p.dot = 0
	p.line++

	switch {
	case p.line == vblankLine:
		p.enterMode(1)
		p.vblankIRQ()
		p.present(p.fb)
	case p.line == totalLines-1:
		// line 153 reports LY=0 almost immediately and the OAM STAT
		// source fires here as well as at the true start of line 0,
		// giving 145 mode 2 interrupts per frame rather than 144
		p.mode2Count++
		if p.stat&statOAM != 0 {
			p.statIRQ()
		}
	case p.line >= totalLines:
		p.line = 0
		p.windowLine = 0
		p.enterMode(2)
	case p.line < vblankLine:
		p.enterMode(2)
	}

	p.checkLYC()
}

// enterMode switches the PPU mode and raises any enabled STAT source.
func (p *PPU) enterMode(mode int) {
	p.mode = mode

	switch mode {
	case 0:
		if p.stat&statHBlank != 0 {
			p.statIRQ()
		}
	case 1:
		if p.stat&statVBlank != 0 {
			p.statIRQ()
		}
	case 2:
		p.mode2Count++
		if p.stat&statOAM != 0 {
			p.statIRQ()
		}
	}
}

// Mode2Count returns the number of mode 2 entries since power on.
func (p *PPU) Mode2Count() int {
	return p.mode2Count
}

// Mode returns the current PPU mode.
func (p *PPU) Mode() int {
	return p.mode
}

// Line returns the current LY value. The last line of the vertical
// blank reports zero.
func (p *PPU) Line() int {
	if p.line == totalLines-1 {
		return 0
	}
	return p.line
}

// dmg palette: white through black.
var dmgShades = [4][3]uint8{
	{224, 248, 208}, {136, 192, 112}, {52, 104, 86}, {8, 24, 32},
}

// renderLine draws one scanline.
func (p *PPU) renderLine(line int) {
	var bgIndex [ScreenWidth]uint8

	// background and window
	if p.lcdc&0x01 == 0x01 || p.cgb {
		for x := 0; x < ScreenWidth; x++ {
			var tx, ty int
			var mapBase int

			inWindow := p.lcdc&0x20 == 0x20 && line >= int(p.wy) && x >= int(p.wx)-7
			if inWindow {
				mapBase = 0x1800
				if p.lcdc&0x40 == 0x40 {
					mapBase = 0x1c00
				}
				tx = x - (int(p.wx) - 7)
				ty = p.windowLine
			} else {
				mapBase = 0x1800
				if p.lcdc&0x08 == 0x08 {
					mapBase = 0x1c00
				}
				tx = (x + int(p.scx)) & 0xff
				ty = (line + int(p.scy)) & 0xff
			}

			tile := int(p.vram[mapBase+(ty>>3)*32+tx>>3])
			if p.lcdc&0x10 == 0 {
				// signed tile indexing from $9000
				tile = 0x100 + int(int8(tile))
			}

			addr := tile*16 + (ty&0x07)*2
			bit := uint8(0x80 >> uint(tx&0x07))

			var c uint8
			if p.vram[addr]&bit != 0 {
				c |= 0x01
			}
			if p.vram[addr+1]&bit != 0 {
				c |= 0x02
			}

			bgIndex[x] = c
			p.setPixel(x, line, p.bgp>>uint(c*2)&0x03)
		}

		if p.lcdc&0x20 == 0x20 && line >= int(p.wy) && int(p.wx) <= 166 {
			p.windowLine++
		}
	} else {
		for x := 0; x < ScreenWidth; x++ {
			p.setPixel(x, line, 0)
		}
	}

	// sprites
	if p.lcdc&0x02 == 0 {
		return
	}

	height := 8
	if p.lcdc&0x04 == 0x04 {
		height = 16
	}

	count := 0
	for i := 0; i < 40 && count < 10; i++ {
		sy := int(p.oam[i*4]) - 16
		sx := int(p.oam[i*4+1]) - 8
		tile := int(p.oam[i*4+2])
		attr := p.oam[i*4+3]

		if line < sy || line >= sy+height {
			continue
		}
		count++

		if height == 16 {
			tile &^= 0x01
		}

		row := line - sy
		if attr&0x40 != 0 {
			row = height - 1 - row
		}

		addr := tile*16 + row*2

		pal := p.obp0
		if attr&0x10 != 0 {
			pal = p.obp1
		}

		for col := 0; col < 8; col++ {
			x := sx + col
			if x < 0 || x >= ScreenWidth {
				continue
			}

			bit := uint8(0x80 >> uint(col))
			if attr&0x20 != 0 {
				bit = 0x01 << uint(col)
			}

			var c uint8
			if p.vram[addr]&bit != 0 {
				c |= 0x01
			}
			if p.vram[addr+1]&bit != 0 {
				c |= 0x02
			}
			if c == 0 {
				continue
			}

			// OBJ-to-BG priority: behind non-zero background
			if attr&0x80 != 0 && bgIndex[x] != 0 {
				continue
			}

			p.setPixel(x, line, pal>>uint(c*2)&0x03)
		}
	}
}

// setPixel writes a DMG shade to the frame buffer.
func (p *PPU) setPixel(x int, y int, shade uint8) {
	rgb := dmgShades[shade&0x03]
	p.fb.SetPixel(x, y, rgb[0], rgb[1], rgb[2])
}

// Snapshot serialises the PPU's memories and registers.
func (p *PPU) Snapshot() []byte {
	out := make([]byte, 0, len(p.vram)+len(p.oam)+len(p.bgPal)+len(p.obPal)+11)
	out = append(out, p.vram[:]...)
	out = append(out, p.oam[:]...)
	out = append(out, p.bgPal[:]...)
	out = append(out, p.obPal[:]...)
	out = append(out, p.lcdc, p.stat, p.scy, p.scx, p.lyc, p.bgp, p.obp0, p.obp1, p.wy, p.wx)
	out = append(out, byte(p.vramBank))
	return out
}

// Restore applies a snapshot produced by Snapshot().
func (p *PPU) Restore(state []byte) error {
	want := len(p.vram) + len(p.oam) + len(p.bgPal) + len(p.obPal) + 11
	if len(state) != want {
		return fmt.Errorf("ppu: bad snapshot length")
	}

	copy(p.vram[:], state)
	state = state[len(p.vram):]
	copy(p.oam[:], state)
	state = state[len(p.oam):]
	copy(p.bgPal[:], state)
	state = state[len(p.bgPal):]
	copy(p.obPal[:], state)
	state = state[len(p.obPal):]

	p.lcdc = state[0]
	p.stat = state[1]
	p.scy = state[2]
	p.scx = state[3]
	p.lyc = state[4]
	p.bgp = state[5]
	p.obp0 = state[6]
	p.obp1 = state[7]
	p.wy = state[8]
	p.wx = state[9]
	p.vramBank = int(state[10])

	return nil
}
