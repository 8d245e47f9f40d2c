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

package nes

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/cartridge/mappers"
	"github.com/jetsetilly/gophergen/hardware/display"
)

// PPU geometry. NTSC machines hide the top and bottom eight lines of
// the 240 line frame behind overscan; both heights are available and the
// shell picks per region.
const (
	ppuDotsPerLine  = 341
	ppuLinesNTSC    = 262
	ppuLinesPAL     = 312
	ppuVBlankLine   = 241
	ppuPreRender    = 261
	ppuActiveWidth  = 256
	ppuActiveHeight = 240
)

// PPU is the NES picture processing unit.
type PPU struct {
	mapper mappers.NESMapper

	nametables [0x800]uint8
	palette    [0x20]uint8
	oam        [0x100]uint8

	// registers
	ctrl    uint8
	mask    uint8
	oamAddr uint8

	// loopy scroll state
	v uint16
	t uint16
	x uint8
	w bool

	// the data port read buffer and the open bus latch. the latch holds
	// the last value written or read; it does not decay
	readBuffer uint8
	openBus    uint8

	// status
	statusVBlank   bool
	statusSprite0  bool
	statusOverflow bool

	// position
	dot   int
	line  int
	frame int
	odd   bool

	// nmi line and suppression bookkeeping
	nmi func()

	present func(*display.Frame)
	fb      *display.Frame

	pal bool
}

// NewPPU is the preferred method of initialisation for the PPU type.
func NewPPU(mapper mappers.NESMapper, pal bool) *PPU {
	p := &PPU{mapper: mapper, pal: pal}
	p.fb = display.NewFrame(ppuActiveWidth, ppuActiveHeight, 8.0/7.0)
	p.nmi = func() {}
	p.present = func(_ *display.Frame) {}
	return p
}

// Plumb attaches the NMI line and the frame sink.
func (p *PPU) Plumb(nmi func(), present func(*display.Frame)) {
	p.nmi = nmi
	p.present = present
}

// renderingEnabled reports whether background or sprite rendering is on.
func (p *PPU) renderingEnabled() bool {
	return p.mask&0x18 != 0
}

// ReadRegister services CPU reads of $2000-$2007. Write only registers
// return the open bus latch.
func (p *PPU) ReadRegister(reg int) uint8 {
	switch reg & 0x07 {
	case 2:
		var s uint8
		if p.statusVBlank {
			s |= 0x80
		}
		if p.statusSprite0 {
			s |= 0x40
		}
		if p.statusOverflow {
			s |= 0x20
		}
		// the low five bits are open bus
		s |= p.openBus & 0x1f

		p.statusVBlank = false
		p.w = false

		p.openBus = s
		return s
	case 4:
		v := p.oam[p.oamAddr]
		p.openBus = v
		return v
	case 7:
		v := p.readBuffer
		p.readBuffer = p.busRead(p.v & 0x3fff)
		if p.v&0x3fff >= 0x3f00 {
			// palette reads bypass the buffer; the buffer still loads
			// with the underlying nametable byte
			v = p.palette[paletteIndex(p.v)]
			p.readBuffer = p.busRead(p.v & 0x2fff)
		}
		p.incrementV()
		p.openBus = v
		return v
	}
	return p.openBus
}

// WriteRegister services CPU writes to $2000-$2007.
func (p *PPU) WriteRegister(reg int, data uint8) {
	p.openBus = data

	switch reg & 0x07 {
	case 0:
		wasNMI := p.ctrl&0x80 == 0x80
		p.ctrl = data
		p.t = p.t&0xf3ff | uint16(data&0x03)<<10

		// enabling NMI during vertical blank with the flag still set
		// raises NMI immediately
		if !wasNMI && data&0x80 == 0x80 && p.statusVBlank {
			p.nmi()
		}
	case 1:
		p.mask = data
	case 3:
		p.oamAddr = data
	case 4:
		p.oam[p.oamAddr] = data
		p.oamAddr++
	case 5:
		if !p.w {
			p.t = p.t&0xffe0 | uint16(data)>>3
			p.x = data & 0x07
		} else {
			p.t = p.t&0x8c1f | uint16(data&0xf8)<<2 | uint16(data&0x07)<<12
		}
		p.w = !p.w
	case 6:
		if !p.w {
			p.t = p.t&0x00ff | uint16(data&0x3f)<<8
		} else {
			p.t = p.t&0xff00 | uint16(data)
			p.v = p.t
		}
		p.w = !p.w
	case 7:
		p.busWrite(p.v&0x3fff, data)
		p.incrementV()
	}
}

// incrementV advances the VRAM address by 1 or 32 per the control
// register.
func (p *PPU) incrementV() {
	if p.ctrl&0x04 == 0x04 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7fff
}

// paletteIndex folds a palette address, handling the backdrop mirrors.
func paletteIndex(addr uint16) int {
	i := int(addr) & 0x1f
	if i >= 0x10 && i&0x03 == 0 {
		i &= 0x0f
	}
	return i
}

// mirror folds a nametable address per the cartridge's mirroring.
func (p *PPU) mirror(addr uint16) int {
	addr &= 0x0fff
	table := int(addr >> 10)
	offset := int(addr & 0x3ff)

	switch p.mapper.Mirroring() {
	case mappers.MirrorHorizontal:
		return (table>>1)<<10 | offset
	case mappers.MirrorVertical:
		return (table&0x01)<<10 | offset
	case mappers.MirrorSingleLow:
		return offset
	case mappers.MirrorSingleHigh:
		return 0x400 | offset
	default:
		// four screen: the extra RAM lives on the cartridge; fold into
		// the two tables here
		return (table&0x01)<<10 | offset
	}
}

// busRead reads the PPU's own address space.
func (p *PPU) busRead(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return p.mapper.ReadCHR(addr)
	case addr < 0x3f00:
		return p.nametables[p.mirror(addr)]
	default:
		return p.palette[paletteIndex(addr)]
	}
}

// busWrite writes the PPU's own address space.
func (p *PPU) busWrite(addr uint16, data uint8) {
	switch {
	case addr < 0x2000:
		p.mapper.WriteCHR(addr, data)
	case addr < 0x3f00:
		p.nametables[p.mirror(addr)] = data
	default:
		p.palette[paletteIndex(addr)] = data & 0x3f
	}
}

// OAMDMA writes one byte of an OAM DMA transfer.
func (p *PPU) OAMDMA(data uint8) {
	p.oam[p.oamAddr] = data
	p.oamAddr++
}

// Step advances the PPU by the given number of PPU dots.
func (p *PPU) Step(dots int) {
	for i := 0; i < dots; i++ {
		p.tickDot()
	}
}

func (p *PPU) lines() int {
	if p.pal {
		return ppuLinesPAL
	}
	return ppuLinesNTSC
}

// tickDot advances one PPU dot.
func (p *PPU) tickDot() {
	// sprite 0 hit detection happens during the render; see renderLine

	p.dot++
	if p.dot < ppuDotsPerLine {
		return
	}
	p.dot = 0

	// whole line behaviours happen at the wrap
	if p.line < ppuActiveHeight && p.renderingEnabled() {
		p.renderLine(p.line)

		// OAMADDR is reset to zero on every rendered line
		p.oamAddr = 0

		// the MMC3 scanline counter clocks on the A12 rise of each
		// rendered line
		p.mapper.ScanlineTick()
	}

	p.line++

	switch {
	case p.line == ppuVBlankLine:
		p.statusVBlank = true
		if p.ctrl&0x80 == 0x80 {
			p.nmi()
		}
		p.present(p.fb)
	case p.line >= p.lines():
		p.line = 0
		p.frame++
		p.odd = !p.odd
		p.statusVBlank = false
		p.statusSprite0 = false
		p.statusOverflow = false

		// odd frames skip one dot of the pre-render line when rendering
		// is on
		if p.odd && !p.pal && p.renderingEnabled() {
			p.dot = 1
		}
	}
}

// nesPalette is the 2C02 master palette, RGB triplets.
var nesPalette = [64][3]uint8{
	{84, 84, 84}, {0, 30, 116}, {8, 16, 144}, {48, 0, 136}, {68, 0, 100}, {92, 0, 48}, {84, 4, 0}, {60, 24, 0},
	{32, 42, 0}, {8, 58, 0}, {0, 64, 0}, {0, 60, 0}, {0, 50, 60}, {0, 0, 0}, {0, 0, 0}, {0, 0, 0},
	{152, 150, 152}, {8, 76, 196}, {48, 50, 236}, {92, 30, 228}, {136, 20, 176}, {160, 20, 100}, {152, 34, 32}, {120, 60, 0},
	{84, 90, 0}, {40, 114, 0}, {8, 124, 0}, {0, 118, 40}, {0, 102, 120}, {0, 0, 0}, {0, 0, 0}, {0, 0, 0},
	{236, 238, 236}, {76, 154, 236}, {120, 124, 236}, {176, 98, 236}, {228, 84, 236}, {236, 88, 180}, {236, 106, 100}, {212, 136, 32},
	{160, 170, 0}, {116, 196, 0}, {76, 208, 32}, {56, 204, 108}, {56, 180, 204}, {60, 60, 60}, {0, 0, 0}, {0, 0, 0},
	{236, 238, 236}, {168, 204, 236}, {188, 188, 236}, {212, 178, 236}, {236, 174, 236}, {236, 174, 212}, {236, 180, 176}, {228, 196, 144},
	{204, 210, 120}, {180, 222, 120}, {168, 226, 144}, {152, 226, 180}, {160, 214, 228}, {160, 162, 160}, {0, 0, 0}, {0, 0, 0},
}

// renderLine draws one scanline using the loopy registers as they stand
// at the start of the line.
func (p *PPU) renderLine(line int) {
	// coarse scroll for this line
	fineY := int(p.t>>12)&0x07 + line
	coarseYBase := int(p.t>>5) & 0x1f
	y := coarseYBase*8 + fineY

	scrollX := int(p.t&0x1f)*8 + int(p.x)
	baseNT := int(p.t>>10) & 0x03

	showBG := p.mask&0x08 == 0x08
	showSP := p.mask&0x10 == 0x10
	showLeftBG := p.mask&0x02 == 0x02
	showLeftSP := p.mask&0x04 == 0x04

	var bgOpaque [ppuActiveWidth]bool

	backdrop := p.palette[0]

	for x := 0; x < ppuActiveWidth; x++ {
		var color uint8 = backdrop

		if showBG && (x >= 8 || showLeftBG) {
			px := scrollX + x
			nt := baseNT&0x01 ^ (px>>8)&0x01 | baseNT&0x02
			if y >= 240 {
				nt ^= 0x02
			}

			tx := px & 0xff >> 3
			ty := y % 240 >> 3

			ntAddr := 0x2000 | nt<<10 | ty<<5 | tx
			tile := int(p.nametables[p.mirror(uint16(ntAddr))])

			patBase := 0
			if p.ctrl&0x10 == 0x10 {
				patBase = 0x1000
			}

			row := y % 8
			lo := p.mapper.ReadCHR(uint16(patBase + tile*16 + row))
			hi := p.mapper.ReadCHR(uint16(patBase + tile*16 + row + 8))

			bit := uint8(0x80 >> uint(px&0x07))
			var c uint8
			if lo&bit != 0 {
				c |= 0x01
			}
			if hi&bit != 0 {
				c |= 0x02
			}

			if c != 0 {
				atAddr := 0x23c0 | nt<<10 | (ty>>2)<<3 | tx>>2
				at := p.nametables[p.mirror(uint16(atAddr))]
				shift := uint((ty&0x02)<<1 | tx&0x02)
				pal := at >> shift & 0x03

				color = p.palette[int(pal)<<2|int(c)]
				bgOpaque[x] = true
			}
		}

		p.setPixel(x, line, color)
	}

	if !showSP {
		return
	}

	// sprites, 8 per line, front to back so the first sprite on the
	// line wins
	height := 8
	if p.ctrl&0x20 == 0x20 {
		height = 16
	}

	count := 0
	var drawn [ppuActiveWidth]bool
	for i := 0; i < 64; i++ {
		sy := int(p.oam[i*4]) + 1
		if line < sy || line >= sy+height {
			continue
		}

		count++
		if count > 8 {
			p.statusOverflow = true
			break
		}

		tile := int(p.oam[i*4+1])
		attr := p.oam[i*4+2]
		sx := int(p.oam[i*4+3])

		behind := attr&0x20 == 0x20
		hflip := attr&0x40 == 0x40
		vflip := attr&0x80 == 0x80

		row := line - sy
		if vflip {
			row = height - 1 - row
		}

		patBase := 0
		if height == 16 {
			patBase = int(tile&0x01) << 12
			tile &^= 0x01
			if row >= 8 {
				tile++
				row -= 8
			}
		} else if p.ctrl&0x08 == 0x08 {
			patBase = 0x1000
		}

		lo := p.mapper.ReadCHR(uint16(patBase + tile*16 + row))
		hi := p.mapper.ReadCHR(uint16(patBase + tile*16 + row + 8))

		for col := 0; col < 8; col++ {
			x := sx + col
			if x >= ppuActiveWidth || (x < 8 && !showLeftSP) {
				continue
			}

			bit := uint8(0x80 >> uint(col))
			if hflip {
				bit = uint8(0x01 << uint(col))
			}

			var c uint8
			if lo&bit != 0 {
				c |= 0x01
			}
			if hi&bit != 0 {
				c |= 0x02
			}
			if c == 0 || drawn[x] {
				continue
			}
			drawn[x] = true

			// sprite 0 hit: an opaque sprite 0 pixel over an opaque
			// background pixel, not in column 255
			if i == 0 && bgOpaque[x] && x < 255 {
				p.statusSprite0 = true
			}

			if !behind || !bgOpaque[x] {
				color := p.palette[0x10|int(attr&0x03)<<2|int(c)]
				p.setPixel(x, line, color)
			}
		}
	}
}

// setPixel writes one pixel through the master palette, honouring the
// emphasis bits and greyscale mask.
func (p *PPU) setPixel(x int, y int, color uint8) {
	if p.mask&0x01 == 0x01 {
		color &= 0x30
	}

	rgb := nesPalette[color&0x3f]
	r, g, b := rgb[0], rgb[1], rgb[2]

	// emphasis bits attenuate the other channels
	if p.mask&0x20 != 0 {
		g = g * 3 / 4
		b = b * 3 / 4
	}
	if p.mask&0x40 != 0 {
		r = r * 3 / 4
		b = b * 3 / 4
	}
	if p.mask&0x80 != 0 {
		r = r * 3 / 4
		g = g * 3 / 4
	}

	p.fb.SetPixel(x, y, r, g, b)
}

// Line returns the current scanline.
func (p *PPU) Line() int {
	return p.line
}

// InVBlank reports the vertical blank flag.
func (p *PPU) InVBlank() bool {
	return p.statusVBlank
}

// Snapshot serialises the PPU's memories and registers.
func (p *PPU) Snapshot() []byte {
	out := make([]byte, 0, len(p.nametables)+len(p.palette)+len(p.oam)+12)
	out = append(out, p.nametables[:]...)
	out = append(out, p.palette[:]...)
	out = append(out, p.oam[:]...)
	out = append(out, p.ctrl, p.mask, p.oamAddr)
	out = append(out, byte(p.v), byte(p.v>>8), byte(p.t), byte(p.t>>8), p.x)
	if p.w {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, p.readBuffer, p.openBus)
	return out
}

// Restore applies a snapshot produced by Snapshot().
func (p *PPU) Restore(state []byte) error {
	want := len(p.nametables) + len(p.palette) + len(p.oam) + 11
	if len(state) != want {
		return fmt.Errorf("ppu: bad snapshot length")
	}

	copy(p.nametables[:], state)
	state = state[len(p.nametables):]
	copy(p.palette[:], state)
	state = state[len(p.palette):]
	copy(p.oam[:], state)
	state = state[len(p.oam):]

	p.ctrl = state[0]
	p.mask = state[1]
	p.oamAddr = state[2]
	p.v = uint16(state[3]) | uint16(state[4])<<8
	p.t = uint16(state[5]) | uint16(state[6])<<8
	p.x = state[7]
	p.w = state[8] != 0
	p.readBuffer = state[9]
	p.openBus = state[10]

	return nil
}
