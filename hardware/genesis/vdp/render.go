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

package vdp

// the colour ramp of the VDP's resistor DAC. 3-bit colour components are
// not linearly spaced
var colorRamp = [8]uint8{0, 52, 87, 116, 144, 172, 206, 255}

// pixel priority classes, lowest to highest. the window plane takes the
// place of plane A wherever it is visible
const (
	pixBackdrop = iota
	pixPlaneBLow
	pixPlaneALow
	pixSpriteLow
	pixPlaneBHigh
	pixPlaneAHigh
	pixSpriteHigh
)

// a resolved but undecoded pixel: a CRAM index plus the class it came from
type pix struct {
	color uint8
	class uint8
}

// planeSize decodes register 16 into plane dimensions in cells.
func (v *VDP) planeSize() (int, int) {
	size := func(bits uint8) int {
		switch bits & 0x03 {
		case 0x01:
			return 64
		case 0x03:
			return 128
		}
		return 32
	}
	return size(v.regs[16]), size(v.regs[16] >> 4)
}

// hscroll returns the horizontal scroll values for plane A and plane B on
// the given line, honouring the scroll mode in register 11.
func (v *VDP) hscroll(line int) (int, int) {
	base := v.applyHScrollBase

	var offset uint16
	switch v.regs[11] & 0x03 {
	case 0x00:
		offset = 0
	case 0x02:
		// per-cell: one entry per 8 lines
		offset = uint16(line&^0x07) << 2
	case 0x03:
		// per-line
		offset = uint16(line) << 2
	default:
		// mode 01 is prohibited; hardware ANDs the line counter giving a
		// repeating 8 line pattern
		offset = uint16(line&0x07) << 2
	}

	a := int(uint16(v.vram[base+offset])<<8|uint16(v.vram[base+offset+1])) & 0x3ff
	b := int(uint16(v.vram[base+offset+2])<<8|uint16(v.vram[base+offset+3])) & 0x3ff
	return a, b
}

// vscroll returns the vertical scroll value for the given plane (0 for A,
// 1 for B) and screen column.
func (v *VDP) vscroll(plane int, col int) int {
	if v.regs[11]&0x04 == 0x04 {
		// per-two-cell column scroll
		idx := (col>>1)<<1 | plane
		if idx >= VSRAMSize {
			idx = plane
		}
		return int(v.vsram[idx])
	}
	return int(v.vsram[plane])
}

// tileRow reads one row of a 4bpp tile and returns the 8 colour indices.
func (v *VDP) tileRow(tile int, row int, hflip bool, vflip bool, tileHeight int) [8]uint8 {
	if vflip {
		row = tileHeight - 1 - row
	}

	addr := tile*tileHeight*4 + row*4

	var out [8]uint8
	for i := 0; i < 4; i++ {
		b := v.vram[(addr+i)&0xffff]
		out[i*2] = b >> 4
		out[i*2+1] = b & 0x0f
	}

	if hflip {
		for i, j := 0, 7; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	return out
}

// planePixel resolves the pixel of a scroll plane at the given screen
// coordinate. plane is 0 for A, 1 for B. ok is false for a transparent
// pixel.
func (v *VDP) planePixel(plane int, x int, line int) (uint8, bool, bool) {
	planeW, planeH := v.planeSize()

	var base int
	if plane == 0 {
		base = int(v.regs[2]&0x38) << 10
	} else {
		base = int(v.regs[4]&0x07) << 13
	}

	hsA, hsB := v.hscroll(line)
	hs := hsA
	if plane == 1 {
		hs = hsB
	}

	tileHeight := 8
	y := line + v.vscroll(plane, x>>3)
	if v.interlaceMode() == 2 {
		tileHeight = 16
		y = line*2 + v.vscroll(plane, x>>3)
		if v.odd {
			y++
		}
	}

	px := (x - hs) & (planeW*8 - 1)
	py := y & (planeH*tileHeight - 1)

	cell := base + (py/tileHeight*planeW+px>>3)*2
	entry := uint16(v.vram[cell&0xffff])<<8 | uint16(v.vram[(cell+1)&0xffff])

	tile := int(entry & 0x07ff)
	hflip := entry&0x0800 == 0x0800
	vflip := entry&0x1000 == 0x1000
	palette := uint8(entry>>13) & 0x03
	priority := entry&0x8000 == 0x8000

	row := v.tileRow(tile, py%tileHeight, hflip, vflip, tileHeight)
	c := row[px&0x07]
	if c == 0 {
		return 0, false, priority
	}
	return palette<<4 | c, true, priority
}

// windowActive reports whether the window plane covers the given cell
// coordinate on the given line.
func (v *VDP) windowActive(cellX int, line int) bool {
	// vertical: register 18. bit 7 selects whether the window grows down
	// from the top or up from the bottom of the given cell line
	vpos := int(v.regs[18]&0x1f) * 8
	var vmatch bool
	if v.regs[18]&0x80 == 0x80 {
		vmatch = line >= vpos
	} else {
		vmatch = line < vpos
	}

	// horizontal: register 17, in two-cell units
	hpos := int(v.regs[17]&0x1f) * 2
	var hmatch bool
	if v.regs[17]&0x80 == 0x80 {
		hmatch = cellX >= hpos
	} else {
		hmatch = cellX < hpos
	}

	return vmatch || hmatch
}

// windowPixel resolves the pixel of the window plane at the given screen
// coordinate. The window is not scrollable.
func (v *VDP) windowPixel(x int, line int) (uint8, bool, bool) {
	var base int
	if v.h40() {
		base = int(v.regs[3]&0x3c) << 10
	} else {
		base = int(v.regs[3]&0x3e) << 10
	}

	// window nametable is 64 cells wide in H40, 32 in H32
	width := 32
	if v.h40() {
		width = 64
	}

	tileHeight := 8
	y := line
	if v.interlaceMode() == 2 {
		tileHeight = 16
		y = line * 2
		if v.odd {
			y++
		}
	}

	cell := base + (y/tileHeight*width+x>>3)*2
	entry := uint16(v.vram[cell&0xffff])<<8 | uint16(v.vram[(cell+1)&0xffff])

	tile := int(entry & 0x07ff)
	hflip := entry&0x0800 == 0x0800
	vflip := entry&0x1000 == 0x1000
	palette := uint8(entry>>13) & 0x03
	priority := entry&0x8000 == 0x8000

	row := v.tileRow(tile, y%tileHeight, hflip, vflip, tileHeight)
	c := row[x&0x07]
	if c == 0 {
		return 0, false, priority
	}
	return palette<<4 | c, true, priority
}

// decode converts a CRAM index to RGB.
func (v *VDP) decode(index uint8) (uint8, uint8, uint8) {
	c := v.cram[index&0x3f]
	r := colorRamp[(c>>1)&0x07]
	g := colorRamp[(c>>5)&0x07]
	b := colorRamp[(c>>9)&0x07]
	return r, g, b
}

// decodeColor converts a raw CRAM value to RGB. Used for CRAM dot
// artifacts, whose colour never lives in CRAM at render time.
func (v *VDP) decodeColor(c uint16) (uint8, uint8, uint8) {
	r := colorRamp[(c>>1)&0x07]
	g := colorRamp[(c>>5)&0x07]
	b := colorRamp[(c>>9)&0x07]
	return r, g, b
}

// ensureFrame matches the frame buffer dimensions to the current video
// mode before any pixel of the frame is written.
func (v *VDP) ensureFrame() {
	w := v.activeDots()
	h := v.activeLines()
	if v.interlaceMode() == 2 && v.Deinterlace {
		h *= 2
	}
	if v.fb.Width != w || v.fb.Height != h {
		v.fb.Resize(w, h)
	}
}

// renderLine draws one scanline into the frame buffer.
func (v *VDP) renderLine(line int) {
	v.ensureFrame()
	width := v.activeDots()
	backdrop := v.regs[7] & 0x3f

	rows := []int{line}
	if v.interlaceMode() == 2 && v.Deinterlace {
		rows = []int{line * 2, line*2 + 1}
	}

	if !v.displayEnabled() {
		for _, row := range rows {
			for x := 0; x < width; x++ {
				r, g, b := v.decode(backdrop)
				v.fb.SetPixel(x, row, r, g, b)
			}
		}
		return
	}

	sprites := v.spriteLine(line)

	for x := 0; x < width; x++ {
		// the backdrop colour is sampled at render time, when the line
		// ends: a mid-line register 7 write affects the whole line
		best := pix{color: backdrop, class: pixBackdrop}

		if c, ok, pri := v.planePixel(1, x, line); ok {
			if pri {
				best = pix{color: c, class: pixPlaneBHigh}
			} else {
				best = pix{color: c, class: pixPlaneBLow}
			}
		}

		// the window plane replaces plane A where it is active
		var aPix uint8
		var aOK, aPri bool
		if v.windowActive(x>>3, line) {
			aPix, aOK, aPri = v.windowPixel(x, line)
		} else {
			aPix, aOK, aPri = v.planePixel(0, x, line)
		}
		if aOK {
			class := uint8(pixPlaneALow)
			if aPri {
				class = pixPlaneAHigh
			}
			if class > best.class {
				best = pix{color: aPix, class: class}
			}
		}

		if s := sprites[x]; s.class != pixBackdrop {
			if s.class > best.class {
				best = s
			}
		}

		r, g, b := v.decode(best.color)
		for _, row := range rows {
			v.fb.SetPixel(x, row, r, g, b)
		}
	}

	// CRAM dot artifacts are only visible when border rendering is
	// enabled
	if v.RenderBorder {
		for _, cd := range v.cramDots {
			r, g, b := v.decodeColor(cd.color)
			for _, row := range rows {
				v.fb.SetPixel(cd.dot, row, r, g, b)
			}
		}
	}
}
