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

// sprite attribute table entry, 8 bytes per sprite.
type sprite struct {
	y        int
	width    int // in cells
	height   int // in cells
	link     int
	tile     int
	hflip    bool
	vflip    bool
	palette  uint8
	priority bool
	x        int
}

// per-line sprite limits. H40 mode allows more sprites and more sprite
// dots per line than H32
func (v *VDP) spriteLimits() (int, int, int) {
	if v.h40() {
		return 80, 20, 320
	}
	return 64, 16, 256
}

// readSprite decodes the numbered entry of the sprite attribute table.
func (v *VDP) readSprite(n int) sprite {
	base := (int(v.regs[5]&0x7f) << 9) + n*8

	w0 := uint16(v.vram[base&0xffff])<<8 | uint16(v.vram[(base+1)&0xffff])
	w1 := uint16(v.vram[(base+2)&0xffff])<<8 | uint16(v.vram[(base+3)&0xffff])
	w2 := uint16(v.vram[(base+4)&0xffff])<<8 | uint16(v.vram[(base+5)&0xffff])
	w3 := uint16(v.vram[(base+6)&0xffff])<<8 | uint16(v.vram[(base+7)&0xffff])

	return sprite{
		y:        int(w0 & 0x03ff),
		height:   int(w1>>8)&0x03 + 1,
		width:    int(w1>>10)&0x03 + 1,
		link:     int(w1 & 0x7f),
		tile:     int(w2 & 0x07ff),
		hflip:    w2&0x0800 == 0x0800,
		vflip:    w2&0x1000 == 0x1000,
		palette:  uint8(w2>>13) & 0x03,
		priority: w2&0x8000 == 0x8000,
		x:        int(w3 & 0x01ff),
	}
}

// spriteLine resolves the sprite layer for one scanline. The returned
// buffer holds one pix per dot; transparent dots have class pixBackdrop.
//
// Sprite masking (x=0 after a lower-numbered sprite on the line) and the
// per-line sprite and dot limits are honoured; exceeding the sprite limit
// sets the overflow status bit and overlapping opaque pixels set the
// collision bit.
func (v *VDP) spriteLine(line int) []pix {
	width := v.activeDots()
	buf := make([]pix, width)

	maxSprites, maxPerLine, maxDots := v.spriteLimits()

	// screen coordinates of sprites are offset by 128
	screenY := line + 128
	tileHeight := 8
	if v.interlaceMode() == 2 {
		tileHeight = 16
		screenY = line*2 + 128
		if v.odd {
			screenY++
		}
	}

	var onLine []sprite
	var masked bool
	var dots int

	n := 0
	for range maxSprites {
		s := v.readSprite(n)

		h := s.height * tileHeight
		if screenY >= s.y && screenY < s.y+h {
			if s.x == 0 && len(onLine) > 0 {
				// sprite masking: an on-line sprite at x=0 hides the
				// remaining sprites on the line
				masked = true
			}
			if !masked {
				if len(onLine) >= maxPerLine {
					v.status |= StatusOverflow
					break
				}
				onLine = append(onLine, s)
			}
		}

		n = s.link
		if n == 0 || n >= maxSprites {
			break
		}
	}

	// lower-numbered sprites win ties, so scan in reverse and let earlier
	// sprites overwrite later ones
	for i := len(onLine) - 1; i >= 0; i-- {
		s := onLine[i]

		row := screenY - s.y
		if s.vflip {
			row = s.height*tileHeight - 1 - row
		}

		for cx := 0; cx < s.width; cx++ {
			// sprite tiles are arranged column-major
			col := cx
			if s.hflip {
				col = s.width - 1 - cx
			}
			tile := s.tile + col*s.height + row/tileHeight

			tr := v.tileRow(tile, row%tileHeight, s.hflip, false, tileHeight)
			for px := 0; px < 8; px++ {
				x := s.x - 128 + cx*8 + px
				if x < 0 || x >= width {
					continue
				}
				if dots >= maxDots {
					break
				}
				dots++

				c := tr[px]
				if c == 0 {
					continue
				}

				if buf[x].class != pixBackdrop {
					v.status |= StatusCollision
				}

				class := uint8(pixSpriteLow)
				if s.priority {
					class = pixSpriteHigh
				}
				buf[x] = pix{color: s.palette<<4 | c, class: class}
			}
		}
	}

	return buf
}
