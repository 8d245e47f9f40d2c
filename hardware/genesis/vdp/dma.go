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

import (
	"github.com/jetsetilly/gophergen/logger"
)

// the three DMA operations of the VDP. a 68K transfer stalls the 68000 for
// the duration; fill and copy run in the background, stealing the VDP's
// external access slots, and only collide with the 68000 if it touches the
// data port while they run.
const (
	dmaMode68K = iota
	dmaModeFill
	dmaModeCopy
)

type dma struct {
	mode int

	// fill and copy run asynchronously. words remaining and ticks to the
	// next slot
	busy      bool
	remaining int
	countdown int64

	// fill operand, set by the data port write that triggers the fill
	fillData uint16
	awaiting bool

	source  uint32
	address uint16
}

// SetDMAReader attaches the function used by 68K-to-VRAM transfers to read
// the 68000 bus.
func (v *VDP) SetDMAReader(read func(address uint32) uint16) {
	v.dmaRead = read
}

// length returns the DMA length register value, converting zero to 0x10000
// as the hardware does.
func (d *dma) length(v *VDP) int {
	l := int(v.regs[19]) | int(v.regs[20])<<8
	if l == 0 {
		l = 0x10000
	}
	return l
}

// begin a DMA operation. Called on the control port write that completes
// an address set with CD5 set.
func (d *dma) begin(v *VDP) {
	switch {
	case v.regs[23]&0x80 == 0:
		d.mode = dmaMode68K
		d.run68K(v)
	case v.regs[23]&0x40 == 0:
		// fill waits for the data port write that provides the operand
		d.mode = dmaModeFill
		d.awaiting = true
	default:
		d.mode = dmaModeCopy
		d.start(v)
	}
}

// run68K performs a 68K-to-VRAM transfer. The transfer is modelled as an
// immediate copy plus a stall of the 68000 for the exact number of word
// slots consumed; slot availability differs between active display and
// blanking.
func (d *dma) run68K(v *VDP) {
	length := d.length(v)
	source := (uint32(v.regs[21]) | uint32(v.regs[22])<<8 | uint32(v.regs[23]&0x7f)<<16) << 1

	slot := v.fifo.slotTicks(v)

	for i := 0; i < length; i++ {
		data := v.dmaRead(source)
		source += 2

		switch v.code & 0x0f {
		case codeVRAMWrite:
			if v.address&0x01 == 0x01 {
				v.writeVRAM(v.address&0xfffe, uint8(data))
				v.writeVRAM(v.address|0x01, uint8(data>>8))
			} else {
				v.writeVRAM(v.address, uint8(data>>8))
				v.writeVRAM(v.address|0x01, uint8(data))
			}
		case codeCRAMWrite:
			v.writeCRAM(v.address, data)
		case codeVSRAMWrite:
			v.writeVSRAM(v.address, data)
		default:
			logger.Logf(logger.Allow, "vdp", "68K DMA with read code %02x ignored", v.code)
			return
		}

		v.address += uint16(v.regs[15])
	}

	v.stall68K(int64(length) * slot)

	// writeback of the incremented source address
	v.regs[21] = uint8(source >> 1)
	v.regs[22] = uint8(source >> 9)
	v.regs[23] = v.regs[23]&0x80 | uint8(source>>17)&0x7f
}

// fill triggers a pending fill operation. Called by the data port
// write handler.
func (d *dma) fill(v *VDP, data uint16) {
	d.fillData = data
	d.awaiting = false
	d.start(v)
}

// start begins an asynchronous fill or copy.
func (d *dma) start(v *VDP) {
	d.remaining = d.length(v)
	d.source = uint32(v.regs[21]) | uint32(v.regs[22])<<8
	d.address = v.address
	d.busy = true
	d.countdown = v.fifo.slotTicks(v)
	v.status |= StatusDMABusy
}

// step advances an asynchronous fill or copy by the given number of master
// clock ticks.
func (d *dma) step(v *VDP, ticks int64) {
	if !d.busy {
		return
	}

	for ticks > 0 && d.remaining > 0 {
		if d.countdown > ticks {
			d.countdown -= ticks
			return
		}
		ticks -= d.countdown
		d.countdown = v.fifo.slotTicks(v)

		switch d.mode {
		case dmaModeFill:
			// fill writes the high byte of the operand to successive
			// addresses
			v.writeVRAM(d.address, uint8(d.fillData>>8))
		case dmaModeCopy:
			v.writeVRAM(d.address, v.vram[d.source&0xffff])
			d.source++
		}

		d.address += uint16(v.regs[15])
		d.remaining--
	}

	if d.remaining <= 0 {
		d.busy = false
		v.status &^= StatusDMABusy
	}
}

// DMABusy returns true while a fill or copy operation is running. VRAM
// access through the data port is stalled until it completes.
func (v *VDP) DMABusy() bool {
	return v.dma.busy
}
