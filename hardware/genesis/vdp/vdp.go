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

// Package vdp emulates the Genesis VDP (the YM7101). The VDP is a dot
// clocked state machine: Step() advances it by master clock ticks and the
// package converts those ticks to dots and scanlines internally.
//
// Scanlines are rendered whole, when the line ends (after its horizontal
// blank). The exception is CRAM: a CRAM write that lands inside the
// active display leaves a spot of the written colour at the dot of the
// write (the "CRAM dot" artifact) and the line renderer honours the
// artifact position.
package vdp

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/display"
)

// the VDP's memories.
const (
	VRAMSize  = 0x10000
	CRAMSize  = 64
	VSRAMSize = 40
)

// timing constants. a scanline is the same length in master clock ticks in
// both horizontal modes; the dot clock divider differs
const (
	TicksPerLine = 3420

	// total dots per line
	TotalDotsH32 = 342
	TotalDotsH40 = 428

	// the dot at which active display begins
	ActiveStartH32 = 46
	ActiveStartH40 = 50

	// active dots per line
	ActiveDotsH32 = 256
	ActiveDotsH40 = 320

	// lines per frame
	LinesNTSC = 262
	LinesPAL  = 313
)

// interrupt levels presented to the 68000.
const (
	LevelHInt   = 4
	LevelVInt   = 6
	LevelExtInt = 2
)

// status register bits.
const (
	StatusPAL         = 0x0001
	StatusDMABusy     = 0x0002
	StatusHBlank      = 0x0004
	StatusVBlank      = 0x0008
	StatusOdd         = 0x0010
	StatusCollision   = 0x0020
	StatusOverflow    = 0x0040
	StatusVIntPending = 0x0080
	StatusFIFOFull    = 0x0100
	StatusFIFOEmpty   = 0x0200
)

// VDP is the Genesis video display processor.
type VDP struct {
	pal bool

	vram  [VRAMSize]uint8
	cram  [CRAMSize]uint16
	vsram [VSRAMSize]uint16

	regs [24]uint8

	// control port state
	pending   bool
	code      uint8
	address   uint16
	writeHold uint16

	// read prefetch for the data port
	prefetch      uint16
	prefetchValid bool

	fifo fifo
	dma  dma

	// position. tick is the master clock tick within the current line
	tick  int64
	line  int
	frame int

	// interlace field flag, toggles every frame in interlace modes
	odd bool

	status uint16

	// hint counter reloads from register 10 outside of active display
	hintCounter int

	// latched HV counter value and latch enable
	hvLatched bool
	hvLatch   uint16

	// deferred register values that hardware only latches once per line.
	// the applied values are copied from the shadow values at the start of
	// each line
	shadowHScrollBase uint16
	applyHScrollBase  uint16

	// cram dot artifacts recorded for the current line
	cramDots []cramDot

	// callbacks into the host system
	interrupt func(level int)
	stall68K  func(ticks int64)
	present   func(*display.Frame)
	dmaRead   func(address uint32) uint16

	fb *display.Frame

	// deinterlacing: when enabled, interlace mode 2 renders both fields
	// every frame at doubled vertical resolution
	Deinterlace bool

	// border rendering: when enabled the frame includes the vertical
	// border area and CRAM dot artifacts become visible
	RenderBorder bool
}

type cramDot struct {
	dot   int
	color uint16
}

// NewVDP is the preferred method of initialisation for the VDP type.
func NewVDP(pal bool) *VDP {
	v := &VDP{pal: pal}
	if pal {
		v.status |= StatusPAL
	}
	v.status |= StatusFIFOEmpty
	v.fb = display.NewFrame(ActiveDotsH32, 224, 8.0/7.0)
	v.interrupt = func(_ int) {}
	v.stall68K = func(_ int64) {}
	v.present = func(_ *display.Frame) {}
	v.dmaRead = func(_ uint32) uint16 { return 0 }
	return v
}

// Plumb attaches the VDP to its host system. The interrupt callback raises
// an interrupt level on the 68000; stall68K inserts DMA wait states; and
// present hands a completed frame to the renderer.
func (v *VDP) Plumb(interrupt func(level int), stall68K func(ticks int64), present func(*display.Frame)) {
	v.interrupt = interrupt
	v.stall68K = stall68K
	v.present = present
}

// h40 returns true if the VDP is in the 320 pixel horizontal mode.
func (v *VDP) h40() bool {
	return v.regs[12]&0x01 == 0x01
}

// v30 returns true if the VDP is in the 240 line vertical mode (PAL only).
func (v *VDP) v30() bool {
	return v.pal && v.regs[1]&0x08 == 0x08
}

// displayEnabled returns true if the display bit of register 1 is set.
func (v *VDP) displayEnabled() bool {
	return v.regs[1]&0x40 == 0x40
}

// interlaceMode returns 0 (progressive), 1 (interlace) or 2 (double screen
// interlace).
func (v *VDP) interlaceMode() int {
	switch v.regs[12] & 0x06 {
	case 0x02:
		return 1
	case 0x06:
		return 2
	}
	return 0
}

// activeLines is the number of lines of active display.
func (v *VDP) activeLines() int {
	if v.v30() {
		return 240
	}
	return 224
}

// totalLines is the number of lines in the frame.
func (v *VDP) totalLines() int {
	if v.pal {
		return LinesPAL
	}
	return LinesNTSC
}

// activeDots is the number of dots of active display per line.
func (v *VDP) activeDots() int {
	if v.h40() {
		return ActiveDotsH40
	}
	return ActiveDotsH32
}

// dotTicks is the master clock divider for the dot clock.
func (v *VDP) dotTicks() int64 {
	if v.h40() {
		return 8
	}
	return 10
}

// dot returns the current dot position within the line.
func (v *VDP) dot() int {
	return int(v.tick / v.dotTicks())
}

// activeStart is the dot at which active display begins.
func (v *VDP) activeStart() int {
	if v.h40() {
		return ActiveStartH40
	}
	return ActiveStartH32
}

// Step advances the VDP by the given number of master clock ticks.
func (v *VDP) Step(ticks int64) {
	for ticks > 0 {
		remaining := TicksPerLine - v.tick
		t := min(ticks, remaining)

		v.fifo.drain(v, t)
		v.dma.step(v, t)

		v.tick += t
		ticks -= t

		// hblank status covers the portion of the line outside active
		// display. approximated to the front of the line
		if v.dot() < v.activeStart() || v.dot() >= v.activeStart()+v.activeDots() {
			v.status |= StatusHBlank
		} else {
			v.status &^= StatusHBlank
		}

		if v.tick >= TicksPerLine {
			v.tick = 0
			v.endOfLine()
		}
	}
}

// endOfLine renders the completed line and advances the line counter,
// firing interrupts and the frame callback as the beam position demands.
func (v *VDP) endOfLine() {
	active := v.activeLines()

	if v.line < active {
		v.renderLine(v.line)
	}
	v.cramDots = v.cramDots[:0]

	// horizontal interrupt counter. reloaded during vertical blank and
	// when it underflows; decremented on each active line
	if v.line >= active {
		v.hintCounter = int(v.regs[10])
	} else {
		v.hintCounter--
		if v.hintCounter < 0 {
			v.hintCounter = int(v.regs[10])
			if v.regs[0]&0x10 == 0x10 {
				v.interrupt(LevelHInt)
			}
		}
	}

	v.line++

	if v.line == active {
		// entering vertical blank
		v.status |= StatusVBlank
		v.status |= StatusVIntPending
		if v.regs[1]&0x20 == 0x20 {
			v.interrupt(LevelVInt)
		}
		v.presentFrame()
	}

	if v.line >= v.totalLines() {
		v.line = 0
		v.frame++
		v.status &^= StatusVBlank

		// the odd field flag toggles every frame in the interlace modes,
		// even when deinterlacing hides the distinction from the viewer
		if v.interlaceMode() != 0 {
			v.odd = !v.odd
			if v.odd {
				v.status |= StatusOdd
			} else {
				v.status &^= StatusOdd
			}
		} else {
			v.odd = false
			v.status &^= StatusOdd
		}

		// per-line latches reload at the top of the frame
		v.applyHScrollBase = v.shadowHScrollBase
	}
}

// presentFrame hands the completed frame to the renderer.
func (v *VDP) presentFrame() {
	v.ensureFrame()
	v.fb.Interlaced = v.interlaceMode() == 2 && !v.Deinterlace
	v.fb.FrameNum = v.frame
	if v.h40() {
		v.fb.PixelAspectRatio = 32.0 / 35.0
	} else {
		v.fb.PixelAspectRatio = 8.0 / 7.0
	}

	v.present(v.fb)
}

// Line returns the current scanline. Used by the host system for
// scheduling decisions.
func (v *VDP) Line() int {
	return v.line
}

// Frame returns the frame count since power on.
func (v *VDP) Frame() int {
	return v.frame
}

// InVBlank returns true if the VDP is in the vertical blank period.
func (v *VDP) InVBlank() bool {
	return v.status&StatusVBlank == StatusVBlank
}

// TicksToEndOfLine returns the master clock ticks remaining in the current
// line. The clock driver uses this as a device deadline.
func (v *VDP) TicksToEndOfLine() int64 {
	return TicksPerLine - v.tick
}

// Snapshot serialises the VDP's memories and registers.
func (v *VDP) Snapshot() []byte {
	out := make([]byte, 0, VRAMSize+CRAMSize*2+VSRAMSize*2+len(v.regs)+8)
	out = append(out, v.vram[:]...)
	for _, c := range v.cram {
		out = append(out, byte(c), byte(c>>8))
	}
	for _, c := range v.vsram {
		out = append(out, byte(c), byte(c>>8))
	}
	out = append(out, v.regs[:]...)
	out = append(out, byte(v.address), byte(v.address>>8), v.code)
	if v.pending {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

// Restore applies a snapshot produced by Snapshot().
func (v *VDP) Restore(state []byte) error {
	want := VRAMSize + CRAMSize*2 + VSRAMSize*2 + len(v.regs) + 4
	if len(state) != want {
		return fmt.Errorf("vdp: bad snapshot length")
	}

	copy(v.vram[:], state)
	state = state[VRAMSize:]
	for i := range v.cram {
		v.cram[i] = uint16(state[i*2]) | uint16(state[i*2+1])<<8
	}
	state = state[CRAMSize*2:]
	for i := range v.vsram {
		v.vsram[i] = uint16(state[i*2]) | uint16(state[i*2+1])<<8
	}
	state = state[VSRAMSize*2:]
	copy(v.regs[:], state)
	state = state[len(v.regs):]

	v.address = uint16(state[0]) | uint16(state[1])<<8
	v.code = state[2]
	v.pending = state[3] != 0

	return nil
}
