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

package vdp_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/genesis/vdp"
	"github.com/jetsetilly/gophergen/test"
)

// setupAddress performs the two-word control port sequence for the given
// code and address.
func setupAddress(v *vdp.VDP, code uint8, address uint16) {
	v.WriteControl(uint16(code&0x03)<<14 | address&0x3fff)
	v.WriteControl(uint16(code&0x3c)<<2 | address>>14)
}

const (
	codeVRAMWrite  = 0x01
	codeCRAMWrite  = 0x03
	codeVRAMRead   = 0x00
	codeVSRAMWrite = 0x05
)

// enable the display: register 1 with the display bit set.
func enableDisplay(v *vdp.VDP) {
	v.WriteControl(0x8100 | 0x40)
}

func TestFIFODepth(t *testing.T) {
	v := vdp.NewVDP(false)
	enableDisplay(v)

	// step into active display so the FIFO drains slowly
	v.Step(600)

	var stalled int64
	v.Plumb(func(_ int) {}, func(ticks int64) { stalled += ticks }, func(_ *display.Frame) {})

	setupAddress(v, codeVRAMWrite, 0x0000)

	// the FIFO accepts four writes without stalling the CPU
	for i := 0; i < 4; i++ {
		v.WriteData(uint16(i))
	}
	test.ExpectEquality(t, v.FIFODepth(), 4)
	test.ExpectEquality(t, stalled, int64(0))

	// FIFO depth never exceeds four: a fifth write stalls the CPU for at
	// least one access slot and the depth stays at four
	v.WriteData(0x0004)
	test.ExpectEquality(t, v.FIFODepth(), 4)
	test.ExpectSuccess(t, stalled > 0)
}

func TestFIFODrains(t *testing.T) {
	v := vdp.NewVDP(false)

	// display disabled: the FIFO drains at the blanking rate
	setupAddress(v, codeVRAMWrite, 0x0100)
	v.WriteData(0xaabb)
	test.ExpectEquality(t, v.FIFODepth(), 1)

	v.Step(100)
	test.ExpectEquality(t, v.FIFODepth(), 0)

	// the write landed in VRAM, high byte first
	setupAddress(v, codeVRAMRead, 0x0100)
	test.ExpectEquality(t, v.ReadData(), uint16(0xaabb))
}

func TestStatusFlags(t *testing.T) {
	v := vdp.NewVDP(false)

	// FIFO empty flag set at power on, PAL flag unset on an NTSC machine
	s := v.ReadStatus()
	test.ExpectEquality(t, s&vdp.StatusFIFOEmpty, uint16(vdp.StatusFIFOEmpty))
	test.ExpectEquality(t, s&vdp.StatusPAL, uint16(0))

	p := vdp.NewVDP(true)
	test.ExpectEquality(t, p.ReadStatus()&vdp.StatusPAL, uint16(vdp.StatusPAL))
}

func TestVBlankTiming(t *testing.T) {
	// PAL machine: 313 lines per frame, vertical blank entered at line 224
	// (the machine reports line 312-88 on the first frame)
	v := vdp.NewVDP(true)
	enableDisplay(v)

	var vints int
	var vintLine int
	v.Plumb(func(level int) {
		if level == vdp.LevelVInt {
			vints++
			vintLine = v.Line()
		}
	}, func(_ int64) {}, func(_ *display.Frame) {})

	// enable VINT (register 1: display on, VINT enable)
	v.WriteControl(0x8100 | 0x60)

	// run one full frame
	v.Step(vdp.TicksPerLine * vdp.LinesPAL)

	test.ExpectEquality(t, vints, 1)
	test.ExpectEquality(t, vintLine, 224)
	test.ExpectEquality(t, v.Line(), 0)
	test.ExpectEquality(t, v.Frame(), 1)
}

func TestVIntReEnableWhilePending(t *testing.T) {
	v := vdp.NewVDP(false)

	var vints int
	v.Plumb(func(level int) {
		if level == vdp.LevelVInt {
			vints++
		}
	}, func(_ int64) {}, func(_ *display.Frame) {})

	// display on but VINT disabled. run to vertical blank: the interrupt
	// is latched pending but not delivered
	v.WriteControl(0x8100 | 0x40)
	v.Step(vdp.TicksPerLine * 225)
	test.ExpectEquality(t, vints, 0)

	// enabling VINT with one pending delivers it immediately (the host's
	// interrupt callback applies the one instruction delay)
	v.WriteControl(0x8100 | 0x60)
	test.ExpectEquality(t, vints, 1)
}

func TestFramePresentation(t *testing.T) {
	v := vdp.NewVDP(false)
	enableDisplay(v)

	var frames []*display.Frame
	v.Plumb(func(_ int) {}, func(_ int64) {}, func(f *display.Frame) {
		frames = append(frames, f)
	})

	v.Step(vdp.TicksPerLine * vdp.LinesNTSC * 2)

	// one frame per vertical blank
	test.ExpectEquality(t, len(frames), 2)
	test.ExpectEquality(t, frames[0].Width, vdp.ActiveDotsH32)
	test.ExpectEquality(t, frames[0].Height, 224)
}

func TestCRAMDot(t *testing.T) {
	v := vdp.NewVDP(false)
	v.RenderBorder = true
	enableDisplay(v)

	var frame *display.Frame
	v.Plumb(func(_ int) {}, func(_ int64) {}, func(f *display.Frame) {
		frame = f
	})

	// run into the active display of line 10 and write a colour mid-line
	v.Step(vdp.TicksPerLine*10 + (vdp.ActiveStartH32+100)*10)

	setupAddress(v, codeCRAMWrite, 0x0000)
	v.WriteData(0x0e00) // full blue

	// finish the frame
	v.Step(vdp.TicksPerLine*vdp.LinesNTSC - (vdp.TicksPerLine*10 + (vdp.ActiveStartH32+100)*10))

	test.ExpectSuccess(t, frame != nil)

	// the artifact appears at the dot of the write: x=100, y=10, decoded
	// through the colour ramp (0x0e00 is full blue)
	_, _, b := frame.Pixel(100, 10)
	test.ExpectEquality(t, b, uint8(255))

	// a neighbouring pixel on the same line is backdrop (black)
	_, _, b2 := frame.Pixel(110, 10)
	test.ExpectEquality(t, b2, uint8(0))
}

func TestDMA68KStall(t *testing.T) {
	v := vdp.NewVDP(false)

	var stalled int64
	v.Plumb(func(_ int) {}, func(ticks int64) { stalled += ticks }, func(_ *display.Frame) {})

	source := make([]uint16, 0x100)
	for i := range source {
		source[i] = uint16(i)
	}
	v.SetDMAReader(func(address uint32) uint16 {
		return source[(address>>1)&0xff]
	})

	// DMA enable (register 1 bit 4) plus display off so the blanking slot
	// rate applies
	v.WriteControl(0x8100 | 0x10)

	// length = 0x40 words
	v.WriteControl(0x9300 | 0x40) // length low
	v.WriteControl(0x9400 | 0x00) // length high
	v.WriteControl(0x9500 | 0x00) // source low
	v.WriteControl(0x9600 | 0x00) // source mid
	v.WriteControl(0x9700 | 0x00) // source high (68K mode)
	v.WriteControl(0x8f02)        // auto-increment 2

	// address set with CD5
	v.WriteControl(uint16(codeVRAMWrite&0x03)<<14 | 0x0000)
	v.WriteControl(uint16(codeVRAMWrite&0x3c)<<2 | 0x0080) // CD5

	// the transfer stalls the 68000 for exactly one slot per word
	test.ExpectEquality(t, stalled, int64(0x40*12))

	// and the data arrived
	setupAddress(v, codeVRAMRead, 0x0002)
	test.ExpectEquality(t, v.ReadData(), uint16(0x0001))
}

func TestOddFlagToggles(t *testing.T) {
	v := vdp.NewVDP(false)
	enableDisplay(v)

	// interlace mode 2 with deinterlacing on: the status ODD flag still
	// toggles every frame
	v.Deinterlace = true
	v.WriteControl(0x8c06) // register 12: interlace mode 2

	last := v.ReadStatus() & vdp.StatusOdd
	for i := 0; i < 4; i++ {
		v.Step(vdp.TicksPerLine * vdp.LinesNTSC)
		s := v.ReadStatus() & vdp.StatusOdd
		test.ExpectInequality(t, s, last)
		last = s
	}
}
