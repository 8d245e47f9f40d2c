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

package s32x_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/s32x"
	"github.com/jetsetilly/gophergen/test"
)

func TestRunLengthMode(t *testing.T) {
	v := s32x.NewVDP()

	// run length mode
	v.WriteRegister(0x00, 0x0003)

	// palette entries 0x80 and 0x40
	v.WritePalette(0x80, 0x001f) // full red in 15-bit BGR
	v.WritePalette(0x40, 0x7c00) // full blue

	// the line table points line 0 at word address 0x100. the VDP draws
	// into the selected buffer and displays the other, so flip first:
	// draw into buffer 0, display it by selecting buffer 1
	v.WriteFB(0x000000, 0x0100)

	// {count-1=0x7f, index 0x80}: 128 pixels of palette 0x80, then
	// {count-1=0x3f, index 0x40}: 64 pixels of palette 0x40
	v.WriteFB(0x200, 0x7f80)
	v.WriteFB(0x202, 0x3f40)

	// flip so the buffer just written is the displayed one
	v.SetVBlank(true)
	v.WriteRegister(0x0a, 0x0001)
	v.SetVBlank(false)

	rgb := make([]byte, 320*3)
	opaque := make([]bool, 320)
	v.RenderLine(0, 320, rgb, opaque)

	// first 128 pixels are palette 0x80 (red)
	for _, x := range []int{0, 64, 127} {
		test.ExpectSuccess(t, opaque[x])
		test.ExpectEquality(t, rgb[x*3], uint8(0x1f<<3))
		test.ExpectEquality(t, rgb[x*3+2], uint8(0))
	}

	// the next 64 are palette 0x40 (blue)
	for _, x := range []int{128, 160, 191} {
		test.ExpectSuccess(t, opaque[x])
		test.ExpectEquality(t, rgb[x*3], uint8(0))
		test.ExpectEquality(t, rgb[x*3+2], uint8(0x1f<<3))
	}
}

func TestBufferFlipWaitsForVBlank(t *testing.T) {
	v := s32x.NewVDP()

	// a flip requested mid-frame does not take effect until the blank
	test.ExpectEquality(t, v.ReadRegister(0x0a)&0x01, uint16(0))
	v.WriteRegister(0x0a, 0x0001)
	test.ExpectEquality(t, v.ReadRegister(0x0a)&0x01, uint16(0))

	v.SetVBlank(true)
	test.ExpectEquality(t, v.ReadRegister(0x0a)&0x01, uint16(1))
}

func TestAutoFill(t *testing.T) {
	v := s32x.NewVDP()

	// fill 16 words of 0xabcd at word address 0x80
	v.WriteRegister(0x04, 15)
	v.WriteRegister(0x06, 0x0080)
	v.WriteRegister(0x08, 0xabcd)

	// the fill reports busy until the slots drain
	test.ExpectSuccess(t, v.FillBusy())
	v.StepFill(16)
	test.ExpectSuccess(t, !v.FillBusy())

	for i := 0; i < 16; i++ {
		test.ExpectEquality(t, v.ReadFB(uint32(0x100+i*2)), uint16(0xabcd))
	}
}

func TestComposition(t *testing.T) {
	v := s32x.NewVDP()

	// blank 32X: the Genesis frame passes through untouched
	gen := display.NewFrame(256, 224, 8.0/7.0)
	gen.SetPixel(10, 10, 1, 2, 3)

	out := display.NewFrame(256, 224, 8.0/7.0)
	v.Compose(gen, out)

	// H32 Genesis under 32X material widens to 1280
	test.ExpectEquality(t, out.Width, 1280)
	test.ExpectEquality(t, out.Height, 224)

	r, g, b := out.Pixel(10*5, 10)
	test.ExpectEquality(t, r, uint8(1))
	test.ExpectEquality(t, g, uint8(2))
	test.ExpectEquality(t, b, uint8(3))
}

func TestPWMFIFO(t *testing.T) {
	ring := mix.NewRing(4096)
	p := s32x.NewPWM(ring, 53693175)

	p.WriteCycle(1042) // roughly 22kHz

	// the FIFO holds three samples
	test.ExpectSuccess(t, !p.FIFOFull())
	p.WriteMono(100)
	p.WriteMono(200)
	p.WriteMono(300)
	test.ExpectSuccess(t, p.FIFOFull())

	// stepping by one interval pops one entry
	p.Step(1042 * 7 / 3)
	test.ExpectSuccess(t, !p.FIFOFull())

	f, ok := ring.Pop()
	test.ExpectSuccess(t, ok)
	// width 100 of cycle 1042 is well below centre
	test.ExpectSuccess(t, f.L < 0)
}
