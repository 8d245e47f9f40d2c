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

package s32x

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
)

// SDRAM size: the SH-2s' 256KB of work RAM.
const SDRAMSize = 0x40000

// S32X is the 32X adapter: the twin SH-2s and their bus, the frame
// buffer VDP and the PWM unit. The adapter joins an existing Genesis:
// its processors run on the Genesis clock driver and its bus windows
// reach back into the cartridge through a callback.
type S32X struct {
	VDP *VDP
	PWM *PWM

	Master *scheduler.Host
	Slave  *scheduler.Host

	sdram [SDRAMSize]byte

	// the SH-2s share one external bus; the arbiter detail is reduced
	// to a single map both hosts execute over
	busSH *memorymap.Map

	// the eight communication words shared with the 68000
	comm [8]uint16

	// adapter control as seen from the 68000 ($A15100): adapter enable
	// and SH-2 reset
	adapterCtl uint16

	// reads of cartridge space go back through the Genesis
	cartRead func(address uint32) uint8
}

// NewS32X is the preferred method of initialisation for the S32X type.
// The two factory arguments build the master and slave SH-2 decoders;
// cartRead reaches the cartridge through the Genesis bus.
func NewS32X(master func(bus.Bus16) scheduler.Decoder, slave func(bus.Bus16) scheduler.Decoder,
	drv *scheduler.Driver, pwmRing *mix.Ring, masterHz int64,
	cartRead func(address uint32) uint8) *S32X {

	x := &S32X{
		VDP:      NewVDP(),
		PWM:      NewPWM(pwmRing, masterHz),
		cartRead: cartRead,
	}

	x.buildBus()

	// the SH-2s run at 3/7 of the master clock: 7 ticks per 3 cycles
	x.Master = scheduler.NewHostRational("SH2-M", master(x.busSH), drv,
		clocks.S32XSH2Denominator, clocks.S32XSH2Numerator)
	x.Slave = scheduler.NewHostRational("SH2-S", slave(x.busSH), drv,
		clocks.S32XSH2Denominator, clocks.S32XSH2Numerator)

	drv.AddProcessor(x.Master)
	drv.AddProcessor(x.Slave)

	// the SH-2s hold in reset until the 68000 enables the adapter
	x.Master.Halt(true)
	x.Slave.Halt(true)

	return x
}

// buildBus lays out the SH-2 address space.
func (x *S32X) buildBus() {
	m := memorymap.NewMap("32x sh2 bus")

	// system registers: comm words, PWM, VDP control
	m.Add(memorymap.Area{
		Label:   "system registers",
		Start:   0x00004000,
		End:     0x000043ff,
		Read16:  x.regRead,
		Write16: x.regWrite,
	})

	// boot vectors and cartridge through the adapter
	m.Add(memorymap.Area{
		Label: "cartridge",
		Start: 0x00000000,
		End:   0x003fffff,
		Read8: func(address uint32) uint8 {
			return x.cartRead(address & 0x3fffff)
		},
		Write8: func(_ uint32, _ uint8) {},
	})

	m.Add(memorymap.Area{
		Label: "cartridge mirror",
		Start: 0x02000000,
		End:   0x023fffff,
		Read8: func(address uint32) uint8 {
			return x.cartRead(address & 0x3fffff)
		},
		Write8: func(_ uint32, _ uint8) {},
	})

	// frame buffer window. accesses are not held off while an auto fill
	// reports busy
	m.Add(memorymap.Area{
		Label: "frame buffer",
		Start: 0x04000000,
		End:   0x0401ffff,
		Read16: func(address uint32) uint16 {
			return x.VDP.ReadFB(address & 0x1ffff)
		},
		Write16: func(address uint32, data uint16) {
			x.VDP.WriteFB(address&0x1ffff, data)
		},
		Write8: func(address uint32, data uint8) {
			x.VDP.WriteFBByte(address&0x1ffff, data)
		},
	})

	// the overwrite image: byte writes of zero land here too
	m.Add(memorymap.Area{
		Label: "frame buffer overwrite",
		Start: 0x04020000,
		End:   0x0403ffff,
		Write16: func(address uint32, data uint16) {
			x.VDP.WriteFB(address&0x1ffff, data)
		},
	})

	m.Add(memorymap.Area{
		Label: "SDRAM",
		Start: 0x06000000,
		End:   0x0603ffff,
		Read8: func(address uint32) uint8 {
			return x.sdram[address&(SDRAMSize-1)]
		},
		Write8: func(address uint32, data uint8) {
			x.sdram[address&(SDRAMSize-1)] = data
		},
	})

	x.busSH = m
}

// regRead services the SH-2 side system registers.
func (x *S32X) regRead(address uint32) uint16 {
	off := address & 0x3ff
	switch {
	case off >= 0x20 && off < 0x30:
		return x.comm[(off-0x20)>>1]
	case off >= 0x100 && off < 0x120:
		return x.VDP.ReadRegister(int(off & 0x1f))
	case off >= 0x200 && off < 0x400:
		return x.VDP.ReadPalette(int(off-0x200) >> 1)
	}
	return 0
}

// regWrite services the SH-2 side system registers.
func (x *S32X) regWrite(address uint32, data uint16) {
	off := address & 0x3ff
	switch {
	case off >= 0x20 && off < 0x30:
		x.comm[(off-0x20)>>1] = data
	case off == 0x30:
		x.PWM.WriteControl(data)
	case off == 0x32:
		x.PWM.WriteCycle(data)
	case off == 0x34:
		x.PWM.WriteLeft(data)
	case off == 0x36:
		x.PWM.WriteRight(data)
	case off == 0x38:
		x.PWM.WriteMono(data)
	case off >= 0x100 && off < 0x120:
		x.VDP.WriteRegister(int(off&0x1f), data)
	case off >= 0x200 && off < 0x400:
		x.VDP.WritePalette(int(off-0x200)>>1, data)
	}
}

// MainRead services the 68000 side adapter registers ($A15100 window).
func (x *S32X) MainRead(address uint32) uint16 {
	off := address & 0xff
	switch {
	case off == 0x00:
		return x.adapterCtl
	case off >= 0x20 && off < 0x30:
		return x.comm[(off-0x20)>>1]
	}
	return 0
}

// MainWrite services the 68000 side adapter registers. Enabling the
// adapter releases the SH-2s from reset; this is shared state and the
// caller raises the scheduler sync point.
func (x *S32X) MainWrite(address uint32, data uint16) {
	off := address & 0xff
	switch {
	case off == 0x00:
		x.adapterCtl = data
		run := data&0x01 == 0x01 && data&0x02 == 0
		x.Master.Halt(!run)
		x.Slave.Halt(!run)
	case off >= 0x20 && off < 0x30:
		x.comm[(off-0x20)>>1] = data
	}
}

// Enabled reports whether the adapter has been switched on by the
// 68000.
func (x *S32X) Enabled() bool {
	return x.adapterCtl&0x01 == 0x01
}

// Comm returns a communication word. Used by tests.
func (x *S32X) Comm(n int) uint16 {
	return x.comm[n&0x07]
}
