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

// Package gb is the Game Boy / Game Boy Color system core: the SM83 CPU
// (hosted externally), the PPU with its mode 2/3/0 line timing and the
// four channel APU. CGB additions covered here: VRAM and WRAM banking,
// double speed mode and HDMA.
package gb

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/savestate"
)

// interrupt bits of the IF/IE registers, presented to the hosted SM83
// as levels.
const (
	IntVBlank = 0
	IntSTAT   = 1
	IntTimer  = 2
	IntSerial = 3
	IntJoypad = 4
)

// GB is the Game Boy system core.
type GB struct {
	Drv *scheduler.Driver
	CPU *scheduler.Host

	PPU *PPU
	APU *APU

	busC *memorymap.Map

	wram     [0x8000]byte // 8 banks on CGB
	hram     [0x7f]byte
	wramBank int

	cart *cartridge.Cartridge
	cgb  bool

	// interrupt flags/enable
	intFlags  uint8
	intEnable uint8

	// joypad select bits
	joyp uint8

	// timer
	div  uint16
	tima uint8
	tma  uint8
	tac  uint8

	// CGB double speed
	doubleSpeed bool
	speedArmed  bool

	// HDMA state
	hdmaSrc    uint16
	hdmaDst    uint16
	hdmaLen    int
	hdmaHBlank bool

	pads   input.State
	poller input.Poller

	Mixer *mix.Mixer

	renderer   display.Renderer
	frameTicks int64
}

// NewGB is the preferred method of initialisation for the GB type.
func NewGB(cart *cartridge.Cartridge, cpuFactory func(bus.Bus8) scheduler.Decoder, hostRate int) *GB {
	g := &GB{
		cart:   cart,
		cgb:    cart.System == cartridge.SystemGBC,
		poller: input.NilPoller{},
		joyp:   0x30,
	}

	g.Drv = scheduler.NewDriver()
	g.PPU = NewPPU(g.cgb)

	g.Mixer = mix.NewMixer(hostRate, hostRate/20)
	apuRing := g.Mixer.AddSource("apu", GBSampleRate, false, filters.Preset15kHz)
	g.APU = NewAPU(apuRing)

	g.buildBus()

	// the SM83's machine cycle is four dots; the decoder reports dots.
	// in double speed mode the CPU ratio is unchanged and the device
	// below passes the PPU and APU half as many dots per tick
	g.CPU = scheduler.NewHost("SM83", cpuFactory(g.busC), g.Drv, 1)
	g.Drv.AddProcessor(g.CPU)

	g.PPU.Plumb(
		func() { g.raiseInterrupt(IntVBlank) },
		func() { g.raiseInterrupt(IntSTAT) },
		g.presentFrame,
	)

	g.Drv.AddDevice(&gbDevice{g: g, period: dotsPerLine})

	return g
}

// gbDevice steps the PPU, APU and timer from dot deltas.
type gbDevice struct {
	g      *GB
	period scheduler.Ticks
	last   scheduler.Ticks
}

func (d *gbDevice) Label() string {
	return "ppu/apu/timer"
}

func (d *gbDevice) NextDeadline() scheduler.Ticks {
	return d.last + d.period
}

func (d *gbDevice) Service(now scheduler.Ticks) {
	delta := int(now - d.last)
	if delta <= 0 {
		return
	}
	d.last = now

	dots := delta
	if d.g.doubleSpeed {
		// in double speed mode one scheduler tick is half a dot
		dots = delta / 2
	}

	d.g.PPU.Step(dots)
	d.g.APU.Step(dots)
	d.g.stepTimer(delta)
}

// stepTimer advances DIV and TIMA.
func (g *GB) stepTimer(dots int) {
	for i := 0; i < dots; i++ {
		g.div++

		if g.tac&0x04 == 0 {
			continue
		}

		var mask uint16
		switch g.tac & 0x03 {
		case 0:
			mask = 0x3ff
		case 1:
			mask = 0x0f
		case 2:
			mask = 0x3f
		default:
			mask = 0xff
		}

		if g.div&mask == 0 {
			g.tima++
			if g.tima == 0 {
				g.tima = g.tma
				g.raiseInterrupt(IntTimer)
			}
		}
	}
}

// raiseInterrupt sets an IF bit and forwards the level to the CPU host.
func (g *GB) raiseInterrupt(level int) {
	g.intFlags |= 1 << uint(level)
	if g.intEnable&(1<<uint(level)) != 0 {
		g.CPU.Interrupt(level)
	}
}

// buildBus lays out the SM83 address space.
func (g *GB) buildBus() {
	m := memorymap.NewMap("gb bus")

	m.Add(memorymap.Area{
		Label: "cartridge ROM",
		Start: 0x0000,
		End:   0x7fff,
		Read8: func(address uint32) uint8 {
			return g.cart.Mapper.Read(address)
		},
		Write8: func(address uint32, data uint8) {
			g.cart.Mapper.Write(address, data)
		},
	})

	m.Add(memorymap.Area{
		Label: "VRAM",
		Start: 0x8000,
		End:   0x9fff,
		Read8: func(address uint32) uint8 {
			return g.PPU.ReadVRAM(uint16(address))
		},
		Write8: func(address uint32, data uint8) {
			g.PPU.WriteVRAM(uint16(address), data)
		},
	})

	m.Add(memorymap.Area{
		Label: "cartridge RAM",
		Start: 0xa000,
		End:   0xbfff,
		Read8: func(address uint32) uint8 {
			return g.cart.Mapper.Read(address)
		},
		Write8: func(address uint32, data uint8) {
			g.cart.Mapper.Write(address, data)
		},
	})

	m.Add(memorymap.Area{
		Label: "WRAM",
		Start: 0xc000,
		End:   0xfdff,
		Read8: func(address uint32) uint8 {
			return g.wram[g.wramOffset(address)]
		},
		Write8: func(address uint32, data uint8) {
			g.wram[g.wramOffset(address)] = data
		},
	})

	m.Add(memorymap.Area{
		Label: "OAM",
		Start: 0xfe00,
		End:   0xfe9f,
		Read8: func(address uint32) uint8 {
			return g.PPU.ReadOAM(uint16(address & 0xff))
		},
		Write8: func(address uint32, data uint8) {
			g.PPU.WriteOAM(uint16(address&0xff), data)
		},
	})

	m.Add(memorymap.Area{
		Label:  "I/O",
		Start:  0xff00,
		End:    0xff7f,
		Read8:  g.ioRead,
		Write8: g.ioWrite,
	})

	m.Add(memorymap.Area{
		Label: "HRAM",
		Start: 0xff80,
		End:   0xfffe,
		Read8: func(address uint32) uint8 {
			return g.hram[address&0x7f]
		},
		Write8: func(address uint32, data uint8) {
			g.hram[address&0x7f] = data
		},
	})

	m.Add(memorymap.Area{
		Label: "IE",
		Start: 0xffff,
		End:   0xffff,
		Read8: func(_ uint32) uint8 {
			return g.intEnable
		},
		Write8: func(_ uint32, data uint8) {
			g.intEnable = data
		},
	})

	g.busC = m
}

// wramOffset folds a WRAM address through the CGB bank register.
func (g *GB) wramOffset(address uint32) int {
	offset := int(address-0xc000) & 0x1fff
	if offset < 0x1000 {
		return offset
	}
	bank := max(g.wramBank, 1)
	return bank<<12 | offset&0xfff
}

// ioRead services the $FF00-$FF7F window.
func (g *GB) ioRead(address uint32) uint8 {
	reg := uint8(address)

	switch {
	case reg == 0x00:
		return g.readJoypad()
	case reg == 0x04:
		return uint8(g.div >> 8)
	case reg == 0x05:
		return g.tima
	case reg == 0x06:
		return g.tma
	case reg == 0x07:
		return g.tac | 0xf8
	case reg == 0x0f:
		return g.intFlags | 0xe0
	case reg == 0x26:
		return g.APU.ReadNR52()
	case reg >= 0x40 && reg <= 0x4b || reg == 0x4f || reg >= 0x68 && reg <= 0x6b:
		return g.PPU.ReadRegister(reg)
	case reg == 0x4d:
		var v uint8 = 0x7e
		if g.doubleSpeed {
			v |= 0x80
		}
		if g.speedArmed {
			v |= 0x01
		}
		return v
	case reg == 0x55:
		if g.hdmaLen == 0 {
			return 0xff
		}
		return uint8(g.hdmaLen/16 - 1)
	case reg == 0x70:
		return uint8(g.wramBank) | 0xf8
	}
	return 0xff
}

// ioWrite services the $FF00-$FF7F window.
func (g *GB) ioWrite(address uint32, data uint8) {
	reg := uint8(address)

	switch {
	case reg == 0x00:
		g.joyp = data & 0x30
	case reg == 0x04:
		g.div = 0
	case reg == 0x05:
		g.tima = data
	case reg == 0x06:
		g.tma = data
	case reg == 0x07:
		g.tac = data & 0x07
	case reg == 0x0f:
		g.intFlags = data & 0x1f
	case reg >= 0x10 && reg <= 0x3f:
		g.APU.WriteRegister(reg, data)
	case reg == 0x46:
		// OAM DMA: 160 bytes; the CPU can only touch HRAM meanwhile,
		// modelled as a stall
		base := uint32(data) << 8
		for i := uint32(0); i < 0xa0; i++ {
			g.PPU.WriteOAM(uint16(i), g.busC.Read8(base+i))
		}
		g.CPU.Stall(160 * 4)
	case reg >= 0x40 && reg <= 0x4b || reg == 0x4f || reg >= 0x68 && reg <= 0x6b:
		g.PPU.WriteRegister(reg, data)
	case reg == 0x4d:
		g.speedArmed = data&0x01 == 0x01
	case reg == 0x51:
		g.hdmaSrc = g.hdmaSrc&0xff | uint16(data)<<8
	case reg == 0x52:
		g.hdmaSrc = g.hdmaSrc&0xff00 | uint16(data&0xf0)
	case reg == 0x53:
		g.hdmaDst = g.hdmaDst&0xff | uint16(data&0x1f)<<8
	case reg == 0x54:
		g.hdmaDst = g.hdmaDst&0xff00 | uint16(data&0xf0)
	case reg == 0x55:
		g.startHDMA(data)
	case reg == 0x70:
		if g.cgb {
			g.wramBank = int(data & 0x07)
		}
	}
}

// startHDMA begins a general purpose or hblank DMA. A general purpose
// transfer halts the CPU for the whole copy; the halt begins at the
// write, mid-instruction from the program's point of view.
func (g *GB) startHDMA(data uint8) {
	if !g.cgb {
		return
	}

	length := (int(data&0x7f) + 1) * 16

	if data&0x80 == 0 {
		if g.hdmaHBlank && g.hdmaLen > 0 {
			// writing with bit 7 clear cancels a running hblank DMA
			g.hdmaHBlank = false
			g.hdmaLen = 0
			return
		}

		// general purpose: copy now, stall the CPU two dots per byte
		for i := 0; i < length; i++ {
			g.PPU.WriteVRAM(0x8000|g.hdmaDst&0x1fff, g.busC.Read8(uint32(g.hdmaSrc)))
			g.hdmaSrc++
			g.hdmaDst++
		}
		g.CPU.Stall(scheduler.Ticks(int64(length) * 2))
		g.hdmaLen = 0
		return
	}

	g.hdmaLen = length
	g.hdmaHBlank = true
}

// StepHBlankDMA transfers one 16 byte block; called by the shell when
// the PPU enters hblank.
func (g *GB) StepHBlankDMA() {
	if !g.hdmaHBlank || g.hdmaLen == 0 {
		return
	}
	for i := 0; i < 16; i++ {
		g.PPU.WriteVRAM(0x8000|g.hdmaDst&0x1fff, g.busC.Read8(uint32(g.hdmaSrc)))
		g.hdmaSrc++
		g.hdmaDst++
	}
	g.hdmaLen -= 16
	g.CPU.Stall(32)
	if g.hdmaLen <= 0 {
		g.hdmaHBlank = false
	}
}

// SwitchSpeed performs the armed double speed switch. Called by the
// hosted decoder on STOP.
func (g *GB) SwitchSpeed() {
	if !g.cgb || !g.speedArmed {
		return
	}
	g.speedArmed = false
	g.doubleSpeed = !g.doubleSpeed
}

// DoubleSpeed reports the CGB double speed state.
func (g *GB) DoubleSpeed() bool {
	return g.doubleSpeed
}

// readJoypad builds the JOYP value from the select bits.
func (g *GB) readJoypad() uint8 {
	v := g.joyp | 0xc0 | 0x0f
	s := g.pads

	clearIf := func(pressed bool, mask uint8) {
		if pressed {
			v &^= mask
		}
	}

	if g.joyp&0x10 == 0 {
		clearIf(s.Pressed(input.Right), 0x01)
		clearIf(s.Pressed(input.Left), 0x02)
		clearIf(s.Pressed(input.Up), 0x04)
		clearIf(s.Pressed(input.Down), 0x08)
	}
	if g.joyp&0x20 == 0 {
		clearIf(s.Pressed(input.A), 0x01)
		clearIf(s.Pressed(input.B), 0x02)
		clearIf(s.Pressed(input.Select), 0x04)
		clearIf(s.Pressed(input.Start), 0x08)
	}

	return v
}

// Plumb attaches the host collaborators.
func (g *GB) Plumb(renderer display.Renderer, poller input.Poller) {
	g.renderer = renderer
	g.poller = poller
}

// presentFrame polls input and forwards the frame.
func (g *GB) presentFrame(f *display.Frame) {
	g.pads = g.poller.Poll(0)
	if g.renderer != nil {
		g.renderer.Present(f)
	}
}

// FrameTicks returns the length of one frame in dots.
func (g *GB) FrameTicks() int64 {
	return int64(dotsPerLine) * totalLines
}

// RunFrame advances the machine by one video frame.
func (g *GB) RunFrame() {
	g.frameTicks += g.FrameTicks()
	g.Drv.Slice(scheduler.Ticks(g.frameTicks))
	g.Mixer.Mix()
}

// End flushes cartridge persistence.
func (g *GB) End(persist func([]byte) error) error {
	return g.cart.End(persist)
}

// Reset performs a console reset: the SM83 returns to its power-on
// state. RAM contents survive.
func (g *GB) Reset() {
	g.CPU.Reset()
	g.intFlags = 0
}

// MixedAudio returns the mixed samples accumulated since the last call.
func (g *GB) MixedAudio() []float32 {
	return g.Mixer.Drain()
}

// ReportAudioQueue feeds the host audio queue depth back to the mixer.
func (g *GB) ReportAudioQueue(frames int) {
	g.Mixer.ReportQueue(frames)
}

// Snapshot captures the machine state.
func (g *GB) Snapshot() (*savestate.State, error) {
	st := savestate.NewState("GB")
	st.Add("wram", g.wram[:])
	st.Add("hram", g.hram[:])
	st.Add("ppu", g.PPU.Snapshot())
	st.Add("io", []byte{byte(g.wramBank), g.intFlags, g.intEnable, g.joyp, g.tima, g.tma, g.tac})
	if ms := g.cart.Mapper.Snapshot(); ms != nil {
		st.Add("mapper", ms)
	}
	if sram := g.cart.Mapper.SRAM(); sram != nil {
		st.Add("sram", sram)
	}
	return st, nil
}

// Restore applies a previously captured snapshot.
func (g *GB) Restore(st *savestate.State) error {
	wram, ok := st.Component("wram")
	if !ok || len(wram) != len(g.wram) {
		return fmt.Errorf("gb: bad wram in save state")
	}
	hram, ok := st.Component("hram")
	if !ok || len(hram) != len(g.hram) {
		return fmt.Errorf("gb: bad hram in save state")
	}
	ps, ok := st.Component("ppu")
	if !ok {
		return fmt.Errorf("gb: missing ppu in save state")
	}
	if err := g.PPU.Restore(ps); err != nil {
		return fmt.Errorf("gb: %w", err)
	}

	copy(g.wram[:], wram)
	copy(g.hram[:], hram)

	if io, ok := st.Component("io"); ok && len(io) == 7 {
		g.wramBank = int(io[0])
		g.intFlags = io[1]
		g.intEnable = io[2]
		g.joyp = io[3]
		g.tima = io[4]
		g.tma = io[5]
		g.tac = io[6]
	}
	if ms, ok := st.Component("mapper"); ok {
		if err := g.cart.Mapper.Restore(ms); err != nil {
			return fmt.Errorf("gb: %w", err)
		}
	}
	if cs, ok := st.Component("sram"); ok {
		if live := g.cart.Mapper.SRAM(); live != nil && len(live) == len(cs) {
			copy(live, cs)
		}
	}

	return nil
}
