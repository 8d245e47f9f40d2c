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

// Package nes is the NES system core: the 6502 (hosted externally), the
// PPU with its three-dots-per-CPU-cycle clock and the APU with the DMC's
// cycle stealing DMA.
package nes

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/cartridge/mappers"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/savestate"
)

// interrupt levels presented to the hosted 6502.
const (
	LevelNMI = 1
	LevelIRQ = 2
)

// NES is the NES system core.
type NES struct {
	Drv *scheduler.Driver
	CPU *scheduler.Host

	PPU *PPU
	APU *APU

	busC *memorymap.Map
	ram  [0x800]byte

	cart   *cartridge.Cartridge
	mapper mappers.NESMapper

	// controller shift registers
	shift  [2]uint8
	strobe bool
	pads   [2]input.State
	poller input.Poller

	Mixer *mix.Mixer

	pal      bool
	masterHz int64

	renderer   display.Renderer
	frameTicks int64

	// master ticks per CPU cycle and per PPU dot
	cpuDiv int64
	dotDiv int64
}

// NewNES is the preferred method of initialisation for the NES type.
func NewNES(cart *cartridge.Cartridge, cpuFactory func(bus.Bus8) scheduler.Decoder, hostRate int) (*NES, error) {
	mapper, ok := cart.Mapper.(mappers.NESMapper)
	if !ok {
		return nil, fmt.Errorf("nes: cartridge mapper %s is not an NES mapper", cart.Mapper.ID())
	}

	n := &NES{
		cart:   cart,
		mapper: mapper,
		pal:    cart.Region.PAL(),
		poller: input.NilPoller{},
	}

	if n.pal {
		n.masterHz = clocks.NESMasterPAL
		n.cpuDiv = clocks.NESCPUDividerPAL
		n.dotDiv = clocks.NESDotDividerPAL
	} else {
		n.masterHz = clocks.NESMasterNTSC
		n.cpuDiv = clocks.NESCPUDividerNTSC
		n.dotDiv = clocks.NESDotDividerNTSC
	}

	n.Drv = scheduler.NewDriver()
	n.PPU = NewPPU(mapper, n.pal)

	n.Mixer = mix.NewMixer(hostRate, hostRate/20)
	// the APU emits one sample per CPU cycle; the nearest resampler is
	// plenty at that rate
	apuRing := n.Mixer.AddSource("apu", float64(n.masterHz)/float64(n.cpuDiv), false, filters.Preset15kHz)
	n.APU = NewAPU(apuRing)

	n.buildBus()

	n.CPU = scheduler.NewHost("6502", cpuFactory(n.busC), n.Drv, scheduler.Ticks(n.cpuDiv))
	n.Drv.AddProcessor(n.CPU)

	n.PPU.Plumb(func() { n.CPU.Interrupt(LevelNMI) }, n.presentFrame)
	n.APU.Plumb(
		func(addr uint16) uint8 { return n.busC.Read8(uint32(addr)) },
		func(cycles int) { n.CPU.Stall(scheduler.Ticks(int64(cycles) * n.cpuDiv)) },
		func() { n.CPU.Interrupt(LevelIRQ) },
	)

	// the PPU and APU advance together, per scanline granularity
	lineTicks := scheduler.Ticks(ppuDotsPerLine) * scheduler.Ticks(n.dotDiv)
	n.Drv.AddDevice(&nesDevice{n: n, period: lineTicks})

	return n, nil
}

// nesDevice steps the PPU (in dots) and APU (in CPU cycles) from master
// clock deltas, carrying remainders.
type nesDevice struct {
	n      *NES
	period scheduler.Ticks
	last   scheduler.Ticks

	dotRem int64
	cpuRem int64
}

func (d *nesDevice) Label() string {
	return "ppu/apu"
}

func (d *nesDevice) NextDeadline() scheduler.Ticks {
	return d.last + d.period
}

func (d *nesDevice) Service(now scheduler.Ticks) {
	delta := int64(now - d.last)
	if delta <= 0 {
		return
	}
	d.last = now

	d.dotRem += delta
	dots := d.dotRem / d.n.dotDiv
	d.dotRem -= dots * d.n.dotDiv
	d.n.PPU.Step(int(dots))

	d.cpuRem += delta
	cycles := d.cpuRem / d.n.cpuDiv
	d.cpuRem -= cycles * d.n.cpuDiv
	d.n.APU.Step(int(cycles))

	// the mapper IRQ line is level sensitive
	if d.n.mapper.IRQPending() {
		d.n.CPU.Interrupt(LevelIRQ)
	}
}

// buildBus lays out the CPU address space.
func (n *NES) buildBus() {
	m := memorymap.NewMap("nes cpu bus")

	m.Add(memorymap.Area{
		Label: "RAM",
		Start: 0x0000,
		End:   0x1fff,
		Read8: func(address uint32) uint8 {
			return n.ram[address&0x7ff]
		},
		Write8: func(address uint32, data uint8) {
			n.ram[address&0x7ff] = data
		},
	})

	m.Add(memorymap.Area{
		Label: "PPU registers",
		Start: 0x2000,
		End:   0x3fff,
		Read8: func(address uint32) uint8 {
			return n.PPU.ReadRegister(int(address & 0x07))
		},
		Write8: func(address uint32, data uint8) {
			n.PPU.WriteRegister(int(address&0x07), data)
		},
	})

	m.Add(memorymap.Area{
		Label:  "APU and I/O",
		Start:  0x4000,
		End:    0x401f,
		Read8:  n.ioRead,
		Write8: n.ioWrite,
	})

	m.Add(memorymap.Area{
		Label: "cartridge",
		Start: 0x4020,
		End:   0xffff,
		Read8: func(address uint32) uint8 {
			return n.mapper.Read(address)
		},
		Write8: func(address uint32, data uint8) {
			n.mapper.Write(address, data)
		},
	})

	n.busC = m
}

// ioRead services $4000-$401F.
func (n *NES) ioRead(address uint32) uint8 {
	switch address {
	case 0x4015:
		return n.APU.ReadStatus()
	case 0x4016, 0x4017:
		port := int(address - 0x4016)
		v := n.shift[port]&0x01 | 0x40
		if !n.strobe {
			n.shift[port] = n.shift[port]>>1 | 0x80
		} else {
			n.reloadShift(port)
			v = n.shift[port]&0x01 | 0x40
		}
		return v
	}
	return 0
}

// ioWrite services $4000-$401F.
func (n *NES) ioWrite(address uint32, data uint8) {
	switch {
	case address == 0x4014:
		// OAM DMA: 256 bytes copied from CPU memory; the CPU is stalled
		// for 513 cycles (514 on an odd cycle, folded into 513 here)
		base := uint32(data) << 8
		for i := uint32(0); i < 256; i++ {
			n.PPU.OAMDMA(n.busC.Read8(base + i))
		}
		n.CPU.Stall(scheduler.Ticks(513 * n.cpuDiv))
	case address == 0x4016:
		n.strobe = data&0x01 == 0x01
		if n.strobe {
			n.reloadShift(0)
			n.reloadShift(1)
		}
	default:
		n.APU.WriteRegister(uint16(address), data)
	}
}

// reloadShift loads a controller shift register from the polled state.
func (n *NES) reloadShift(port int) {
	s := n.pads[port]
	var v uint8

	setIf := func(pressed bool, mask uint8) {
		if pressed {
			v |= mask
		}
	}

	setIf(s.Pressed(input.A), 0x01)
	setIf(s.Pressed(input.B), 0x02)
	setIf(s.Pressed(input.Select), 0x04)
	setIf(s.Pressed(input.Start), 0x08)
	setIf(s.Pressed(input.Up), 0x10)
	setIf(s.Pressed(input.Down), 0x20)
	setIf(s.Pressed(input.Left), 0x40)
	setIf(s.Pressed(input.Right), 0x80)

	n.shift[port] = v
}

// ReadBus reads the CPU bus directly. Used by the debugger and tests.
func (n *NES) ReadBus(address uint32) uint8 {
	return n.busC.Read8(address)
}

// WriteBus writes the CPU bus directly. Used by the debugger and tests.
func (n *NES) WriteBus(address uint32, data uint8) {
	n.busC.Write8(address, data)
}

// Plumb attaches the host collaborators.
func (n *NES) Plumb(renderer display.Renderer, poller input.Poller) {
	n.renderer = renderer
	n.poller = poller
}

// presentFrame polls input and forwards the frame.
func (n *NES) presentFrame(f *display.Frame) {
	n.pads[0] = n.poller.Poll(0)
	n.pads[1] = n.poller.Poll(1)
	if n.renderer != nil {
		n.renderer.Present(f)
	}
}

// FrameTicks returns the length of one frame in master clock ticks.
func (n *NES) FrameTicks() int64 {
	lines := int64(ppuLinesNTSC)
	if n.pal {
		lines = int64(ppuLinesPAL)
	}
	return int64(ppuDotsPerLine) * n.dotDiv * lines
}

// RunFrame advances the machine by one video frame.
func (n *NES) RunFrame() {
	n.frameTicks += n.FrameTicks()
	n.Drv.Slice(scheduler.Ticks(n.frameTicks))
	n.Mixer.Mix()
}

// End flushes cartridge persistence.
func (n *NES) End(persist func([]byte) error) error {
	return n.cart.End(persist)
}

// Reset performs a console reset: the 6502 returns to its power-on
// state. RAM contents survive.
func (n *NES) Reset() {
	n.CPU.Reset()
}

// MixedAudio returns the mixed samples accumulated since the last call.
func (n *NES) MixedAudio() []float32 {
	return n.Mixer.Drain()
}

// ReportAudioQueue feeds the host audio queue depth back to the mixer.
func (n *NES) ReportAudioQueue(frames int) {
	n.Mixer.ReportQueue(frames)
}

// Snapshot captures the machine state.
func (n *NES) Snapshot() (*savestate.State, error) {
	st := savestate.NewState("NES")
	st.Add("ram", n.ram[:])
	st.Add("ppu", n.PPU.Snapshot())
	if ms := n.mapper.Snapshot(); ms != nil {
		st.Add("mapper", ms)
	}
	if sram := n.mapper.SRAM(); sram != nil {
		st.Add("sram", sram)
	}
	return st, nil
}

// Restore applies a previously captured snapshot.
func (n *NES) Restore(st *savestate.State) error {
	ram, ok := st.Component("ram")
	if !ok || len(ram) != len(n.ram) {
		return fmt.Errorf("nes: bad ram in save state")
	}
	ps, ok := st.Component("ppu")
	if !ok {
		return fmt.Errorf("nes: missing ppu in save state")
	}
	if err := n.PPU.Restore(ps); err != nil {
		return fmt.Errorf("nes: %w", err)
	}

	copy(n.ram[:], ram)

	if ms, ok := st.Component("mapper"); ok {
		if err := n.mapper.Restore(ms); err != nil {
			return fmt.Errorf("nes: %w", err)
		}
	}
	if cs, ok := st.Component("sram"); ok {
		if live := n.mapper.SRAM(); live != nil && len(live) == len(cs) {
			copy(live, cs)
		}
	}

	return nil
}
