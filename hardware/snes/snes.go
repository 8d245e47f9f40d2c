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

package snes

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

// interrupt levels presented to the hosted 65C816.
const (
	LevelNMI = 1
	LevelIRQ = 2
)

// SNES is the Super Nintendo system core. The 65C816 and the SPC700 run
// as separate hosts on the one clock driver; the four APU I/O ports are
// the shared state between them and each write raises a sync point.
type SNES struct {
	Drv *scheduler.Driver
	CPU *scheduler.Host
	APU *scheduler.Host

	PPU *PPU
	DSP *DSP

	busC *memorymap.Map
	busA *memorymap.Map

	wram [0x20000]byte

	// the four APU communication ports, each direction
	portsToAPU [4]uint8
	portsToCPU [4]uint8

	cart   *cartridge.Cartridge
	mapper *mappers.SNESROM

	// NMITIMEN and the VTIME registers
	nmitimen uint8
	vtime    int

	// the DSP register address latch ($F2)
	dspAddr uint8

	pads   [2]input.State
	poller input.Poller

	Mixer *mix.Mixer

	pal      bool
	masterHz int64

	renderer   display.Renderer
	frameTicks int64
}

// DecoderFactories supplies the externally implemented decoders.
type DecoderFactories struct {
	CPU    func(bus.Bus8) scheduler.Decoder
	SPC700 func(bus.Bus8) scheduler.Decoder
}

// NewSNES is the preferred method of initialisation for the SNES type.
func NewSNES(cart *cartridge.Cartridge, factories DecoderFactories, hostRate int) (*SNES, error) {
	mapper, ok := cart.Mapper.(*mappers.SNESROM)
	if !ok {
		return nil, fmt.Errorf("snes: cartridge mapper %s is not a SNES mapper", cart.Mapper.ID())
	}

	s := &SNES{
		cart:   cart,
		mapper: mapper,
		pal:    cart.Region.PAL(),
		poller: input.NilPoller{},
	}

	if s.pal {
		s.masterHz = clocks.SNESMasterPAL
	} else {
		s.masterHz = clocks.SNESMasterNTSC
	}

	s.Drv = scheduler.NewDriver()
	s.PPU = NewPPU(s.pal)

	s.Mixer = mix.NewMixer(hostRate, hostRate/20)
	dspRing := s.Mixer.AddSource("s-dsp", clocks.SNESDSPRateHz, true, filters.PresetNone)
	s.DSP = NewDSP(dspRing, s.masterHz/clocks.SNESDSPRateHz)

	s.buildCPUBus()
	s.buildAPUBus()

	// the 65C816's average cycle is 8 master clocks (slow region); fast
	// region access timing is the decoder's business via its reported
	// cycle counts
	s.CPU = scheduler.NewHost("65C816", factories.CPU(s.busC), s.Drv, clocks.SNESCycleSlow)

	// SPC700 cycles against its own 1.024MHz effective clock, expressed
	// against the system master clock
	spcRatio := scheduler.Ticks(s.masterHz / (clocks.SNESAPUCrystal / 24))
	s.APU = scheduler.NewHost("SPC700", factories.SPC700(s.busA), s.Drv, spcRatio)

	s.Drv.AddProcessor(s.CPU)
	s.Drv.AddProcessor(s.APU)

	s.PPU.Plumb(
		func() { s.CPU.Interrupt(LevelNMI) },
		func() { s.CPU.Interrupt(LevelIRQ) },
		s.presentFrame,
	)

	dotTicks := scheduler.Ticks(clocks.SNESDotDivider)
	s.Drv.AddDevice(&snesDevice{s: s, period: scheduler.Ticks(ppuDotsPerLine) * dotTicks})

	return s, nil
}

// snesDevice steps the PPU and DSP from master clock deltas.
type snesDevice struct {
	s      *SNES
	period scheduler.Ticks
	last   scheduler.Ticks
	dotRem int64
}

func (d *snesDevice) Label() string {
	return "ppu/dsp"
}

func (d *snesDevice) NextDeadline() scheduler.Ticks {
	return d.last + d.period
}

func (d *snesDevice) Service(now scheduler.Ticks) {
	delta := int64(now - d.last)
	if delta <= 0 {
		return
	}
	d.last = now

	d.dotRem += delta
	dots := d.dotRem / clocks.SNESDotDivider
	d.dotRem -= dots * clocks.SNESDotDivider
	d.s.PPU.Step(int(dots))

	d.s.DSP.Step(delta)
}

// buildCPUBus lays out the 65C816 address space (banks folded through
// the mapper).
func (s *SNES) buildCPUBus() {
	m := memorymap.NewMap("snes cpu bus")

	// the system area of banks $00-$3F and $80-$BF: WRAM mirror, PPU
	// and CPU registers. decoded by offset within the bank
	m.Add(memorymap.Area{
		Label: "system",
		Start: 0x000000,
		End:   0xffffff,
		Read8: func(address uint32) uint8 {
			bank := address >> 16 & 0xff
			offset := address & 0xffff

			switch {
			case bank == 0x7e || bank == 0x7f:
				return s.wram[(bank-0x7e)<<16|offset]
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset < 0x2000:
				return s.wram[offset]
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset >= 0x2140 && offset < 0x2180:
				return s.portsToCPU[offset&0x03]
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset >= 0x4200 && offset < 0x4400:
				return s.cpuRegRead(offset)
			default:
				return s.mapper.Read(address)
			}
		},
		Write8: func(address uint32, data uint8) {
			bank := address >> 16 & 0xff
			offset := address & 0xffff

			switch {
			case bank == 0x7e || bank == 0x7f:
				s.wram[(bank-0x7e)<<16|offset] = data
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset < 0x2000:
				s.wram[offset] = data
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset >= 0x2100 && offset < 0x2140:
				s.PPU.WriteRegister(int(offset&0x3f), data)
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset >= 0x2140 && offset < 0x2180:
				s.portsToAPU[offset&0x03] = data
				s.Drv.Sync(s.Drv.Now())
			case (bank < 0x40 || bank >= 0x80 && bank < 0xc0) && offset >= 0x4200 && offset < 0x4400:
				s.cpuRegWrite(offset, data)
			default:
				s.mapper.Write(address, data)
			}
		},
	})

	s.busC = m
}

// cpuRegRead services the $42xx/$43xx register block.
func (s *SNES) cpuRegRead(offset uint32) uint8 {
	switch offset {
	case 0x4210:
		// RDNMI: reports the current vblank state; reading does not clear it
		if s.PPU.InVBlank() {
			return 0xc2
		}
		return 0x42
	case 0x4212:
		var v uint8
		if s.PPU.InVBlank() {
			v |= 0x80
		}
		return v
	}
	return 0
}

// cpuRegWrite services the $42xx/$43xx register block.
func (s *SNES) cpuRegWrite(offset uint32, data uint8) {
	switch offset {
	case 0x4200:
		s.nmitimen = data
		s.PPU.SetNMIEnabled(data&0x80 == 0x80)
		s.PPU.SetVTIME(s.vtime, data&0x20 == 0x20)
	case 0x4209:
		s.vtime = s.vtime&0x100 | int(data)
		s.PPU.SetVTIME(s.vtime, s.nmitimen&0x20 == 0x20)
	case 0x420a:
		s.vtime = s.vtime&0xff | int(data&0x01)<<8
		s.PPU.SetVTIME(s.vtime, s.nmitimen&0x20 == 0x20)
	}
}

// buildAPUBus lays out the SPC700 address space.
func (s *SNES) buildAPUBus() {
	m := memorymap.NewMap("snes apu bus")

	m.Add(memorymap.Area{
		Label: "audio RAM",
		Start: 0x0000,
		End:   0xffff,
		Read8: func(address uint32) uint8 {
			switch {
			case address >= 0xf4 && address <= 0xf7:
				return s.portsToAPU[address&0x03]
			case address == 0xf3:
				return s.DSP.ReadRegister(s.dspAddr)
			default:
				return s.DSP.ReadRAM(uint16(address))
			}
		},
		Write8: func(address uint32, data uint8) {
			switch {
			case address >= 0xf4 && address <= 0xf7:
				s.portsToCPU[address&0x03] = data
				s.Drv.Sync(s.Drv.Now())
			case address == 0xf2:
				s.dspAddr = data
			case address == 0xf3:
				s.DSP.WriteRegister(s.dspAddr, data)
			default:
				s.DSP.WriteRAM(uint16(address), data)
			}
		},
	})

	s.busA = m
}

// Plumb attaches the host collaborators.
func (s *SNES) Plumb(renderer display.Renderer, poller input.Poller) {
	s.renderer = renderer
	s.poller = poller
}

// presentFrame polls input and forwards the frame.
func (s *SNES) presentFrame(f *display.Frame) {
	s.pads[0] = s.poller.Poll(0)
	s.pads[1] = s.poller.Poll(1)
	if s.renderer != nil {
		s.renderer.Present(f)
	}
}

// FrameTicks returns the length of one frame in master clock ticks.
func (s *SNES) FrameTicks() int64 {
	lines := int64(ppuLinesNTSC)
	if s.pal {
		lines = int64(ppuLinesPAL)
	}
	return int64(ppuDotsPerLine) * clocks.SNESDotDivider * lines
}

// RunFrame advances the machine by one video frame.
func (s *SNES) RunFrame() {
	s.frameTicks += s.FrameTicks()
	s.Drv.Slice(scheduler.Ticks(s.frameTicks))
	s.Mixer.Mix()
}

// End flushes cartridge persistence.
func (s *SNES) End(persist func([]byte) error) error {
	return s.cart.End(persist)
}

// Reset performs a console reset: both processors return to their
// power-on state. RAM contents survive.
func (s *SNES) Reset() {
	s.CPU.Reset()
	s.APU.Reset()
}

// MixedAudio returns the mixed samples accumulated since the last call.
func (s *SNES) MixedAudio() []float32 {
	return s.Mixer.Drain()
}

// ReportAudioQueue feeds the host audio queue depth back to the mixer.
func (s *SNES) ReportAudioQueue(frames int) {
	s.Mixer.ReportQueue(frames)
}

// Snapshot captures the machine state.
func (s *SNES) Snapshot() (*savestate.State, error) {
	st := savestate.NewState("SNES")
	st.Add("wram", s.wram[:])
	st.Add("ppu", s.PPU.Snapshot())
	st.Add("ports", append(append([]byte{}, s.portsToAPU[:]...), s.portsToCPU[:]...))
	if ms := s.mapper.Snapshot(); ms != nil {
		st.Add("mapper", ms)
	}
	if sram := s.mapper.SRAM(); sram != nil {
		st.Add("sram", sram)
	}
	return st, nil
}

// Restore applies a previously captured snapshot.
func (s *SNES) Restore(st *savestate.State) error {
	wram, ok := st.Component("wram")
	if !ok || len(wram) != len(s.wram) {
		return fmt.Errorf("snes: bad wram in save state")
	}
	ps, ok := st.Component("ppu")
	if !ok {
		return fmt.Errorf("snes: missing ppu in save state")
	}
	if err := s.PPU.Restore(ps); err != nil {
		return fmt.Errorf("snes: %w", err)
	}

	copy(s.wram[:], wram)

	if ports, ok := st.Component("ports"); ok && len(ports) == 8 {
		copy(s.portsToAPU[:], ports[:4])
		copy(s.portsToCPU[:], ports[4:])
	}
	if ms, ok := st.Component("mapper"); ok {
		if err := s.mapper.Restore(ms); err != nil {
			return fmt.Errorf("snes: %w", err)
		}
	}
	if cs, ok := st.Component("sram"); ok {
		if live := s.mapper.SRAM(); live != nil && len(live) == len(cs) {
			copy(live, cs)
		}
	}

	return nil
}
