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

// Package sms is the Master System / Game Gear system core: a Z80, the
// mode 4 VDP and the SN76489 PSG.
package sms

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/genesis/psg"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/savestate"
)

// SMS is the Master System / Game Gear system core. The Z80 sees memory
// through the Map and I/O through the PortIn/PortOut functions, which
// the external decoder calls for the IN and OUT instructions.
type SMS struct {
	Drv *scheduler.Driver
	Z80 *scheduler.Host

	VDP *VDP
	PSG *psg.PSG

	busZ *memorymap.Map
	ram  [0x2000]byte

	cart *cartridge.Cartridge

	pads   [2]input.State
	poller input.Poller

	Mixer *mix.Mixer

	gg       bool
	pal      bool
	masterHz int64

	renderer   display.Renderer
	frameTicks int64
}

// NewSMS is the preferred method of initialisation for the SMS type.
func NewSMS(cart *cartridge.Cartridge, z80Factory func(bus.Bus8) scheduler.Decoder, hostRate int) *SMS {
	s := &SMS{
		cart:   cart,
		gg:     cart.System == cartridge.SystemGameGear,
		pal:    cart.Region.PAL(),
		poller: input.NilPoller{},
	}

	if s.pal {
		s.masterHz = clocks.SMSMasterPAL
	} else {
		s.masterHz = clocks.SMSMasterNTSC
	}

	s.Drv = scheduler.NewDriver()
	s.VDP = NewVDP(s.gg, s.pal)

	s.Mixer = mix.NewMixer(hostRate, hostRate/20)
	psgRing := s.Mixer.AddSource("psg", float64(s.masterHz)/(clocks.SMSPSGDivider), true, filters.Preset10kHz)
	s.PSG = psg.NewPSG(psgRing, clocks.SMSPSGDivider)

	s.buildBus()

	s.Z80 = scheduler.NewHost("Z80", z80Factory(s.busZ), s.Drv, clocks.SMSZ80Divider)
	s.Drv.AddProcessor(s.Z80)

	s.VDP.Plumb(func() {
		// the VDP interrupt is the Z80's maskable interrupt
		s.Z80.Interrupt(1)
	}, s.presentFrame)

	s.Drv.AddDevice(&stepperDevice{label: "vdp", period: vdpTicksPerLine, step: s.VDP.Step})
	s.Drv.AddDevice(&stepperDevice{label: "psg", period: vdpTicksPerLine, step: s.PSG.Step})

	return s
}

type stepperDevice struct {
	label  string
	period scheduler.Ticks
	last   scheduler.Ticks
	step   func(delta int64)
}

func (d *stepperDevice) Label() string {
	return d.label
}

func (d *stepperDevice) NextDeadline() scheduler.Ticks {
	return d.last + d.period
}

func (d *stepperDevice) Service(now scheduler.Ticks) {
	if now > d.last {
		d.step(int64(now - d.last))
		d.last = now
	}
}

// buildBus lays out the Z80 memory map.
func (s *SMS) buildBus() {
	m := memorymap.NewMap("sms bus")

	m.Add(memorymap.Area{
		Label: "cartridge",
		Start: 0x0000,
		End:   0xbfff,
		Read8: func(address uint32) uint8 {
			return s.cart.Mapper.Read(address)
		},
		Write8: func(address uint32, data uint8) {
			s.cart.Mapper.Write(address, data)
		},
	})

	m.Add(memorymap.Area{
		Label: "RAM",
		Start: 0xc000,
		End:   0xffff,
		Read8: func(address uint32) uint8 {
			return s.ram[address&0x1fff]
		},
		Write8: func(address uint32, data uint8) {
			s.ram[address&0x1fff] = data
			// the banking registers shadow the top of RAM
			if address >= 0xfffc {
				s.cart.Mapper.Write(address, data)
			}
		},
	})

	s.busZ = m
}

// PortIn services the Z80 IN instruction. Wired to the external decoder
// by the shell.
func (s *SMS) PortIn(port uint8) uint8 {
	switch {
	case port == 0x7e:
		return s.VDP.VCounter()
	case port == 0xbe:
		return s.VDP.ReadData()
	case port == 0xbf || port == 0xbd:
		return s.VDP.ReadStatus()
	case port == 0xdc || port == 0xc0:
		// joypad port A/B: active low
		return s.joyAB()
	case port == 0xdd || port == 0xc1:
		return s.joyBMisc()
	case port == 0x00 && s.gg:
		// GG start button
		if s.pads[0].Pressed(input.Start) {
			return 0x3f
		}
		return 0xbf
	}
	return 0xff
}

// PortOut services the Z80 OUT instruction.
func (s *SMS) PortOut(port uint8, data uint8) {
	switch {
	case port == 0x7e || port == 0x7f:
		s.PSG.Write(data)
	case port == 0xbe:
		s.VDP.WriteData(data)
	case port == 0xbf || port == 0xbd:
		s.VDP.WriteControl(data)
	case port == 0x06 && s.gg:
		s.PSG.SetStereo(data)
	}
}

// joyAB builds the port $DC value: player 1 plus the first half of
// player 2.
func (s *SMS) joyAB() uint8 {
	v := uint8(0xff)
	p1 := s.pads[0]
	p2 := s.pads[1]

	clearIf := func(pressed bool, mask uint8) {
		if pressed {
			v &^= mask
		}
	}

	clearIf(p1.Pressed(input.Up), 0x01)
	clearIf(p1.Pressed(input.Down), 0x02)
	clearIf(p1.Pressed(input.Left), 0x04)
	clearIf(p1.Pressed(input.Right), 0x08)
	clearIf(p1.Pressed(input.B), 0x10) // button 1
	clearIf(p1.Pressed(input.C), 0x20) // button 2
	clearIf(p2.Pressed(input.Up), 0x40)
	clearIf(p2.Pressed(input.Down), 0x80)

	return v
}

// joyBMisc builds the port $DD value: the rest of player 2.
func (s *SMS) joyBMisc() uint8 {
	v := uint8(0xff)
	p2 := s.pads[1]

	clearIf := func(pressed bool, mask uint8) {
		if pressed {
			v &^= mask
		}
	}

	clearIf(p2.Pressed(input.Left), 0x01)
	clearIf(p2.Pressed(input.Right), 0x02)
	clearIf(p2.Pressed(input.B), 0x04)
	clearIf(p2.Pressed(input.C), 0x08)

	return v
}

// Plumb attaches the host collaborators.
func (s *SMS) Plumb(renderer display.Renderer, poller input.Poller) {
	s.renderer = renderer
	s.poller = poller
}

// presentFrame polls input and forwards the frame.
func (s *SMS) presentFrame(f *display.Frame) {
	s.pads[0] = s.poller.Poll(0)
	s.pads[1] = s.poller.Poll(1)
	if s.renderer != nil {
		s.renderer.Present(f)
	}
}

// FrameTicks returns the length of one frame in master clock ticks.
func (s *SMS) FrameTicks() int64 {
	lines := int64(linesNTSC)
	if s.pal {
		lines = linesPAL
	}
	return vdpTicksPerLine * lines
}

// RunFrame advances the machine by one video frame.
func (s *SMS) RunFrame() {
	s.frameTicks += s.FrameTicks()
	s.Drv.Slice(scheduler.Ticks(s.frameTicks))
	s.Mixer.Mix()
}

// End flushes cartridge persistence.
func (s *SMS) End(persist func([]byte) error) error {
	return s.cart.End(persist)
}

// Reset performs a console reset: the Z80 returns to its power-on
// state. RAM contents survive.
func (s *SMS) Reset() {
	s.Z80.Reset()
}

// MixedAudio returns the mixed samples accumulated since the last call.
func (s *SMS) MixedAudio() []float32 {
	return s.Mixer.Drain()
}

// ReportAudioQueue feeds the host audio queue depth back to the mixer.
func (s *SMS) ReportAudioQueue(frames int) {
	s.Mixer.ReportQueue(frames)
}

// Snapshot captures the machine state.
func (s *SMS) Snapshot() (*savestate.State, error) {
	st := savestate.NewState("SMS")
	st.Add("ram", s.ram[:])
	st.Add("vdp", s.VDP.Snapshot())
	if ms := s.cart.Mapper.Snapshot(); ms != nil {
		st.Add("mapper", ms)
	}
	if sram := s.cart.Mapper.SRAM(); sram != nil {
		st.Add("sram", sram)
	}
	return st, nil
}

// Restore applies a previously captured snapshot.
func (s *SMS) Restore(st *savestate.State) error {
	ram, ok := st.Component("ram")
	if !ok || len(ram) != len(s.ram) {
		return fmt.Errorf("sms: bad ram in save state")
	}
	vs, ok := st.Component("vdp")
	if !ok {
		return fmt.Errorf("sms: missing vdp in save state")
	}
	if err := s.VDP.Restore(vs); err != nil {
		return fmt.Errorf("sms: %w", err)
	}

	copy(s.ram[:], ram)

	if ms, ok := st.Component("mapper"); ok {
		if err := s.cart.Mapper.Restore(ms); err != nil {
			return fmt.Errorf("sms: %w", err)
		}
	}
	if cs, ok := st.Component("sram"); ok {
		if live := s.cart.Mapper.SRAM(); live != nil && len(live) == len(cs) {
			copy(live, cs)
		}
	}

	return nil
}
