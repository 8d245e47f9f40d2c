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

// Package genesis is the Sega Genesis / Mega Drive system core: a 68000
// and a Z80 sharing a master clock, the VDP, the YM2612 and the PSG, tied
// together by the bus and arbitration logic this package owns.
package genesis

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/audio/filters"
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/cdrom"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/genesis/psg"
	"github.com/jetsetilly/gophergen/hardware/genesis/vdp"
	"github.com/jetsetilly/gophergen/hardware/genesis/ym2612"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/hardware/s32x"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/hardware/segacd"
	"github.com/jetsetilly/gophergen/savestate"
)

// sizes of the machine's RAMs.
const (
	WorkRAMSize  = 0x10000
	SoundRAMSize = 0x2000
)

// DecoderFactories supplies the externally implemented CPU instruction
// decoders. The factories receive the bus the decoder must execute over.
type DecoderFactories struct {
	M68K func(bus.Bus16) scheduler.Decoder
	Z80  func(bus.Bus8) scheduler.Decoder
}

// Genesis is the Sega Genesis system core.
type Genesis struct {
	Drv  *scheduler.Driver
	M68K *scheduler.Host
	Z80  *scheduler.Host

	VDP *vdp.VDP
	FM  *ym2612.YM2612
	PSG *psg.PSG

	busM *memorymap.Map
	busZ *memorymap.Map

	workRAM  [WorkRAMSize]byte
	soundRAM [SoundRAMSize]byte

	cart *cartridge.Cartridge

	// bus arbitration state. zBusReq is the 68000's request for the Z80
	// bus; zReset holds the Z80 (and the YM2612) in reset
	zBusReq bool
	zReset  bool

	// the Z80's window into 68000 address space, in 32KB units
	z80Bank uint32

	// controller ports
	pads    [2]input.GenesisPad
	padCtrl [2]uint8
	padData [2]uint8
	poller  input.Poller

	Mixer *mix.Mixer

	// expansions. nil unless attached
	S32X   *s32x.S32X
	SegaCD *segacd.SegaCD

	// scratch frame for 32X composition
	composed *display.Frame

	pal        bool
	masterHz   int64
	overclock  bool

	renderer display.Renderer

	// ticks consumed so far, and the length of a frame
	frameTicks int64
}

// NewGenesis is the preferred method of initialisation for the Genesis
// type.
func NewGenesis(cart *cartridge.Cartridge, factories DecoderFactories, hostRate int) *Genesis {
	g := &Genesis{
		cart:   cart,
		pal:    cart.Region.PAL(),
		poller: input.NilPoller{},
	}

	if g.pal {
		g.masterHz = clocks.GenesisMasterPAL
	} else {
		g.masterHz = clocks.GenesisMasterNTSC
	}

	g.Drv = scheduler.NewDriver()
	g.VDP = vdp.NewVDP(g.pal)

	g.Mixer = mix.NewMixer(hostRate, hostRate/20)
	fmRing := g.Mixer.AddSource("ym2612", float64(g.masterHz)/clocks.GenesisFMDivider, true, filters.PresetGenesisModel1)
	psgRing := g.Mixer.AddSource("psg", float64(g.masterHz)/clocks.GenesisPSGDivider, true, filters.PresetGenesisModel1)

	g.FM = ym2612.NewYM2612(fmRing)
	g.PSG = psg.NewPSG(psgRing, clocks.GenesisPSGDivider)

	g.buildM68KBus()
	g.buildZ80Bus()

	g.M68K = scheduler.NewHost("68K", factories.M68K(g.busM), g.Drv, clocks.GenesisM68KDivider)
	g.Z80 = scheduler.NewHost("Z80", factories.Z80(g.busZ), g.Drv, clocks.GenesisZ80Divider)
	g.Drv.AddProcessor(g.M68K)
	g.Drv.AddProcessor(g.Z80)

	// the Z80 is held in reset at power on, released by the 68000
	g.zReset = true
	g.Z80.Halt(true)

	g.VDP.Plumb(
		func(level int) { g.M68K.Interrupt(level) },
		func(ticks int64) { g.M68K.Stall(scheduler.Ticks(ticks)) },
		g.presentFrame,
	)
	g.VDP.SetDMAReader(func(address uint32) uint16 {
		return g.busM.Read16(address & 0xfffffe)
	})

	g.Drv.AddDevice(&stepperDevice{label: "vdp", period: vdp.TicksPerLine, step: g.VDP.Step})
	g.Drv.AddDevice(&stepperDevice{label: "audio", period: vdp.TicksPerLine, step: func(t int64) {
		g.FM.Step(t)
		g.PSG.Step(t)
	}})

	return g
}

// stepperDevice adapts a Step(delta) style component to the scheduler's
// Device interface with a fixed deadline period.
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

// Plumb attaches the host collaborators.
func (g *Genesis) Plumb(renderer display.Renderer, poller input.Poller) {
	g.renderer = renderer
	g.poller = poller
}

// AttachS32X mounts the 32X adapter: the twin SH-2s join the clock
// driver, the PWM unit joins the mixer, the compositor takes over frame
// presentation and the adapter registers appear in the 68000's I/O
// space.
func (g *Genesis) AttachS32X(master func(bus.Bus16) scheduler.Decoder, slave func(bus.Bus16) scheduler.Decoder) {
	pwmRing := g.Mixer.AddSource("pwm", 22050, true, filters.PresetNone)

	g.S32X = s32x.NewS32X(master, slave, g.Drv, pwmRing, g.masterHz, func(address uint32) uint8 {
		return g.cart.Mapper.Read(address)
	})
	g.composed = display.NewFrame(vdp.ActiveDotsH40, 224, 1.0)

	g.busM.Add(memorymap.Area{
		Label: "32X adapter",
		Start: 0xa15100,
		End:   0xa151ff,
		Read16: func(address uint32) uint16 {
			return g.S32X.MainRead(address)
		},
		Write16: func(address uint32, data uint16) {
			g.S32X.MainWrite(address, data)
			g.Drv.Sync(g.Drv.Now())
		},
	})

	g.Drv.AddDevice(&stepperDevice{label: "pwm", period: vdp.TicksPerLine, step: func(t int64) {
		g.S32X.PWM.Step(t)
		g.S32X.VDP.StepFill(int(t / 12))
	}})
}

// AttachSegaCD mounts the Sega CD expansion: the sub-68000 joins the
// clock driver and the PCM chip and CD-DA path join the mixer.
func (g *Genesis) AttachSegaCD(disc *cdrom.Disc, sub func(bus.Bus16) scheduler.Decoder) error {
	pcmRing := g.Mixer.AddSource("pcm", float64(clocks.SegaCDSub68KHz)/clocks.SegaCDPCMDivider, true, filters.PresetSegaCD)
	cddaRing := g.Mixer.AddSource("cd-da", 44100, true, filters.PresetSegaCD)

	scd, err := segacd.NewSegaCD(disc, sub, g.Drv, g.masterHz, pcmRing, cddaRing)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	g.SegaCD = scd

	// the gate array is visible from the main side too
	g.busM.Add(memorymap.Area{
		Label: "segacd gate array",
		Start: 0xa12000,
		End:   0xa121ff,
		Read8: func(address uint32) uint8 {
			return scd.GateRead(address & 0x1ff)
		},
		Write8: func(address uint32, data uint8) {
			scd.GateWrite(address&0x1ff, data)
			g.Drv.Sync(g.Drv.Now())
		},
	})

	g.Drv.AddDevice(&stepperDevice{label: "segacd", period: vdp.TicksPerLine, step: scd.StepDevices})

	return nil
}

// presentFrame polls the controllers and forwards the completed frame,
// composing the 32X output over it when the adapter is attached.
func (g *Genesis) presentFrame(f *display.Frame) {
	for i := range g.pads {
		g.pads[i].SetState(g.poller.Poll(i))
	}

	if g.S32X != nil && g.S32X.Enabled() {
		g.S32X.VDP.SetVBlank(true)
		g.S32X.VDP.Compose(f, g.composed)
		g.S32X.VDP.SetVBlank(false)
		f = g.composed
	}

	if g.renderer != nil {
		g.renderer.Present(f)
	}
}

// FrameTicks returns the length of one frame in master clock ticks.
func (g *Genesis) FrameTicks() int64 {
	lines := int64(vdp.LinesNTSC)
	if g.pal {
		lines = vdp.LinesPAL
	}
	return vdp.TicksPerLine * lines
}

// RunFrame advances the machine by one video frame.
func (g *Genesis) RunFrame() {
	g.frameTicks += g.FrameTicks()
	g.Drv.Slice(scheduler.Ticks(g.frameTicks))
	g.Mixer.Mix()
}

// Step advances the machine by one instruction of whichever processor is
// behind.
func (g *Genesis) Step() {
	g.Drv.Step()
}

// Reset performs a console reset: both processors and the YM2612 return
// to their power-on state; the PSG keeps its registers. RAM contents survive, as they do on
// the real machine.
func (g *Genesis) Reset() {
	g.M68K.Reset()
	g.Z80.Reset()
	g.FM.Reset()
	g.zBusReq = false
	g.zReset = true
	g.Z80.Halt(true)
	if g.S32X != nil {
		g.S32X.Master.Reset()
		g.S32X.Slave.Reset()
	}
	if g.SegaCD != nil {
		g.SegaCD.Sub.Reset()
	}
}

// MixedAudio returns the mixed samples accumulated since the last call.
func (g *Genesis) MixedAudio() []float32 {
	return g.Mixer.Drain()
}

// ReportAudioQueue feeds the host audio queue depth back to the mixer's
// dynamic resampling ratio.
func (g *Genesis) ReportAudioQueue(frames int) {
	g.Mixer.ReportQueue(frames)
}

// SetOverclock switches the 68000 between its real divider and a
// faster one. Some games drop fewer frames this way at the cost of
// timing accuracy.
func (g *Genesis) SetOverclock(set bool) {
	g.overclock = set
	if set {
		g.M68K.SetRatio(clocks.GenesisM68KDivider-2, 1)
	} else {
		g.M68K.SetRatio(clocks.GenesisM68KDivider, 1)
	}
}

// Snapshot captures the machine state. Decoder-internal register state
// belongs to the externally hosted decoders and is not part of the
// snapshot.
func (g *Genesis) Snapshot() (*savestate.State, error) {
	s := savestate.NewState("Genesis")
	s.Add("workram", g.workRAM[:])
	s.Add("soundram", g.soundRAM[:])
	s.Add("vdp", g.VDP.Snapshot())
	s.Add("arbiter", []byte{boolByte(g.zBusReq), boolByte(g.zReset), byte(g.z80Bank), byte(g.z80Bank >> 8)})
	if ms := g.cart.Mapper.Snapshot(); ms != nil {
		s.Add("mapper", ms)
	}
	if sram := g.cart.Mapper.SRAM(); sram != nil {
		s.Add("sram", sram)
	}
	return s, nil
}

// Restore applies a previously captured snapshot.
func (g *Genesis) Restore(s *savestate.State) error {
	wram, ok := s.Component("workram")
	if !ok || len(wram) != len(g.workRAM) {
		return fmt.Errorf("genesis: bad workram in save state")
	}
	sram, ok := s.Component("soundram")
	if !ok || len(sram) != len(g.soundRAM) {
		return fmt.Errorf("genesis: bad soundram in save state")
	}
	vs, ok := s.Component("vdp")
	if !ok {
		return fmt.Errorf("genesis: missing vdp in save state")
	}
	if err := g.VDP.Restore(vs); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}

	copy(g.workRAM[:], wram)
	copy(g.soundRAM[:], sram)

	if arb, ok := s.Component("arbiter"); ok && len(arb) == 4 {
		g.zBusReq = arb[0] != 0
		g.zReset = arb[1] != 0
		g.z80Bank = uint32(arb[2]) | uint32(arb[3])<<8
		g.Z80.Halt(g.zBusReq || g.zReset)
	}
	if ms, ok := s.Component("mapper"); ok {
		if err := g.cart.Mapper.Restore(ms); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	if cs, ok := s.Component("sram"); ok {
		if live := g.cart.Mapper.SRAM(); live != nil && len(live) == len(cs) {
			copy(live, cs)
		}
	}

	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// PAL returns true if the machine is running with PAL timing.
func (g *Genesis) PAL() bool {
	return g.pal
}

// Cartridge returns the loaded cartridge.
func (g *Genesis) Cartridge() *cartridge.Cartridge {
	return g.cart
}

// End flushes cartridge persistence. The persist argument receives the
// battery backed RAM contents.
func (g *Genesis) End(persist func([]byte) error) error {
	return g.cart.End(persist)
}
