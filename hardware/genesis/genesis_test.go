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

package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jetsetilly/gophergen/digest"
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/cdrom"
	"github.com/jetsetilly/gophergen/hardware/genesis"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/test"
)

// scripted68K is a stand-in for the externally implemented 68000
// decoder: it executes a list of thunks over the bus, one per
// instruction, then NOPs.
type scripted68K struct {
	bus    bus.Bus16
	script []func(bus.Bus16)
	step   int
}

func (d *scripted68K) Step() int {
	if d.step < len(d.script) {
		d.script[d.step](d.bus)
	}
	d.step++
	return 4
}

func (d *scripted68K) Interrupt(_ int) {}
func (d *scripted68K) Reset()          { d.step = 0 }

type nopZ80 struct{}

func (d *nopZ80) Step() int        { return 4 }
func (d *nopZ80) Interrupt(_ int)  {}
func (d *nopZ80) Reset()           {}

// newTestGenesis builds a Genesis around a scripted 68000.
func newTestGenesis(t *testing.T, script []func(bus.Bus16)) *genesis.Genesis {
	t.Helper()

	rom := make([]byte, 0x1000)
	copy(rom[0x100:], []byte("SEGA MEGA DRIVE "))
	copy(rom[0x1f0:], []byte("JUE"))
	cart, err := cartridge.Load("test.gen", rom, cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)

	var dec *scripted68K
	g := genesis.NewGenesis(cart, genesis.DecoderFactories{
		M68K: func(b bus.Bus16) scheduler.Decoder {
			dec = &scripted68K{bus: b, script: script}
			return dec
		},
		Z80: func(_ bus.Bus8) scheduler.Decoder {
			return &nopZ80{}
		},
	}, 48000)

	return g
}

func TestBusArbitration(t *testing.T) {
	var ackAfterRequest uint16 = 0xffff
	var ackAfterRelease uint16 = 0xffff

	script := []func(bus.Bus16){
		// release the Z80 from reset so the ack bit reflects busreq alone
		func(b bus.Bus16) { b.Write16(0xa11200, 0x0100) },
		// request the Z80 bus
		func(b bus.Bus16) { b.Write16(0xa11100, 0x0100) },
		// a read at any tick at or after the request sees the ack bit
		// (bit 8 clear)
		func(b bus.Bus16) { ackAfterRequest = b.Read16(0xa11100) },
		// release the bus
		func(b bus.Bus16) { b.Write16(0xa11100, 0x0000) },
		// the next read sees the bus returned to the Z80
		func(b bus.Bus16) { ackAfterRelease = b.Read16(0xa11100) },
	}

	g := newTestGenesis(t, script)
	g.Drv.Slice(1000)

	test.ExpectEquality(t, ackAfterRequest&0x0100, uint16(0x0000))
	test.ExpectEquality(t, ackAfterRelease&0x0100, uint16(0x0100))
}

func TestVersionRegister(t *testing.T) {
	var version uint8

	g := newTestGenesis(t, []func(bus.Bus16){
		func(b bus.Bus16) { version = b.Read8(0xa10001) },
	})
	g.Drv.Slice(100)

	// export machine, NTSC, no expansion
	test.ExpectEquality(t, version&0x40, uint8(0))
	test.ExpectEquality(t, version&0x80, uint8(0x80))
}

func TestWorkRAMMirror(t *testing.T) {
	var readback uint8

	g := newTestGenesis(t, []func(bus.Bus16){
		func(b bus.Bus16) { b.Write8(0xff0000, 0x5a) },
		// the same cell is visible through the mirror
		func(b bus.Bus16) { readback = b.Read8(0xe00000) },
	})
	g.Drv.Slice(1000)

	test.ExpectEquality(t, readback, uint8(0x5a))
}

func TestPALSelection(t *testing.T) {
	// scenario: a ROM with header region EUROPE selects PAL timing
	rom := make([]byte, 0x1000)
	copy(rom[0x100:], []byte("SEGA MEGA DRIVE "))
	copy(rom[0x1f0:], []byte("EUROPE"))
	cart, err := cartridge.Load("test.gen", rom, cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)

	g := genesis.NewGenesis(cart, genesis.DecoderFactories{
		M68K: func(b bus.Bus16) scheduler.Decoder { return &scripted68K{bus: b} },
		Z80:  func(_ bus.Bus8) scheduler.Decoder { return &nopZ80{} },
	}, 48000)

	test.ExpectSuccess(t, g.PAL())

	// PAL frame rate: 313 lines of 3420 ticks at 53.20MHz is 49.7Hz
	frames := float64(53203424) / float64(g.FrameTicks())
	test.ExpectApproximate(t, frames, 50.0, 0.01)
}

// frame determinism: two runs of the same scripted program produce
// identical frame digests.
func TestFrameDeterminism(t *testing.T) {
	script := []func(bus.Bus16){
		// enable the display and write a backdrop colour
		func(b bus.Bus16) { b.Write16(0xc00004, 0x8144) },
		func(b bus.Bus16) { b.Write16(0xc00004, 0x8707) },
		func(b bus.Bus16) { b.Write16(0xc00004, 0xc000) },
		func(b bus.Bus16) { b.Write16(0xc00004, 0x0000) },
		func(b bus.Bus16) { b.Write16(0xc00000, 0x0eee) },
	}

	run := func() string {
		g := newTestGenesis(t, script)
		dig := digest.NewVideo()
		g.Plumb(dig, input.NilPoller{})
		for i := 0; i < 5; i++ {
			g.RunFrame()
		}
		test.ExpectEquality(t, dig.FrameNum(), 5)
		return dig.Hash()
	}

	a := run()
	b := run()
	test.ExpectEquality(t, a, b)
	test.ExpectSuccess(t, a != "")
}

// the mixed audio stream is produced even when nothing is keyed on: the
// FM and PSG push silence at their native rates and the mixer carries
// it to the host rate.
func TestMixedAudioOutput(t *testing.T) {
	g := newTestGenesis(t, nil)
	g.RunFrame()

	out := g.MixedAudio()
	test.ExpectSuccess(t, len(out) > 0)
	test.ExpectEquality(t, len(out)%2, 0)

	// one NTSC frame at 48kHz is roughly 800 stereo frames
	test.ExpectApproximate(t, len(out)/2, 798, 0.1)

	// a second drain without a new frame returns nothing
	test.ExpectEquality(t, len(g.MixedAudio()), 0)
}

// the dynamic resampling ratio follows the reported host queue depth.
func TestAudioQueueSteering(t *testing.T) {
	g := newTestGenesis(t, nil)

	g.ReportAudioQueue(48000) // far above the target
	test.ExpectSuccess(t, g.Mixer.Trim() > 0)

	g.ReportAudioQueue(0)
	test.ExpectSuccess(t, g.Mixer.Trim() < 0)
}

func TestSnapshotRestore(t *testing.T) {
	script := []func(bus.Bus16){
		func(b bus.Bus16) { b.Write8(0xff1234, 0x77) },
	}

	g := newTestGenesis(t, script)
	g.Drv.Slice(1000)

	s, err := g.Snapshot()
	test.ExpectSuccess(t, err)

	// restore into a fresh machine: the work RAM write is visible on
	// its bus
	var readback uint8
	g2 := newTestGenesis(t, []func(bus.Bus16){
		func(b bus.Bus16) { readback = b.Read8(0xff1234) },
	})
	test.ExpectSuccess(t, g2.Restore(s))
	g2.Drv.Slice(1000)
	test.ExpectEquality(t, readback, uint8(0x77))

	// snapshot -> restore -> snapshot is byte identical
	s2, err := g2.Snapshot()
	test.ExpectSuccess(t, err)

	b1, err := s.Bytes()
	test.ExpectSuccess(t, err)
	b2, err := s2.Bytes()
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, string(b1) == string(b2))
}

type nopSH2 struct{}

func (d *nopSH2) Step() int       { return 2 }
func (d *nopSH2) Interrupt(_ int) {}
func (d *nopSH2) Reset()          {}

func TestAttachS32X(t *testing.T) {
	enable32X := []func(bus.Bus16){
		// enable the adapter: the SH-2s come out of reset
		func(b bus.Bus16) { b.Write16(0xa15100, 0x0001) },
		// a comm word written by the 68000 is visible to the SH-2s
		func(b bus.Bus16) { b.Write16(0xa15120, 0xbeef) },
	}

	g := newTestGenesis(t, enable32X)
	g.AttachS32X(
		func(_ bus.Bus16) scheduler.Decoder { return &nopSH2{} },
		func(_ bus.Bus16) scheduler.Decoder { return &nopSH2{} },
	)

	g.RunFrame()

	test.ExpectSuccess(t, g.S32X.Enabled())
	test.ExpectEquality(t, g.S32X.Comm(0), uint16(0xbeef))

	// the SH-2s have been running since the enable
	test.ExpectSuccess(t, g.S32X.Master.Committed() > 0)
}

func TestAttachSegaCD(t *testing.T) {
	dir := t.TempDir()

	data := make([]byte, 100*2352)
	if err := os.WriteFile(filepath.Join(dir, "track01.bin"), data, 0644); err != nil {
		t.Fatal(err)
	}
	cue := "FILE \"track01.bin\" BINARY\n  TRACK 01 MODE1/2352\n    INDEX 01 00:00:00\n"
	cuePath := filepath.Join(dir, "disc.cue")
	if err := os.WriteFile(cuePath, []byte(cue), 0644); err != nil {
		t.Fatal(err)
	}

	disc, err := cdrom.Open(cuePath)
	test.ExpectSuccess(t, err)
	defer disc.Close()

	g := newTestGenesis(t, nil)
	test.ExpectSuccess(t, g.AttachSegaCD(disc, func(_ bus.Bus16) scheduler.Decoder {
		return &scripted68K{}
	}))

	// the drive delivers the first sector only after the seek floor
	// passes: several frames later
	g.SegaCD.PlayFrom(10)
	for i := 0; i < 6; i++ {
		g.RunFrame()
	}

	lba, sector, ok := g.SegaCD.DataSector()
	test.ExpectSuccess(t, ok)
	test.ExpectSuccess(t, lba >= 10)
	test.ExpectEquality(t, len(sector), cdrom.SectorSize)
}
