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

package emulation

import (
	"testing"
	"time"

	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/savestate"
	"github.com/jetsetilly/gophergen/test"
	"github.com/jetsetilly/gophergen/userinput"
)

// fakeConsole implements hardware.Console, recording what the emulation
// loop asks of it.
type fakeConsole struct {
	frames    int
	resets    int
	restores  int
	overclock bool

	// the "machine state" captured by snapshots
	ram [16]byte
}

func (c *fakeConsole) Plumb(_ display.Renderer, _ input.Poller) {}
func (c *fakeConsole) RunFrame()                                { c.frames++ }
func (c *fakeConsole) FrameTicks() int64                        { return 1000 }
func (c *fakeConsole) Reset()                                   { c.resets++ }
func (c *fakeConsole) End(_ func([]byte) error) error           { return nil }
func (c *fakeConsole) SetOverclock(set bool)                    { c.overclock = set }

func (c *fakeConsole) MixedAudio() []float32 {
	return []float32{0.1, 0.1, 0.2, 0.2}
}

func (c *fakeConsole) ReportAudioQueue(_ int) {}

func (c *fakeConsole) Snapshot() (*savestate.State, error) {
	s := savestate.NewState("fake")
	s.Add("ram", c.ram[:])
	return s, nil
}

func (c *fakeConsole) Restore(s *savestate.State) error {
	if ram, ok := s.Component("ram"); ok {
		copy(c.ram[:], ram)
	}
	c.restores++
	return nil
}

// fakeSink records queued audio.
type fakeSink struct {
	queued int
	muted  bool
}

func (s *fakeSink) Queue(samples []float32) { s.queued += len(samples) }
func (s *fakeSink) QueuedFrames() int       { return s.queued / 2 }
func (s *fakeSink) Mute(set bool)           { s.muted = set }
func (s *fakeSink) End() error              { return nil }

// stubClock never sleeps.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time        { return c.now }
func (c *stubClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func newTestEmulation(t *testing.T) (*Emulation, *fakeConsole, *fakeSink) {
	t.Helper()

	console := &fakeConsole{}
	sink := &fakeSink{}

	emu := NewEmulation(console, 60)
	emu.SetClock(&stubClock{})
	emu.SetAudioSink(sink)
	emu.StateDir = t.TempDir()

	return emu, console, sink
}

func TestAudioPump(t *testing.T) {
	emu, _, sink := newTestEmulation(t)

	// every frame pushes the console's mixed output into the sink
	emu.frame()
	emu.frame()
	test.ExpectEquality(t, sink.queued, 8)
}

func TestResetCommand(t *testing.T) {
	emu, console, _ := newTestEmulation(t)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdReset})
	test.ExpectEquality(t, console.resets, 1)
}

func TestMuteCommand(t *testing.T) {
	emu, _, sink := newTestEmulation(t)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdMute})
	test.ExpectSuccess(t, sink.muted)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdMute})
	test.ExpectSuccess(t, !sink.muted)
}

func TestOverclockCommand(t *testing.T) {
	emu, console, _ := newTestEmulation(t)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdToggleOverclock})
	test.ExpectSuccess(t, console.overclock)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdToggleOverclock})
	test.ExpectSuccess(t, !console.overclock)
}

func TestSaveAndLoadState(t *testing.T) {
	emu, console, _ := newTestEmulation(t)

	console.ram[0] = 0x42
	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdSaveState, Slot: 3})

	// wreck the state and load it back
	console.ram[0] = 0
	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdLoadState, Slot: 3})

	test.ExpectEquality(t, console.restores, 1)
	test.ExpectEquality(t, console.ram[0], uint8(0x42))
}

func TestLoadMissingSlot(t *testing.T) {
	emu, console, _ := newTestEmulation(t)

	// loading an empty slot logs and leaves the session unchanged
	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdLoadState, Slot: 7})
	test.ExpectEquality(t, console.restores, 0)
}

func TestCycleSlot(t *testing.T) {
	emu, _, _ := newTestEmulation(t)

	test.ExpectEquality(t, emu.slot, 0)
	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdCycleSlot})
	test.ExpectEquality(t, emu.slot, 1)
}

func TestRewind(t *testing.T) {
	emu, console, _ := newTestEmulation(t)

	// run enough frames to bank a rewind snapshot
	console.ram[0] = 0x11
	for i := 0; i < rewindPeriod; i++ {
		emu.frame()
	}
	test.ExpectEquality(t, len(emu.rewind), 1)

	// change state, rewind, and the banked state returns
	console.ram[0] = 0x99
	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdRewind})

	test.ExpectEquality(t, console.restores, 1)
	test.ExpectEquality(t, console.ram[0], uint8(0x11))
	test.ExpectEquality(t, len(emu.rewind), 0)
}

func TestPauseAndStep(t *testing.T) {
	emu, _, _ := newTestEmulation(t)
	emu.state = Running

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdPause})
	test.ExpectEquality(t, emu.state, Paused)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdStepFrame})
	test.ExpectEquality(t, emu.state, Stepping)

	emu.service(userinput.Event{Kind: userinput.EventCommand, Command: userinput.CmdQuit})
	test.ExpectEquality(t, emu.state, Ending)
}
