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

// Package emulation runs a console in real time: the loop that paces
// frames against the host clock, pumps the mixed audio into the host
// sink, services host commands between slices and keeps the rewind
// ring topped up.
//
// The loop runs on one goroutine. In-flight frames always complete;
// state is only ever observed at frame boundaries, which is also where
// save states are taken and restored.
package emulation

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jetsetilly/gophergen/hardware"
	"github.com/jetsetilly/gophergen/hostaudio"
	"github.com/jetsetilly/gophergen/logger"
	"github.com/jetsetilly/gophergen/savestate"
	"github.com/jetsetilly/gophergen/userinput"
)

// State indicates the emulation's state.
type State int

// List of possible emulation states.
const (
	Initialising State = iota
	Running
	Paused
	Stepping
	Rewinding
	Ending
)

// Pacing selects how the loop matches emulated time to real time.
type Pacing int

// List of valid Pacing values.
const (
	// sleep against the host monotonic clock to match the console's
	// frame rate
	PaceClock Pacing = iota

	// rely on the host audio queue: the dynamic resampler keeps the
	// queue level and the audio driver's cadence paces the loop
	PaceAudio

	// run flat out
	PaceUnlimited
)

// the number of save state slots addressable by the slot commands.
const numSlots = 10

// rewind snapshots are taken every rewindPeriod frames and the ring
// holds rewindDepth of them: about half a minute of history.
const (
	rewindPeriod = 30
	rewindDepth  = 60
)

// Clock is the monotonic host clock used for frame pacing. Stubbed by
// tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// hostClock is the real host clock.
type hostClock struct{}

func (hostClock) Now() time.Time        { return time.Now() }
func (hostClock) Sleep(d time.Duration) { time.Sleep(d) }

// Emulation drives one console.
type Emulation struct {
	console hardware.Console

	state  State
	pacing Pacing

	// nominal frame duration for clock pacing
	frameDuration time.Duration

	// host events arrive through this channel and are serviced between
	// frames
	Events chan userinput.Event

	clock Clock

	// the host audio sink. mixed samples are pushed after every frame
	// and the sink's queue depth steers the dynamic resampling ratio
	sink hostaudio.Sink

	// where save state files live; the empty string disables the save
	// and load commands
	StateDir string
	slot     int

	// rewind ring of recent snapshots
	rewind     []*savestate.State
	frameCount int

	// deadline for the next frame under clock pacing
	nextFrame time.Time

	fastForward bool
	overclock   bool
	muted       bool

	quit bool
}

// NewEmulation is the preferred method of initialisation for the
// Emulation type. The frameRate argument is the console's nominal rate
// (50 or 60ish Hz).
func NewEmulation(console hardware.Console, frameRate float64) *Emulation {
	return &Emulation{
		console:       console,
		state:         Initialising,
		pacing:        PaceClock,
		frameDuration: time.Duration(float64(time.Second) / frameRate),
		Events:        make(chan userinput.Event, 64),
		clock:         hostClock{},
		sink:          hostaudio.NilSink{},
		StateDir:      ".",
	}
}

// SetClock replaces the host clock. Tests use this to run without real
// sleeps.
func (emu *Emulation) SetClock(c Clock) {
	emu.clock = c
}

// SetAudioSink attaches the host audio sink.
func (emu *Emulation) SetAudioSink(sink hostaudio.Sink) {
	if sink == nil {
		sink = hostaudio.NilSink{}
	}
	emu.sink = sink
}

// SetPacing selects the pacing mode.
func (emu *Emulation) SetPacing(p Pacing) {
	emu.pacing = p
}

// State returns the emulation state.
func (emu *Emulation) State() State {
	return emu.state
}

// Run enters the emulation loop and blocks until a quit command.
func (emu *Emulation) Run() error {
	emu.state = Running
	emu.nextFrame = emu.clock.Now()

	for !emu.quit {
		emu.serviceEvents()

		switch emu.state {
		case Running:
			emu.frame()
			emu.pace()
		case Stepping:
			emu.frame()
			emu.state = Paused
		case Paused:
			// don't spin while paused
			emu.clock.Sleep(5 * time.Millisecond)
		case Ending:
			emu.quit = true
		}
	}

	emu.state = Ending
	return nil
}

// frame runs one frame and pumps its audio to the sink.
func (emu *Emulation) frame() {
	emu.console.RunFrame()

	emu.console.ReportAudioQueue(emu.sink.QueuedFrames())
	emu.sink.Queue(emu.console.MixedAudio())

	// keep the rewind ring topped up
	emu.frameCount++
	if emu.frameCount%rewindPeriod == 0 {
		if s, err := emu.console.Snapshot(); err == nil {
			emu.rewind = append(emu.rewind, s)
			if len(emu.rewind) > rewindDepth {
				emu.rewind = emu.rewind[1:]
			}
		}
	}
}

// pace waits out the remainder of the frame under clock pacing.
func (emu *Emulation) pace() {
	if emu.fastForward || emu.pacing == PaceUnlimited {
		return
	}
	if emu.pacing == PaceAudio {
		// the audio sink's queue depth paces through the resampler; no
		// sleep needed here
		return
	}

	emu.nextFrame = emu.nextFrame.Add(emu.frameDuration)
	d := emu.nextFrame.Sub(emu.clock.Now())
	if d > 0 {
		emu.clock.Sleep(d)
	} else if d < -emu.frameDuration*4 {
		// too far behind to catch up; drop the debt
		emu.nextFrame = emu.clock.Now()
	}
}

// serviceEvents drains the host event channel. Called between frames
// only: a command never lands mid-slice.
func (emu *Emulation) serviceEvents() {
	for {
		select {
		case ev := <-emu.Events:
			emu.service(ev)
		default:
			return
		}
	}
}

func (emu *Emulation) service(ev userinput.Event) {
	if ev.Kind != userinput.EventCommand {
		return
	}

	switch ev.Command {
	case userinput.CmdQuit, userinput.CmdPowerOff:
		emu.state = Ending

	case userinput.CmdReset:
		emu.console.Reset()

	case userinput.CmdPause:
		if emu.state == Paused {
			emu.state = Running
			emu.nextFrame = emu.clock.Now()
		} else {
			emu.state = Paused
		}

	case userinput.CmdStepFrame:
		emu.state = Stepping

	case userinput.CmdFastForward:
		emu.fastForward = !emu.fastForward

	case userinput.CmdMute:
		emu.muted = !emu.muted
		emu.sink.Mute(emu.muted)

	case userinput.CmdToggleOverclock:
		if oc, ok := emu.console.(hardware.Overclocker); ok {
			emu.overclock = !emu.overclock
			oc.SetOverclock(emu.overclock)
		} else {
			logger.Log(logger.Allow, "emulation", "console has no overclock setting")
		}

	case userinput.CmdCycleSlot:
		emu.slot = (emu.slot + 1) % numSlots
		logger.Logf(logger.Allow, "emulation", "save slot %d", emu.slot)

	case userinput.CmdSaveState:
		emu.saveState(ev.Slot)

	case userinput.CmdLoadState:
		emu.loadState(ev.Slot)

	case userinput.CmdRewind:
		emu.rewindStep()

	default:
		logger.Logf(logger.Allow, "emulation", "unhandled command: %v", ev.Command)
	}
}

// slotPath names the save state file for a slot. A slot of -1 means the
// current slot.
func (emu *Emulation) slotPath(slot int) string {
	if slot < 0 {
		slot = emu.slot
	}
	return filepath.Join(emu.StateDir, fmt.Sprintf("slot%d.state", slot%numSlots))
}

// saveState captures the console and writes it to the slot file.
func (emu *Emulation) saveState(slot int) {
	if emu.StateDir == "" {
		return
	}

	s, err := emu.console.Snapshot()
	if err != nil {
		logger.Log(logger.Allow, "emulation", err)
		return
	}

	f, err := os.Create(emu.slotPath(slot))
	if err != nil {
		logger.Log(logger.Allow, "emulation", err)
		return
	}
	defer f.Close()

	if err := s.Write(f); err != nil {
		logger.Log(logger.Allow, "emulation", err)
		return
	}

	logger.Logf(logger.Allow, "emulation", "saved %s", emu.slotPath(slot))
}

// loadState restores the console from the slot file. A refused load (a
// version or system mismatch, a missing file) leaves the session
// unchanged.
func (emu *Emulation) loadState(slot int) {
	if emu.StateDir == "" {
		return
	}

	f, err := os.Open(emu.slotPath(slot))
	if err != nil {
		logger.Log(logger.Allow, "emulation", err)
		return
	}
	defer f.Close()

	s, err := savestate.Read(f, "")
	if err != nil {
		logger.Log(logger.Allow, "emulation", err)
		return
	}

	if err := emu.console.Restore(s); err != nil {
		logger.Log(logger.Allow, "emulation", err)
		return
	}

	logger.Logf(logger.Allow, "emulation", "loaded %s", emu.slotPath(slot))
}

// rewindStep pops the most recent rewind snapshot and restores it.
func (emu *Emulation) rewindStep() {
	if len(emu.rewind) == 0 {
		logger.Log(logger.Allow, "emulation", "nothing to rewind to")
		return
	}

	s := emu.rewind[len(emu.rewind)-1]
	emu.rewind = emu.rewind[:len(emu.rewind)-1]

	emu.state = Rewinding
	if err := emu.console.Restore(s); err != nil {
		logger.Log(logger.Allow, "emulation", err)
	}
	emu.state = Running
}
