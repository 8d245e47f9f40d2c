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

// Package hardware collects the emulated machines. Each system core
// (genesis, sms, nes, snes, gb, with the segacd and s32x expansions)
// implements the Console interface; the shell drives whichever one the
// loaded cartridge selected.
package hardware

import (
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/display"
	"github.com/jetsetilly/gophergen/hardware/input"
	"github.com/jetsetilly/gophergen/savestate"
)

// AudioProvider is the audio half of the Console interface: the mixed
// output stream and the queue depth feedback that drives the dynamic
// resampling ratio.
type AudioProvider interface {
	// MixedAudio returns the mixed samples accumulated since the last
	// call, interleaved stereo at the host rate
	MixedAudio() []float32

	// ReportAudioQueue tells the mixer the host queue depth in frames
	ReportAudioQueue(frames int)
}

// Console is the interface every system core implements.
type Console interface {
	AudioProvider

	// Plumb attaches the host collaborators: the frame sink and the
	// controller poller
	Plumb(renderer display.Renderer, poller input.Poller)

	// Reset performs a console reset. RAM contents survive, as they do
	// on the real machines
	Reset()

	// RunFrame advances the machine by one video frame
	RunFrame()

	// FrameTicks is the length of one frame in the machine's master
	// clock ticks
	FrameTicks() int64

	// Snapshot captures the machine state; Restore applies a previous
	// capture. Decoder-internal register state belongs to the external
	// decoders and is not part of a snapshot
	Snapshot() (*savestate.State, error)
	Restore(state *savestate.State) error

	// End flushes battery backed saves through the persist function
	End(persist func([]byte) error) error
}

// Overclocker is implemented by consoles whose main processor can run
// faster than the real divider.
type Overclocker interface {
	SetOverclock(set bool)
}

// FrameRate returns the nominal frame rate of a console given its
// master clock.
func FrameRate(masterHz int64, frameTicks int64) float64 {
	return float64(masterHz) / float64(frameTicks)
}

// re-export of the cartridge system type for the shell's convenience.
type System = cartridge.System
