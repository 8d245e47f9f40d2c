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

// Package hostaudio defines the sink the mixed audio stream is pushed
// into. Two backends are provided: sdlaudio (a queue on an SDL audio
// device) and otoaudio (a pull stream on an oto player). Both report
// their queue depth back so the mixer's dynamic resampling ratio can
// steer it.
package hostaudio

// Sink consumes interleaved stereo float32 samples at the host rate.
type Sink interface {
	// Queue appends samples to the sink's buffer. Never blocks. The oto
	// sink drops samples when its ring is full; the SDL sink's queue has
	// no limit
	Queue(samples []float32)

	// QueuedFrames is the current depth of the sink's buffer in frames
	QueuedFrames() int

	// Mute silences output without stopping the stream
	Mute(set bool)

	// End shuts the device down
	End() error
}

// NilSink discards all samples. Used when no audio device is wanted.
type NilSink struct{}

// Queue implements the Sink interface.
func (s NilSink) Queue(_ []float32) {}

// QueuedFrames implements the Sink interface.
func (s NilSink) QueuedFrames() int { return 0 }

// Mute implements the Sink interface.
func (s NilSink) Mute(_ bool) {}

// End implements the Sink interface.
func (s NilSink) End() error { return nil }
