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

// Package sdlaudio outputs sound through an SDL queueing audio device.
package sdlaudio

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/jetsetilly/gophergen/logger"
)

// Audio outputs sound using SDL.
type Audio struct {
	id   sdl.AudioDeviceID
	spec sdl.AudioSpec

	muted bool
}

// NewAudio opens the default audio device at the given rate.
func NewAudio(rate int) (*Audio, error) {
	aud := &Audio{}

	want := sdl.AudioSpec{
		Freq:     int32(rate),
		Format:   sdl.AUDIO_F32SYS,
		Channels: 2,
		Samples:  1024,
	}

	id, err := sdl.OpenAudioDevice("", false, &want, &aud.spec, 0)
	if err != nil {
		return nil, fmt.Errorf("sdlaudio: %w", err)
	}
	aud.id = id

	sdl.PauseAudioDevice(aud.id, false)

	logger.Logf(logger.Allow, "sdlaudio", "id: %d", aud.id)
	logger.Logf(logger.Allow, "sdlaudio", "freq: %d", aud.spec.Freq)
	logger.Logf(logger.Allow, "sdlaudio", "channels: %d", aud.spec.Channels)

	return aud, nil
}

// Queue implements the hostaudio.Sink interface.
func (aud *Audio) Queue(samples []float32) {
	if aud.id == 0 || len(samples) == 0 {
		return
	}

	if aud.muted {
		silence := make([]float32, len(samples))
		samples = silence
	}

	b := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*4)
	if err := sdl.QueueAudio(aud.id, b); err != nil {
		logger.Log(logger.Allow, "sdlaudio", err)
	}
}

// QueuedFrames implements the hostaudio.Sink interface.
func (aud *Audio) QueuedFrames() int {
	if aud.id == 0 {
		return 0
	}
	// bytes to stereo frames
	return int(sdl.GetQueuedAudioSize(aud.id)) / 8
}

// Mute implements the hostaudio.Sink interface.
func (aud *Audio) Mute(set bool) {
	aud.muted = set
}

// End implements the hostaudio.Sink interface.
func (aud *Audio) End() error {
	if aud.id == 0 {
		return nil
	}
	sdl.CloseAudioDevice(aud.id)
	aud.id = 0
	return nil
}
