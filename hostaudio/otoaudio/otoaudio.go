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

// Package otoaudio outputs sound through an oto player: a pure Go
// path with no cgo dependency. The player pulls from a ring that
// Queue() fills; the ring is the only state shared with the audio
// callback goroutine.
package otoaudio

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// ring capacity in samples (about two thirds of a second of stereo at 48kHz).
const ringSize = 1 << 16

// Audio outputs sound using oto.
type Audio struct {
	ctx    *oto.Context
	player *oto.Player

	buf  [ringSize]float32
	head atomic.Uint64
	tail atomic.Uint64

	muted atomic.Bool
}

// NewAudio opens an oto context at the given rate.
func NewAudio(rate int) (*Audio, error) {
	aud := &Audio{}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("otoaudio: %w", err)
	}
	<-ready

	aud.ctx = ctx
	aud.player = ctx.NewPlayer(&stream{aud: aud})
	aud.player.Play()

	return aud, nil
}

// stream adapts the ring to the io.Reader oto pulls from.
type stream struct {
	aud *Audio
}

// Read implements the io.Reader interface. Called from oto's own
// goroutine; underruns fill with silence.
func (s *stream) Read(p []byte) (int, error) {
	n := len(p) / 4
	head := s.aud.head.Load()
	tail := s.aud.tail.Load()

	for i := 0; i < n; i++ {
		var v float32
		if head < tail {
			v = s.aud.buf[head%ringSize]
			head++
		}
		if s.aud.muted.Load() {
			v = 0
		}

		bits := math.Float32bits(v)
		p[i*4] = byte(bits)
		p[i*4+1] = byte(bits >> 8)
		p[i*4+2] = byte(bits >> 16)
		p[i*4+3] = byte(bits >> 24)
	}

	s.aud.head.Store(head)
	return n * 4, nil
}

// Queue implements the hostaudio.Sink interface.
func (aud *Audio) Queue(samples []float32) {
	tail := aud.tail.Load()
	head := aud.head.Load()

	for _, v := range samples {
		if tail-head >= ringSize {
			// overrun: drop. the dynamic resampler will pull the queue
			// back down
			break
		}
		aud.buf[tail%ringSize] = v
		tail++
	}

	aud.tail.Store(tail)
}

// QueuedFrames implements the hostaudio.Sink interface.
func (aud *Audio) QueuedFrames() int {
	return int(aud.tail.Load()-aud.head.Load()) / 2
}

// Mute implements the hostaudio.Sink interface.
func (aud *Audio) Mute(set bool) {
	aud.muted.Store(set)
}

// End implements the hostaudio.Sink interface.
func (aud *Audio) End() error {
	if aud.player != nil {
		aud.player.Close()
		aud.player = nil
	}
	return nil
}
