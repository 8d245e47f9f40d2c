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

// Package recorder captures the mixed audio output to a WAV file.
// Started and stopped by a host command. No test in the repository uses
// it.
package recorder

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Audio records the mixed stream to a WAV file.
type Audio struct {
	f   *os.File
	enc *wav.Encoder

	buf audio.IntBuffer
}

// NewAudio creates the output file and the encoder. Samples are stored
// as 16-bit PCM.
func NewAudio(filename string, rate int) (*Audio, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	rec := &Audio{
		f:   f,
		enc: wav.NewEncoder(f, rate, 16, 2, 1),
		buf: audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 2,
				SampleRate:  rate,
			},
			SourceBitDepth: 16,
		},
	}

	return rec, nil
}

// Write appends a block of interleaved stereo float samples.
func (rec *Audio) Write(samples []float32) error {
	if rec.enc == nil {
		return nil
	}

	rec.buf.Data = rec.buf.Data[:0]
	for _, v := range samples {
		v = min(max(v, -1), 1)
		rec.buf.Data = append(rec.buf.Data, int(v*32767))
	}

	if err := rec.enc.Write(&rec.buf); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	return nil
}

// End finalises the WAV header and closes the file.
func (rec *Audio) End() error {
	if rec.enc == nil {
		return nil
	}

	if err := rec.enc.Close(); err != nil {
		rec.f.Close()
		return fmt.Errorf("recorder: %w", err)
	}
	rec.enc = nil

	if err := rec.f.Close(); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	return nil
}
