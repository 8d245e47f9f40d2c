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

package cdrom

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// openSource opens a FILE entry of a cue sheet. The format hint comes
// from the cue; WAVE and MP3 files are decoded to raw little-endian
// stereo PCM at load time.
func openSource(path string, format string) (trackSource, error) {
	switch format {
	case "BINARY":
		return openBin(path)
	case "WAVE":
		if strings.EqualFold(filepath.Ext(path), ".mp3") {
			return openMP3(path)
		}
		return openWav(path)
	case "MP3":
		return openMP3(path)
	}
	return nil, fmt.Errorf("unsupported file format %s", format)
}

// binSource reads raw sectors directly from a file on demand.
type binSource struct {
	f       *os.File
	sectors int
}

func openBin(path string) (*binSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if fi.Size()%SectorSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%s: not a whole number of 2352 byte sectors", path)
	}

	return &binSource{f: f, sectors: int(fi.Size() / SectorSize)}, nil
}

func (s *binSource) readSector(sector int, buf []byte) error {
	if sector < 0 || sector >= s.sectors {
		return fmt.Errorf("sector %d out of range", sector)
	}
	_, err := s.f.ReadAt(buf[:SectorSize], int64(sector)*SectorSize)
	return err
}

func (s *binSource) size() int {
	return s.sectors
}

func (s *binSource) close() error {
	return s.f.Close()
}

// pcmSource holds decoded audio as raw PCM, padded to a whole number of
// sectors. WAV and MP3 tracks decode into one of these at load time.
type pcmSource struct {
	pcm []byte
}

func (s *pcmSource) readSector(sector int, buf []byte) error {
	start := sector * SectorSize
	if start < 0 || start >= len(s.pcm) {
		return fmt.Errorf("sector %d out of range", sector)
	}
	copy(buf[:SectorSize], s.pcm[start:])
	return nil
}

func (s *pcmSource) size() int {
	return len(s.pcm) / SectorSize
}

func (s *pcmSource) close() error {
	return nil
}

// pad extends the PCM data to a whole number of sectors.
func (s *pcmSource) pad() {
	if rem := len(s.pcm) % SectorSize; rem != 0 {
		s.pcm = append(s.pcm, make([]byte, SectorSize-rem)...)
	}
}

// openWav decodes a WAV audio track. CD audio is 44.1kHz 16-bit stereo;
// anything else in a cue sheet is a mastering error and is rejected.
func openWav(path string) (*pcmSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: audio tracks must be 44.1kHz 16-bit stereo", path)
	}

	src := &pcmSource{pcm: make([]byte, 0, len(buf.Data)*2)}
	for _, v := range buf.Data {
		src.pcm = append(src.pcm, byte(v), byte(v>>8))
	}
	src.pad()

	return src, nil
}

// openMP3 decodes an MP3 audio track. The decoder always produces
// 16-bit stereo; a sample rate other than 44.1kHz is rejected.
func openMP3(path string) (*pcmSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if dec.SampleRate() != 44100 {
		return nil, fmt.Errorf("%s: audio tracks must be 44.1kHz", path)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	src := &pcmSource{pcm: pcm}
	src.pad()

	return src, nil
}
