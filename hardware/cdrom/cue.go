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

// Package cdrom provides Sega CD disc images: CUE/BIN and CHD, with audio
// tracks stored as raw PCM, WAV or MP3. Malformed images are load time
// errors; a successfully opened disc never fails a sector read at
// runtime.
package cdrom

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sector and timing constants.
const (
	SectorSize = 2352

	// sectors per second of CD-DA audio, and frames per second in
	// MSF addressing
	SectorsPerSecond = 75

	// the lead-in offset: LBA 0 is MSF 00:02:00
	PregapSectors = 150
)

// TrackType distinguishes data from audio tracks.
type TrackType int

// List of valid TrackType values.
const (
	TrackMode1 TrackType = iota
	TrackAudio
)

func (t TrackType) String() string {
	if t == TrackAudio {
		return "audio"
	}
	return "data"
}

// Track is one track of a disc.
type Track struct {
	Number int
	Type   TrackType

	// start of the track in absolute sectors, including the pregap
	StartLBA int

	// length in sectors
	Length int

	// sectors of pregap before the track data (INDEX 00 to INDEX 01)
	Pregap int

	source trackSource
	// offset of INDEX 01 within the source, in sectors
	sourceOffset int
}

// trackSource supplies raw 2352 byte sectors for a track.
type trackSource interface {
	// readSector fills buf with the sector at the given source-relative
	// sector number
	readSector(sector int, buf []byte) error
	size() int // in sectors
	close() error
}

// parseMSF converts a "mm:ss:ff" timestamp to a sector count.
func parseMSF(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad MSF timestamp %q", s)
	}

	var msf [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad MSF timestamp %q", s)
		}
		msf[i] = v
	}

	if msf[1] >= 60 || msf[2] >= SectorsPerSecond {
		return 0, fmt.Errorf("bad MSF timestamp %q", s)
	}

	return (msf[0]*60+msf[1])*SectorsPerSecond + msf[2], nil
}

// cue file parse state for one FILE entry.
type cueFile struct {
	path   string
	format string
}

// ParseCue opens the named cue file and the files it references. Errors
// here are load errors: the disc fails to open and nothing is retained.
func ParseCue(path string) (*Disc, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cdrom: %w", err)
	}

	dir := filepath.Dir(path)
	disc := &Disc{}

	var file *cueFile
	var track *Track
	var index01 int
	var index00 int
	var seenIndex01 bool

	// sources are opened lazily, one per FILE entry
	var source trackSource

	finishTrack := func() error {
		if track == nil {
			return nil
		}
		if !seenIndex01 {
			return fmt.Errorf("track %d has no INDEX 01", track.Number)
		}
		track.Pregap += index01 - index00
		track.source = source
		track.sourceOffset = index01
		disc.Tracks = append(disc.Tracks, *track)
		track = nil
		return nil
	}

	for lineNum, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		fields := splitQuoted(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "FILE":
			if len(fields) < 3 {
				return nil, fmt.Errorf("cdrom: %s: line %d: malformed FILE", path, lineNum+1)
			}
			if err := finishTrack(); err != nil {
				return nil, fmt.Errorf("cdrom: %s: %w", path, err)
			}
			file = &cueFile{
				path:   filepath.Join(dir, fields[1]),
				format: strings.ToUpper(fields[2]),
			}
			source, err = openSource(file.path, file.format)
			if err != nil {
				disc.Close()
				return nil, fmt.Errorf("cdrom: %s: line %d: %w", path, lineNum+1, err)
			}
			disc.sources = append(disc.sources, source)

		case "TRACK":
			if file == nil {
				return nil, fmt.Errorf("cdrom: %s: line %d: TRACK before FILE", path, lineNum+1)
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("cdrom: %s: line %d: malformed TRACK", path, lineNum+1)
			}
			if err := finishTrack(); err != nil {
				return nil, fmt.Errorf("cdrom: %s: %w", path, err)
			}

			num, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("cdrom: %s: line %d: bad track number", path, lineNum+1)
			}

			var typ TrackType
			switch strings.ToUpper(fields[2]) {
			case "AUDIO":
				typ = TrackAudio
			case "MODE1/2352":
				typ = TrackMode1
			default:
				return nil, fmt.Errorf("cdrom: %s: line %d: unsupported track mode %s", path, lineNum+1, fields[2])
			}

			track = &Track{Number: num, Type: typ}
			index00 = 0
			index01 = 0
			seenIndex01 = false

		case "INDEX":
			if track == nil {
				return nil, fmt.Errorf("cdrom: %s: line %d: INDEX before TRACK", path, lineNum+1)
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("cdrom: %s: line %d: malformed INDEX", path, lineNum+1)
			}
			sector, err := parseMSF(fields[2])
			if err != nil {
				return nil, fmt.Errorf("cdrom: %s: line %d: %w", path, lineNum+1, err)
			}
			switch fields[1] {
			case "00":
				index00 = sector
			case "01":
				index01 = sector
				seenIndex01 = true
			}

		case "PREGAP":
			if track == nil {
				return nil, fmt.Errorf("cdrom: %s: line %d: PREGAP before TRACK", path, lineNum+1)
			}
			sector, err := parseMSF(fields[1])
			if err != nil {
				return nil, fmt.Errorf("cdrom: %s: line %d: %w", path, lineNum+1, err)
			}
			track.Pregap += sector

		case "REM", "CATALOG", "PERFORMER", "TITLE", "FLAGS", "SONGWRITER", "ISRC", "POSTGAP":
			// informational; ignored
		default:
			return nil, fmt.Errorf("cdrom: %s: line %d: unrecognised command %q", path, lineNum+1, fields[0])
		}
	}

	if err := finishTrack(); err != nil {
		disc.Close()
		return nil, fmt.Errorf("cdrom: %s: %w", path, err)
	}

	if len(disc.Tracks) == 0 {
		disc.Close()
		return nil, fmt.Errorf("cdrom: %s: no tracks", path)
	}

	disc.layout()
	return disc, nil
}

// layout assigns absolute LBAs to the parsed tracks.
func (d *Disc) layout() {
	lba := 0
	for i := range d.Tracks {
		t := &d.Tracks[i]
		t.StartLBA = lba + t.Pregap
		t.Length = t.source.size() - t.sourceOffset
		// a following track in the same file bounds this one
		if i+1 < len(d.Tracks) {
			// lengths are fixed up on the second pass for shared files
		}
		lba = t.StartLBA + t.Length
	}

	// tracks sharing a source file are bounded by their neighbour's
	// source offset
	for i := range d.Tracks {
		t := &d.Tracks[i]
		if i+1 < len(d.Tracks) && d.Tracks[i+1].source == t.source {
			t.Length = d.Tracks[i+1].sourceOffset - d.Tracks[i+1].Pregap - t.sourceOffset
		}
	}

	// recompute the absolute positions with the final lengths
	lba = 0
	for i := range d.Tracks {
		t := &d.Tracks[i]
		t.StartLBA = lba + t.Pregap
		lba = t.StartLBA + t.Length
	}
	d.TotalSectors = lba
}

// splitQuoted splits a cue line on whitespace, keeping quoted strings
// together.
func splitQuoted(line string) []string {
	var out []string
	var cur strings.Builder
	var quoted bool

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case (r == ' ' || r == '\t') && !quoted:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}

	return out
}
