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
	"path/filepath"
	"strings"

	"github.com/jetsetilly/gophergen/logger"
)

// the number of sectors held in the read cache. sixteen sectors is about a
// fifth of a second of streaming at 75 sectors per second: enough to absorb the re-reads the BIOS performs
const cacheSectors = 16

// Disc is an opened disc image.
type Disc struct {
	Tracks       []Track
	TotalSectors int

	sources []trackSource

	// simple rotating sector cache
	cache     [cacheSectors]cacheEntry
	cacheNext int
}

type cacheEntry struct {
	lba   int
	valid bool
	data  [SectorSize]byte
}

// Open opens a disc image, dispatching on the file extension: .cue or
// .chd.
func Open(path string) (*Disc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCue(path)
	case ".chd":
		return OpenCHD(path)
	}
	return nil, fmt.Errorf("cdrom: %s: not a recognised disc image", path)
}

// Close releases the files behind the disc image.
func (d *Disc) Close() error {
	var first error
	for _, s := range d.sources {
		if err := s.close(); err != nil && first == nil {
			first = err
		}
	}
	d.sources = nil
	return first
}

// TrackForLBA returns the track containing the given sector.
func (d *Disc) TrackForLBA(lba int) *Track {
	for i := range d.Tracks {
		t := &d.Tracks[i]
		if lba >= t.StartLBA-t.Pregap && lba < t.StartLBA+t.Length {
			return t
		}
	}
	return nil
}

// ReadSector returns the 2352 raw bytes of the given sector. Sectors in a
// pregap, or beyond the end of the disc, read as zero filled; a read that
// fails at the file level is logged and also returns a zero filled sector
// (drives return scrambled garbage there, software retries).
func (d *Disc) ReadSector(lba int) []byte {
	for i := range d.cache {
		if d.cache[i].valid && d.cache[i].lba == lba {
			return d.cache[i].data[:]
		}
	}

	e := &d.cache[d.cacheNext]
	d.cacheNext = (d.cacheNext + 1) % cacheSectors
	e.lba = lba
	e.valid = true
	clear(e.data[:])

	t := d.TrackForLBA(lba)
	if t == nil || lba < t.StartLBA {
		return e.data[:]
	}

	if err := t.source.readSector(lba-t.StartLBA+t.sourceOffset, e.data[:]); err != nil {
		logger.Logf(logger.Allow, "cdrom", "read error at LBA %d: %v", lba, err)
		clear(e.data[:])
	}

	return e.data[:]
}

// LeadOutLBA returns the first sector past the last track.
func (d *Disc) LeadOutLBA() int {
	return d.TotalSectors
}
