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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// CHD container constants.
const (
	chdMagic      = "MComprHD"
	chdV5         = 5
	chdHeaderV5   = 124
	chdFrameBytes = 2448 // 2352 byte sector + 96 bytes of subcode
)

// the all-zero compressor tag of an uncompressed CHD.
var codecNone = [4]byte{0, 0, 0, 0}

// chd is an opened CHD file: header fields, the decoded hunk map and a
// single-hunk cache.
type chd struct {
	f *os.File

	hunkBytes  int
	hunkCount  int
	logicalLen int64
	unitBytes  int

	compressors [4][4]byte
	compressed  bool

	// decoded map: one entry per hunk
	entries []chdMapEntry

	// hunk cache
	cacheHunk int
	cacheData []byte
}

type chdMapEntry struct {
	codec  uint8
	offset int64
	length int
}

// OpenCHD opens a CHD disc image. Uncompressed version 5 files are
// supported; compressed files are reported as unsupported at load time
// with a pointer to the chdman conversion. The compressed hunk formats
// need the reference huffman decoder for their maps and a half
// implementation would corrupt discs silently.
func OpenCHD(path string) (*Disc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cdrom: %w", err)
	}

	c, err := parseCHD(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cdrom: %s: %w", path, err)
	}

	disc, err := c.tracks()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cdrom: %s: %w", path, err)
	}

	return disc, nil
}

func parseCHD(f *os.File) (*chd, error) {
	header := make([]byte, chdHeaderV5)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("short CHD header")
	}

	if string(header[:8]) != chdMagic {
		return nil, fmt.Errorf("not a CHD file")
	}

	version := binary.BigEndian.Uint32(header[12:])
	if version != chdV5 {
		return nil, fmt.Errorf("unsupported CHD version %d", version)
	}

	c := &chd{f: f, cacheHunk: -1}
	for i := range c.compressors {
		copy(c.compressors[i][:], header[16+i*4:])
	}
	c.compressed = c.compressors[0] != codecNone

	c.logicalLen = int64(binary.BigEndian.Uint64(header[32:]))
	mapOffset := int64(binary.BigEndian.Uint64(header[40:]))
	c.hunkBytes = int(binary.BigEndian.Uint32(header[56:]))
	c.unitBytes = int(binary.BigEndian.Uint32(header[60:]))
	c.hunkCount = int((c.logicalLen + int64(c.hunkBytes) - 1) / int64(c.hunkBytes))

	if err := c.readMap(mapOffset); err != nil {
		return nil, err
	}

	return c, nil
}

// readMap decodes the hunk map of an uncompressed CHD: a flat array of
// 4 byte entries, each the hunk's position in units of the hunk size.
func (c *chd) readMap(mapOffset int64) error {
	c.entries = make([]chdMapEntry, c.hunkCount)

	if !c.compressed {
		raw := make([]byte, 4*c.hunkCount)
		if _, err := c.f.ReadAt(raw, mapOffset); err != nil {
			return fmt.Errorf("short CHD map")
		}
		for i := range c.entries {
			off := int64(binary.BigEndian.Uint32(raw[i*4:]))
			c.entries[i] = chdMapEntry{
				codec:  0,
				offset: off * int64(c.hunkBytes),
				length: c.hunkBytes,
			}
		}
		return nil
	}

	return fmt.Errorf("compressed CHD is not supported; convert with chdman copy -c none")
}

// readHunk returns the decompressed contents of the numbered hunk.
func (c *chd) readHunk(hunk int) ([]byte, error) {
	if hunk == c.cacheHunk {
		return c.cacheData, nil
	}
	if hunk < 0 || hunk >= c.hunkCount {
		return nil, fmt.Errorf("hunk %d out of range", hunk)
	}

	e := c.entries[hunk]
	out := make([]byte, e.length)
	if _, err := c.f.ReadAt(out, e.offset); err != nil {
		return nil, err
	}

	c.cacheHunk = hunk
	c.cacheData = out
	return out, nil
}

// metadata tags for CD track layout.
const (
	metaTrack  = "CHTR"
	metaTrack2 = "CHT2"
)

// tracks reads the CD track metadata and builds the Disc.
func (c *chd) tracks() (*Disc, error) {
	// the metadata offset lives at byte 48 of the v5 header
	header := make([]byte, chdHeaderV5)
	if _, err := c.f.ReadAt(header, 0); err != nil {
		return nil, err
	}
	metaOffset := int64(binary.BigEndian.Uint64(header[48:]))

	disc := &Disc{}
	src := &chdSource{chd: c}
	disc.sources = append(disc.sources, src)

	for metaOffset != 0 {
		mh := make([]byte, 16)
		if _, err := c.f.ReadAt(mh, metaOffset); err != nil {
			return nil, fmt.Errorf("short CHD metadata")
		}

		tag := string(mh[0:4])
		length := int(binary.BigEndian.Uint32(mh[4:]) & 0xffffff)
		next := int64(binary.BigEndian.Uint64(mh[8:]))

		if tag == metaTrack || tag == metaTrack2 {
			body := make([]byte, length)
			if _, err := c.f.ReadAt(body, metaOffset+16); err != nil {
				return nil, fmt.Errorf("short CHD metadata body")
			}

			track, err := parseTrackMeta(string(bytes.TrimRight(body, "\x00")))
			if err != nil {
				return nil, err
			}
			track.source = src
			disc.Tracks = append(disc.Tracks, track)
		}

		metaOffset = next
	}

	if len(disc.Tracks) == 0 {
		return nil, fmt.Errorf("no CD tracks in CHD metadata")
	}

	// source offsets accumulate in file order; CHDs pad each track to a
	// 4 sector boundary
	offset := 0
	for i := range disc.Tracks {
		disc.Tracks[i].sourceOffset = offset
		offset += (disc.Tracks[i].Length + 3) &^ 3
	}
	src.sectors = offset

	disc.layout()
	return disc, nil
}

// parseTrackMeta parses the "TRACK:n TYPE:t SUBTYPE:s FRAMES:f" metadata
// format.
func parseTrackMeta(s string) (Track, error) {
	var t Track

	for _, field := range strings.Fields(s) {
		k, v, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		switch k {
		case "TRACK":
			fmt.Sscanf(v, "%d", &t.Number)
		case "TYPE":
			switch v {
			case "AUDIO":
				t.Type = TrackAudio
			case "MODE1", "MODE1_RAW":
				t.Type = TrackMode1
			default:
				return t, fmt.Errorf("unsupported CHD track type %s", v)
			}
		case "FRAMES":
			fmt.Sscanf(v, "%d", &t.Length)
		case "PREGAP":
			fmt.Sscanf(v, "%d", &t.Pregap)
		}
	}

	if t.Number == 0 || t.Length == 0 {
		return t, fmt.Errorf("malformed CHD track metadata %q", s)
	}

	return t, nil
}

// chdSource adapts the hunk layer to the trackSource interface. CHD
// stores CD frames of 2448 bytes (sector plus subcode); the sector is
// the first 2352.
type chdSource struct {
	chd     *chd
	sectors int
}

func (s *chdSource) readSector(sector int, buf []byte) error {
	byteOffset := int64(sector) * chdFrameBytes

	remaining := SectorSize
	out := 0
	for remaining > 0 {
		hunk := int(byteOffset / int64(s.chd.hunkBytes))
		within := int(byteOffset % int64(s.chd.hunkBytes))

		data, err := s.chd.readHunk(hunk)
		if err != nil {
			return err
		}

		n := min(remaining, len(data)-within)
		copy(buf[out:out+n], data[within:])
		out += n
		remaining -= n
		byteOffset += int64(n)
	}

	return nil
}

func (s *chdSource) size() int {
	return s.sectors
}

func (s *chdSource) close() error {
	return s.chd.f.Close()
}
