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

// Package savestate reads and writes the versioned save state
// container. The payload is a list of named component snapshots,
// compressed as one xz stream. Loading validates the container version
// and the system identifier before any component state is touched, so
// a refused load leaves the running session unchanged.
package savestate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/ulikunitz/xz"
)

// container constants.
const (
	magic = "GGSV"

	// Version is the current container format version. Containers with
	// any other version are refused
	Version = 1
)

// State is an in-memory save state: a set of named component snapshots.
type State struct {
	// the system identifier of the machine that produced the state
	System string

	components map[string][]byte
}

// NewState creates an empty save state for the named system.
func NewState(system string) *State {
	return &State{
		System:     system,
		components: make(map[string][]byte),
	}
}

// Add stores a component snapshot. The component's name must be unique
// within the state.
func (s *State) Add(name string, snapshot []byte) {
	c := make([]byte, len(snapshot))
	copy(c, snapshot)
	s.components[name] = c
}

// Component returns a stored snapshot by name.
func (s *State) Component(name string) ([]byte, bool) {
	c, ok := s.components[name]
	return c, ok
}

// Write serialises the state to the writer. Component snapshots are
// written in name order so that identical machine state always produces
// an identical byte stream.
func (s *State) Write(w io.Writer) error {
	// header is uncompressed: magic, version, system id
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("savestate: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(Version)); err != nil {
		return fmt.Errorf("savestate: %w", err)
	}
	if err := writeBlock(w, []byte(s.System)); err != nil {
		return fmt.Errorf("savestate: %w", err)
	}

	// payload: sorted name/snapshot pairs in one xz stream
	names := make([]string, 0, len(s.components))
	for n := range s.components {
		names = append(names, n)
	}
	sort.Strings(names)

	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("savestate: %w", err)
	}

	if err := binary.Write(xw, binary.LittleEndian, uint32(len(names))); err != nil {
		return fmt.Errorf("savestate: %w", err)
	}
	for _, n := range names {
		if err := writeBlock(xw, []byte(n)); err != nil {
			return fmt.Errorf("savestate: %w", err)
		}
		if err := writeBlock(xw, s.components[n]); err != nil {
			return fmt.Errorf("savestate: %w", err)
		}
	}

	if err := xw.Close(); err != nil {
		return fmt.Errorf("savestate: %w", err)
	}

	return nil
}

// Read deserialises a state from the reader. The expected system
// identifier is checked along with the container version; a mismatch is
// an error and no state is returned.
func Read(r io.Reader, expectSystem string) (*State, error) {
	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("savestate: %w", err)
	}
	if string(head) != magic {
		return nil, fmt.Errorf("savestate: not a save state file")
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("savestate: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("savestate: incompatible version %d (want %d)", version, Version)
	}

	system, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("savestate: %w", err)
	}
	if expectSystem != "" && string(system) != expectSystem {
		return nil, fmt.Errorf("savestate: state is for %s, not %s", system, expectSystem)
	}

	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("savestate: %w", err)
	}

	var count uint32
	if err := binary.Read(xr, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("savestate: %w", err)
	}

	s := NewState(string(system))
	for i := uint32(0); i < count; i++ {
		name, err := readBlock(xr)
		if err != nil {
			return nil, fmt.Errorf("savestate: %w", err)
		}
		snapshot, err := readBlock(xr)
		if err != nil {
			return nil, fmt.Errorf("savestate: %w", err)
		}
		s.components[string(name)] = snapshot
	}

	return s, nil
}

// writeBlock writes a length prefixed byte block.
func writeBlock(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBlock reads a length prefixed byte block.
func readBlock(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > 1<<28 {
		return nil, fmt.Errorf("block too large")
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Bytes is a convenience wrapper serialising the state to memory.
func (s *State) Bytes() ([]byte, error) {
	b := &bytes.Buffer{}
	if err := s.Write(b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
