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

// Package memorymap routes bus addresses to handlers. Each system core
// builds one Map per bus, adding an Area for every RAM region, mirror,
// device register block and cartridge window in the machine.
//
// Accesses that land outside every area return the open bus value: the
// residual value of the last completed bus transfer. Writes outside every
// area are logged and dropped. This is the documented behaviour of all the
// supported consoles; nothing in this package can panic at runtime.
package memorymap

import (
	"github.com/jetsetilly/gophergen/logger"
)

// Area maps an address range to its handlers. Handlers for word access are
// optional: when absent, word access is composed from two byte accesses
// (high byte at the even address, matching the 68000 and SH-2).
type Area struct {
	Label string
	Start uint32
	End   uint32

	Read8   func(address uint32) uint8
	Write8  func(address uint32, data uint8)
	Read16  func(address uint32) uint16
	Write16 func(address uint32, data uint16)
}

// Map is an ordered collection of Areas plus the open bus state.
type Map struct {
	label string
	areas []Area

	// the value of the last completed bus transfer, mirrored in both bytes
	// for byte reads. this is what an unmapped read returns
	lastBus uint16

	// count of unmapped writes, so that a runaway program does not flood
	// the log
	unmappedWrites int
}

// the number of unmapped writes logged before further ones are silenced.
const unmappedWriteLogLimit = 32

// NewMap is the preferred method of initialisation for the Map type. The
// label names the bus in log entries ("genesis 68K bus", etc.)
func NewMap(label string) *Map {
	return &Map{label: label}
}

// Add an area to the map. Areas are searched in the order they are added so
// more specific ranges must be added before any overlapping general range.
func (m *Map) Add(a Area) {
	m.areas = append(m.areas, a)
}

// find the area containing the address.
func (m *Map) find(address uint32) *Area {
	for i := range m.areas {
		if address >= m.areas[i].Start && address <= m.areas[i].End {
			return &m.areas[i]
		}
	}
	return nil
}

// OpenBus returns the current open bus value.
func (m *Map) OpenBus() uint16 {
	return m.lastBus
}

// SetOpenBus sets the open bus value directly. DMA engines use this: their
// transfers also leave a residue on the bus.
func (m *Map) SetOpenBus(v uint16) {
	m.lastBus = v
}

// Read8 implements the bus.Bus8 interface.
func (m *Map) Read8(address uint32) uint8 {
	a := m.find(address)
	if a == nil {
		if address&0x01 == 0x01 {
			return uint8(m.lastBus)
		}
		return uint8(m.lastBus >> 8)
	}

	var v uint8
	if a.Read8 != nil {
		v = a.Read8(address)
	} else if a.Read16 != nil {
		w := a.Read16(address &^ 1)
		if address&0x01 == 0x01 {
			v = uint8(w)
		} else {
			v = uint8(w >> 8)
		}
	}

	m.lastBus = uint16(v) | uint16(v)<<8
	return v
}

// Write8 implements the bus.Bus8 interface.
func (m *Map) Write8(address uint32, data uint8) {
	m.lastBus = uint16(data) | uint16(data)<<8

	a := m.find(address)
	if a == nil {
		m.logUnmapped(address, uint16(data))
		return
	}

	if a.Write8 != nil {
		a.Write8(address, data)
	} else if a.Write16 != nil {
		// a byte write to a word device places the byte on both halves of
		// the data bus
		a.Write16(address&^1, uint16(data)|uint16(data)<<8)
	}
}

// Read16 implements the bus.Bus16 interface.
func (m *Map) Read16(address uint32) uint16 {
	a := m.find(address)
	if a == nil {
		return m.lastBus
	}

	var v uint16
	if a.Read16 != nil {
		v = a.Read16(address)
	} else if a.Read8 != nil {
		v = uint16(a.Read8(address))<<8 | uint16(a.Read8(address+1))
	}

	m.lastBus = v
	return v
}

// Write16 implements the bus.Bus16 interface.
func (m *Map) Write16(address uint32, data uint16) {
	m.lastBus = data

	a := m.find(address)
	if a == nil {
		m.logUnmapped(address, data)
		return
	}

	if a.Write16 != nil {
		a.Write16(address, data)
	} else if a.Write8 != nil {
		a.Write8(address, uint8(data>>8))
		a.Write8(address+1, uint8(data))
	}
}

func (m *Map) logUnmapped(address uint32, data uint16) {
	m.unmappedWrites++
	if m.unmappedWrites > unmappedWriteLogLimit {
		return
	}
	logger.Logf(logger.Allow, m.label, "unmapped write: %04x to %08x", data, address)
	if m.unmappedWrites == unmappedWriteLogLimit {
		logger.Logf(logger.Allow, m.label, "further unmapped writes will not be logged")
	}
}
