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

// Package mappers implements the per-cartridge banking logic for every
// supported console. Mappers are selected at load time; bus access is a
// direct method call with no per-access dispatch decisions beyond the
// mapper's own banking.
package mappers

// Mapper is the interface common to all cartridge mappers. Addresses are
// in the console's cartridge window, already masked by the system bus.
type Mapper interface {
	// the mapper's identifier, eg. "SSF", "MMC1", "MBC5"
	ID() string

	Read(address uint32) uint8
	Write(address uint32, data uint8)

	// Snapshot returns the serialised banking state. Restore accepts a
	// previously returned snapshot
	Snapshot() []byte
	Restore(state []byte) error

	// SRAM returns the battery backed RAM for persistence, or nil if the
	// cartridge has none. The returned slice aliases the live RAM
	SRAM() []byte
}

// newSRAM allocates battery backed RAM initialised to all ones, matching
// the power-on state of the real chips.
func newSRAM(size int) []byte {
	sram := make([]byte, size)
	for i := range sram {
		sram[i] = 0xff
	}
	return sram
}
