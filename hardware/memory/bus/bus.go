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

// Package bus defines the memory bus interfaces called by the hosted CPU
// decoders.
//
// Bus accesses never return errors. An emulated machine has a defined
// behaviour for every possible access, including accesses to unmapped
// addresses (the open bus value) and writes to read-only regions (dropped
// and logged). Error values on the hot path would suggest that a bus access
// can fail; it cannot.
package bus

// Bus8 is the bus seen by the 8-bit processors: Z80, 6502, SPC700, SM83.
// Addresses are 16 bits wide on these machines but the interface uses
// uint32 so that the same handler functions can serve the wider buses.
type Bus8 interface {
	Read8(address uint32) uint8
	Write8(address uint32, data uint8)
}

// Bus16 is the bus seen by the 16-bit processors: 68000, SH-2, 65C816.
// Word accesses are big-endian on the 68000 and SH-2. Decoders perform
// unaligned or long accesses as multiple calls.
type Bus16 interface {
	Bus8
	Read16(address uint32) uint16
	Write16(address uint32, data uint16)
}

// DebugBus is implemented by memory areas that can be inspected and altered
// outside of the normal operation of the machine. Peek and Poke have no
// side effects: no open bus update, no register latch, no logging.
type DebugBus interface {
	Peek(address uint32) uint8
	Poke(address uint32, data uint8)
}
