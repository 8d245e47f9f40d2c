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

package memorymap_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/test"
)

func newRAMMap() (*memorymap.Map, []byte) {
	ram := make([]byte, 0x100)
	m := memorymap.NewMap("test bus")
	m.Add(memorymap.Area{
		Label: "RAM",
		Start: 0x1000,
		End:   0x10ff,
		Read8: func(address uint32) uint8 {
			return ram[address&0xff]
		},
		Write8: func(address uint32, data uint8) {
			ram[address&0xff] = data
		},
	})
	return m, ram
}

func TestByteAccess(t *testing.T) {
	m, ram := newRAMMap()

	m.Write8(0x1005, 0xab)
	test.ExpectEquality(t, ram[0x05], uint8(0xab))
	test.ExpectEquality(t, m.Read8(0x1005), uint8(0xab))
}

func TestWordComposition(t *testing.T) {
	m, ram := newRAMMap()

	// word access to a byte-handled area is composed high byte first
	m.Write16(0x1000, 0x1234)
	test.ExpectEquality(t, ram[0x00], uint8(0x12))
	test.ExpectEquality(t, ram[0x01], uint8(0x34))
	test.ExpectEquality(t, m.Read16(0x1000), uint16(0x1234))
}

func TestOpenBus(t *testing.T) {
	m, _ := newRAMMap()

	// the open bus value is the residue of the last completed transfer
	m.Write16(0x1000, 0xbeef)
	test.ExpectEquality(t, m.Read16(0xf000), uint16(0xbeef))

	m.Write8(0x1002, 0x55)
	test.ExpectEquality(t, m.Read16(0xf000), uint16(0x5555))

	// an unmapped read does not change the open bus value
	_ = m.Read16(0xf000)
	test.ExpectEquality(t, m.Read16(0xf002), uint16(0x5555))
}

func TestUnmappedWrite(t *testing.T) {
	m, ram := newRAMMap()

	// unmapped writes are dropped. they still leave a residue on the bus
	m.Write8(0x2000, 0x99)
	for i := range ram {
		test.ExpectEquality(t, ram[i], uint8(0))
	}
	test.ExpectEquality(t, m.Read8(0xf001), uint8(0x99))
}
