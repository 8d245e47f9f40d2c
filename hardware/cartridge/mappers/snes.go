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

package mappers

// Coprocessor is a cartridge mounted processor hosted in the SNES clock
// domain: Super FX, SA-1, the DSP series, CX4, S-DD1, SPC7110 and the
// ST010/011. The instruction cores are hosted the same way the main CPUs
// are; the mapper routes the address windows the coprocessor claims.
type Coprocessor interface {
	// ClaimsAddress reports whether the coprocessor decodes the given
	// SNES bus address
	ClaimsAddress(address uint32) bool

	Read(address uint32) uint8
	Write(address uint32, data uint8)

	// RunUntil advances the coprocessor to the master clock deadline
	RunUntil(deadline int64) int64
}

// SNESROM is the LoROM/HiROM mapper. Addresses arrive as full 24-bit SNES
// bus addresses (bank byte in bits 16-23).
type SNESROM struct {
	rom   []byte
	sram  []byte
	hirom bool

	// an optional coprocessor claims address windows ahead of the ROM
	// decode
	coproc Coprocessor
}

// NewSNESROM creates the mapper. sramSize of zero means no battery RAM.
func NewSNESROM(rom []byte, hirom bool, sramSize int) *SNESROM {
	m := &SNESROM{rom: rom, hirom: hirom}
	if sramSize > 0 {
		m.sram = newSRAM(sramSize)
	}
	return m
}

// AttachCoprocessor mounts a coprocessor on the cartridge.
func (m *SNESROM) AttachCoprocessor(c Coprocessor) {
	m.coproc = c
}

// Coprocessor returns the mounted coprocessor, or nil.
func (m *SNESROM) Coprocessor() Coprocessor {
	return m.coproc
}

// ID implements the Mapper interface.
func (m *SNESROM) ID() string {
	if m.hirom {
		return "HiROM"
	}
	return "LoROM"
}

// romOffset converts a bus address to a ROM offset, or -1 when the
// address does not decode to ROM.
func (m *SNESROM) romOffset(address uint32) int {
	bank := int(address>>16) & 0x7f
	offset := int(address) & 0xffff

	if m.hirom {
		if bank >= 0x40 {
			return (bank-0x40)*0x10000 + offset
		}
		if offset >= 0x8000 {
			return bank*0x10000 + offset
		}
		return -1
	}

	if offset >= 0x8000 {
		return bank*0x8000 + offset - 0x8000
	}
	return -1
}

// sramOffset converts a bus address to an SRAM offset, or -1.
func (m *SNESROM) sramOffset(address uint32) int {
	if m.sram == nil {
		return -1
	}

	bank := int(address>>16) & 0x7f
	offset := int(address) & 0xffff

	if m.hirom {
		// HiROM SRAM windows at banks $20-$3F, $6000-$7FFF
		if bank >= 0x20 && bank <= 0x3f && offset >= 0x6000 && offset < 0x8000 {
			return ((bank-0x20)*0x2000 + offset - 0x6000) % len(m.sram)
		}
		return -1
	}

	// LoROM SRAM at banks $70-$7D, $0000-$7FFF
	if bank >= 0x70 && bank <= 0x7d && offset < 0x8000 {
		return ((bank-0x70)*0x8000 + offset) % len(m.sram)
	}
	return -1
}

// Read implements the Mapper interface.
func (m *SNESROM) Read(address uint32) uint8 {
	if m.coproc != nil && m.coproc.ClaimsAddress(address) {
		return m.coproc.Read(address)
	}
	if o := m.sramOffset(address); o >= 0 {
		return m.sram[o]
	}
	if o := m.romOffset(address); o >= 0 && o < len(m.rom) {
		return m.rom[o]
	}
	return 0
}

// Write implements the Mapper interface.
func (m *SNESROM) Write(address uint32, data uint8) {
	if m.coproc != nil && m.coproc.ClaimsAddress(address) {
		m.coproc.Write(address, data)
		return
	}
	if o := m.sramOffset(address); o >= 0 {
		m.sram[o] = data
	}
}

// Snapshot implements the Mapper interface.
func (m *SNESROM) Snapshot() []byte {
	return nil
}

// Restore implements the Mapper interface.
func (m *SNESROM) Restore(state []byte) error {
	return nil
}

// SRAM implements the Mapper interface.
func (m *SNESROM) SRAM() []byte {
	return m.sram
}
