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

import (
	"fmt"
)

// i2c bus states for the serial EEPROM.
const (
	i2cIdle = iota
	i2cAddress
	i2cWrite
	i2cRead
	i2cAck
)

// GenesisEEPROM wraps a flat Genesis mapper with a 24C01/08/16 style
// serial EEPROM on the SRAM lines. A handful of cartridges (the EA sports
// titles, Wonder Boy in Monster World, the Codemasters games) use this
// instead of parallel SRAM.
type GenesisEEPROM struct {
	rom []byte

	// eeprom contents; size depends on the chip variant
	mem []byte

	// i2c engine
	state   int
	sda     bool
	scl     bool
	shift   uint8
	bits    int
	address int
	reading bool

	// the first data byte after a write-mode device address is the word
	// address
	expectAddress bool

	// bus wiring differs per board; the scl/sda bit positions are
	// configured at load time
	sdaInBit  uint
	sclBit    uint
	sdaOutBit uint
}

// NewGenesisEEPROM creates the EEPROM mapper. The size argument is the
// EEPROM capacity in bytes (128 for 24C01, 1024 for 24C08, 2048 for
// 24C16).
func NewGenesisEEPROM(rom []byte, size int, sdaInBit uint, sclBit uint, sdaOutBit uint) *GenesisEEPROM {
	return &GenesisEEPROM{
		rom:       rom,
		mem:       newSRAM(size),
		sda:       true,
		scl:       true,
		sdaInBit:  sdaInBit,
		sclBit:    sclBit,
		sdaOutBit: sdaOutBit,
	}
}

// ID implements the Mapper interface.
func (m *GenesisEEPROM) ID() string {
	return fmt.Sprintf("EEPROM-%d", len(m.mem))
}

// Read implements the Mapper interface. Reads of the EEPROM window return
// the SDA line in the configured bit position.
func (m *GenesisEEPROM) Read(address uint32) uint8 {
	if address >= 0x200000 {
		var out uint8
		if m.sdaOut() {
			out = 1 << m.sdaOutBit
		}
		return out
	}
	if int(address) < len(m.rom) {
		return m.rom[address]
	}
	return 0
}

// Write implements the Mapper interface. Writes to the EEPROM window
// drive the SCL and SDA lines.
func (m *GenesisEEPROM) Write(address uint32, data uint8) {
	if address < 0x200000 {
		return
	}

	sda := data&(1<<m.sdaInBit) != 0
	scl := data&(1<<m.sclBit) != 0
	m.clock(sda, scl)
}

// sdaOut is the value the EEPROM drives onto SDA.
func (m *GenesisEEPROM) sdaOut() bool {
	if m.state == i2cRead {
		return m.mem[m.address%len(m.mem)]&(0x80>>uint(m.bits)) != 0
	}
	if m.state == i2cAck {
		return false
	}
	return true
}

// clock advances the i2c engine with the new line states.
func (m *GenesisEEPROM) clock(sda bool, scl bool) {
	// start condition: SDA falls while SCL is high
	if m.scl && scl && m.sda && !sda {
		m.state = i2cAddress
		m.bits = 0
		m.shift = 0
	}

	// stop condition: SDA rises while SCL is high
	if m.scl && scl && !m.sda && sda {
		m.state = i2cIdle
	}

	// data is sampled on the rising edge of SCL
	if !m.scl && scl {
		switch m.state {
		case i2cAddress, i2cWrite:
			m.shift = m.shift<<1 | b2u(sda)
			m.bits++
			if m.bits == 8 {
				if m.state == i2cAddress {
					// device address byte: bit 0 selects read mode
					m.reading = m.shift&0x01 == 0x01
					if m.reading {
						m.state = i2cRead
					} else {
						m.state = i2cWrite
						m.expectAddress = true
					}
					// page bits of the word address live in the device
					// address byte
					m.address = m.address&0xff | int(m.shift>>1)&0x07<<8
				} else {
					if m.expectAddress {
						m.address = m.address&^0xff | int(m.shift)
						m.expectAddress = false
					} else {
						m.mem[m.address%len(m.mem)] = m.shift
						m.address++
					}
				}
				m.bits = 0
				m.shift = 0
			}
		case i2cRead:
			m.bits++
			if m.bits == 8 {
				m.bits = 0
				m.address++
			}
		}
	}

	m.sda = sda
	m.scl = scl
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Snapshot implements the Mapper interface.
func (m *GenesisEEPROM) Snapshot() []byte {
	return []byte{byte(m.state), byte(m.address >> 8), byte(m.address), m.shift, byte(m.bits)}
}

// Restore implements the Mapper interface.
func (m *GenesisEEPROM) Restore(state []byte) error {
	if len(state) != 5 {
		return fmt.Errorf("EEPROM: bad snapshot length")
	}
	m.state = int(state[0])
	m.address = int(state[1])<<8 | int(state[2])
	m.shift = state[3]
	m.bits = int(state[4])
	return nil
}

// SRAM implements the Mapper interface. The EEPROM contents persist like
// battery backed RAM.
func (m *GenesisEEPROM) SRAM() []byte {
	return m.mem
}
