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
	"time"
)

// GBMBC covers the Game Boy MBC1, MBC3 and MBC5 controllers. The three
// differ in bank register layout and in the MBC3's real time clock but
// share their structure.
type GBMBC struct {
	variant int // 1, 3 or 5

	rom []byte
	ram []byte

	ramEnabled bool
	romBank    int
	ramBank    int
	mode       uint8

	// MBC3 real time clock
	rtcLatched [5]uint8
	rtcBase    time.Time
	rtcSelect  int
	rtcLatch   uint8
	hasRTC     bool
}

// NewGBMBC creates an MBC mapper of the given variant. ramSize of zero
// means no cartridge RAM.
func NewGBMBC(variant int, rom []byte, ramSize int, rtc bool) *GBMBC {
	m := &GBMBC{
		variant: variant,
		rom:     rom,
		romBank: 1,
		hasRTC:  rtc && variant == 3,
		rtcBase: time.Now(),
	}
	if ramSize > 0 {
		m.ram = newSRAM(ramSize)
	}
	return m
}

// ID implements the Mapper interface.
func (m *GBMBC) ID() string {
	return fmt.Sprintf("MBC%d", m.variant)
}

// Read implements the Mapper interface.
func (m *GBMBC) Read(address uint32) uint8 {
	switch {
	case address < 0x4000:
		return m.rom[int(address)%len(m.rom)]
	case address < 0x8000:
		bank := m.romBank
		if m.variant == 1 && m.mode == 0 {
			bank |= m.ramBank << 5
		}
		return m.rom[(bank*0x4000+int(address-0x4000))%len(m.rom)]
	case address >= 0xa000 && address < 0xc000:
		if !m.ramEnabled {
			return 0xff
		}
		if m.hasRTC && m.rtcSelect >= 0x08 {
			return m.rtcLatched[m.rtcSelect-0x08]
		}
		if m.ram == nil {
			return 0xff
		}
		return m.ram[(m.ramBank*0x2000+int(address-0xa000))%len(m.ram)]
	}
	return 0xff
}

// Write implements the Mapper interface.
func (m *GBMBC) Write(address uint32, data uint8) {
	switch {
	case address < 0x2000:
		m.ramEnabled = data&0x0f == 0x0a
	case address < 0x4000:
		m.writeROMBank(address, data)
	case address < 0x6000:
		if m.hasRTC && data >= 0x08 && data <= 0x0c {
			m.rtcSelect = int(data)
		} else {
			m.rtcSelect = 0
			switch m.variant {
			case 1:
				m.ramBank = int(data) & 0x03
			case 3:
				m.ramBank = int(data) & 0x03
			case 5:
				m.ramBank = int(data) & 0x0f
			}
		}
	case address < 0x8000:
		if m.hasRTC {
			// latch on a 0 to 1 transition
			if m.rtcLatch == 0 && data == 1 {
				m.latchRTC()
			}
			m.rtcLatch = data
		} else if m.variant == 1 {
			m.mode = data & 0x01
		}
	case address >= 0xa000 && address < 0xc000:
		if !m.ramEnabled || m.ram == nil {
			return
		}
		if m.hasRTC && m.rtcSelect >= 0x08 {
			// writes to the live clock are accepted but the emulated
			// clock follows the host clock; only the latched copy changes
			m.rtcLatched[m.rtcSelect-0x08] = data
			return
		}
		m.ram[(m.ramBank*0x2000+int(address-0xa000))%len(m.ram)] = data
	}
}

func (m *GBMBC) writeROMBank(address uint32, data uint8) {
	switch m.variant {
	case 1:
		b := int(data) & 0x1f
		if b == 0 {
			b = 1
		}
		m.romBank = b
	case 3:
		b := int(data) & 0x7f
		if b == 0 {
			b = 1
		}
		m.romBank = b
	case 5:
		// MBC5 splits the 9 bit bank number over two registers; bank 0 is
		// selectable
		if address < 0x3000 {
			m.romBank = m.romBank&0x100 | int(data)
		} else {
			m.romBank = m.romBank&0xff | int(data&0x01)<<8
		}
	}
}

// latchRTC copies the live clock into the latched registers.
func (m *GBMBC) latchRTC() {
	elapsed := time.Since(m.rtcBase)
	s := int(elapsed.Seconds())
	m.rtcLatched[0] = uint8(s % 60)
	m.rtcLatched[1] = uint8(s / 60 % 60)
	m.rtcLatched[2] = uint8(s / 3600 % 24)
	days := s / 86400
	m.rtcLatched[3] = uint8(days)
	m.rtcLatched[4] = uint8(days>>8) & 0x01
}

// Snapshot implements the Mapper interface.
func (m *GBMBC) Snapshot() []byte {
	return []byte{
		b2u(m.ramEnabled),
		byte(m.romBank), byte(m.romBank >> 8),
		byte(m.ramBank),
		m.mode,
		byte(m.rtcSelect),
		m.rtcLatch,
	}
}

// Restore implements the Mapper interface.
func (m *GBMBC) Restore(state []byte) error {
	if len(state) != 7 {
		return fmt.Errorf("MBC%d: bad snapshot length", m.variant)
	}
	m.ramEnabled = state[0] != 0
	m.romBank = int(state[1]) | int(state[2])<<8
	m.ramBank = int(state[3])
	m.mode = state[4]
	m.rtcSelect = int(state[5])
	m.rtcLatch = state[6]
	return nil
}

// SRAM implements the Mapper interface.
func (m *GBMBC) SRAM() []byte {
	return m.ram
}

// GBROM is a Game Boy cartridge with no controller at all.
type GBROM struct {
	rom []byte
}

// NewGBROM creates the mapper.
func NewGBROM(rom []byte) *GBROM {
	return &GBROM{rom: rom}
}

// ID implements the Mapper interface.
func (m *GBROM) ID() string {
	return "ROM"
}

// Read implements the Mapper interface.
func (m *GBROM) Read(address uint32) uint8 {
	if int(address) < len(m.rom) {
		return m.rom[address]
	}
	return 0xff
}

// Write implements the Mapper interface.
func (m *GBROM) Write(_ uint32, _ uint8) {}

// Snapshot implements the Mapper interface.
func (m *GBROM) Snapshot() []byte {
	return nil
}

// Restore implements the Mapper interface.
func (m *GBROM) Restore(_ []byte) error {
	return nil
}

// SRAM implements the Mapper interface.
func (m *GBROM) SRAM() []byte {
	return nil
}

// SMSSega is the standard Sega mapper of the Master System and Game Gear:
// three 16KB slots banked through registers at $FFFC-$FFFF, with optional
// cartridge RAM mappable into slot 2.
type SMSSega struct {
	rom []byte
	ram []byte

	banks   [3]int
	ramCtrl uint8
}

// NewSMSSega creates the mapper.
func NewSMSSega(rom []byte) *SMSSega {
	m := &SMSSega{rom: rom, ram: newSRAM(0x8000)}
	m.banks = [3]int{0, 1, 2}
	return m
}

// ID implements the Mapper interface.
func (m *SMSSega) ID() string {
	return "sega"
}

// Read implements the Mapper interface.
func (m *SMSSega) Read(address uint32) uint8 {
	slot := int(address) >> 14
	offset := int(address) & 0x3fff

	switch slot {
	case 0:
		// the first 1KB is never banked so the interrupt vectors stay put
		if offset < 0x400 {
			return m.rom[offset%len(m.rom)]
		}
		return m.rom[(m.banks[0]*0x4000+offset)%len(m.rom)]
	case 1:
		return m.rom[(m.banks[1]*0x4000+offset)%len(m.rom)]
	case 2:
		if m.ramCtrl&0x08 == 0x08 {
			bank := int(m.ramCtrl>>2) & 0x01
			return m.ram[bank*0x4000+offset]
		}
		return m.rom[(m.banks[2]*0x4000+offset)%len(m.rom)]
	}
	return 0xff
}

// Write implements the Mapper interface. The banking registers live at
// the top of the Z80 address space and are written through the system
// RAM; the bus forwards them here as well.
func (m *SMSSega) Write(address uint32, data uint8) {
	switch address {
	case 0xfffc:
		m.ramCtrl = data
	case 0xfffd:
		m.banks[0] = int(data)
	case 0xfffe:
		m.banks[1] = int(data)
	case 0xffff:
		m.banks[2] = int(data)
	default:
		if address>>14 == 2 && m.ramCtrl&0x08 == 0x08 {
			bank := int(m.ramCtrl>>2) & 0x01
			m.ram[bank*0x4000+int(address&0x3fff)] = data
		}
	}
}

// Snapshot implements the Mapper interface.
func (m *SMSSega) Snapshot() []byte {
	return []byte{byte(m.banks[0]), byte(m.banks[1]), byte(m.banks[2]), m.ramCtrl}
}

// Restore implements the Mapper interface.
func (m *SMSSega) Restore(state []byte) error {
	if len(state) != 4 {
		return fmt.Errorf("sega: bad snapshot length")
	}
	m.banks[0] = int(state[0])
	m.banks[1] = int(state[1])
	m.banks[2] = int(state[2])
	m.ramCtrl = state[3]
	return nil
}

// SRAM implements the Mapper interface.
func (m *SMSSega) SRAM() []byte {
	if m.ramCtrl&0x08 == 0x08 {
		return m.ram
	}
	return nil
}
