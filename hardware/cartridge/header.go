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

package cartridge

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jetsetilly/gophergen/hardware/cartridge/mappers"
	"github.com/jetsetilly/gophergen/logger"
)

// detectSystem decides the console from the file extension, falling back
// to content fingerprints for the ambiguous extensions.
func detectSystem(name string, data []byte) System {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gen", ".md", ".smd":
		return SystemGenesis
	case ".32x":
		return System32X
	case ".sms":
		return SystemSMS
	case ".gg":
		return SystemGameGear
	case ".nes":
		return SystemNES
	case ".sfc", ".smc":
		return SystemSNES
	case ".gb":
		return SystemGB
	case ".gbc":
		return SystemGBC
	case ".bin":
		// a .bin image is a 32X cartridge if the SH-2 security header is
		// present; otherwise it is treated as Genesis
		if has32XSecurityHeader(data) {
			return System32X
		}
		return SystemGenesis
	}

	if len(data) >= 4 && bytes.Equal(data[:4], []byte("NES\x1a")) {
		return SystemNES
	}
	if has32XSecurityHeader(data) {
		return System32X
	}
	if len(data) >= 0x105 && bytes.Contains(data[0x100:0x105], []byte("SEGA")) {
		return SystemGenesis
	}

	return SystemUnknown
}

// has32XSecurityHeader looks for the "MARS CHECK MODE" security code that
// every 32X cartridge carries at $3C0.
func has32XSecurityHeader(data []byte) bool {
	if len(data) < 0x400 {
		return false
	}
	return bytes.Contains(data[0x3c0:0x400], []byte("MARS")) ||
		(len(data) >= 0x120 && bytes.Contains(data[0x100:0x120], []byte("32X")))
}

// smdInterleaved detects the 16KB-block interleaved .smd dump format.
func smdInterleaved(data []byte) bool {
	// the SMD header is 512 bytes; the marker bytes are at 8 and 9
	if len(data) < 0x4200 || len(data)%0x4000 != 512 {
		return false
	}
	return data[8] == 0xaa && data[9] == 0xbb
}

// deinterleaveSMD converts an interleaved .smd image to plain binary.
// Each 16KB block stores the odd bytes in the first half and the even
// bytes in the second.
func deinterleaveSMD(data []byte) []byte {
	data = data[512:]
	out := make([]byte, len(data))
	for block := 0; block*0x4000 < len(data); block++ {
		src := data[block*0x4000 : min((block+1)*0x4000, len(data))]
		dst := out[block*0x4000:]
		half := len(src) / 2
		for i := 0; i < half; i++ {
			dst[i*2+1] = src[i]
			dst[i*2] = src[half+i]
		}
	}
	return out
}

// genesisRegion parses the region field at $1F0 of the Genesis header.
// The documented field is a list of the characters J, U and E but several
// retail cartridges carry off-spec strings; "EUROPE" is recognised as
// PAL/EU.
func genesisRegion(field string) Region {
	field = strings.TrimSpace(strings.TrimRight(field, "\x00"))

	// off-spec variant used by a handful of European releases
	if strings.HasPrefix(field, "EUROPE") {
		return RegionEurope
	}

	// the hex-digit style field encodes a region bitmask
	if len(field) == 1 {
		switch field[0] {
		case '4':
			return RegionAmericas
		case '8', 'C':
			return RegionEurope
		}
	}

	// the documented style: any combination of J, U and E. preference
	// order is U, E, J
	if strings.ContainsRune(field, 'U') {
		return RegionAmericas
	}
	if strings.ContainsRune(field, 'E') {
		return RegionEurope
	}
	if strings.ContainsRune(field, 'J') {
		return RegionJapan
	}

	return RegionAmericas
}

// loadGenesis parses a Genesis/32X ROM image.
func (c *Cartridge) loadGenesis(data []byte) error {
	if smdInterleaved(data) {
		data = deinterleaveSMD(data)
	}

	if len(data) < 0x200 {
		return fmt.Errorf("image too small for a Genesis header")
	}

	c.ROM = data
	c.Title = strings.TrimSpace(string(data[0x120:0x150]))
	c.Checksum = uint16(data[0x18e])<<8 | uint16(data[0x18f])
	c.Region = genesisRegion(string(data[0x1f0:min(0x200, len(data))]))

	serial := strings.TrimSpace(string(data[0x180:0x18e]))

	// the "SEGA DOA" console string marks the Super Street Fighter 2
	// banked board, as does a ROM larger than the 4MB window
	console := strings.TrimSpace(string(data[0x100:0x110]))
	if strings.Contains(console, "SEGA DOA") || len(data) > 0x400000 {
		c.Mapper = mappers.NewGenesisSSF(data)
		return nil
	}

	// serial numbers of the retail EEPROM boards
	if eepromSize, ok := eepromCarts[serial]; ok {
		c.Mapper = mappers.NewGenesisEEPROM(data, eepromSize, 0, 1, 0)
		return nil
	}

	// SRAM window from the header, if declared
	var sramStart, sramEnd uint32
	if data[0x1b0] == 'R' && data[0x1b1] == 'A' {
		sramStart = uint32(data[0x1b4])<<24 | uint32(data[0x1b5])<<16 | uint32(data[0x1b6])<<8 | uint32(data[0x1b7])
		sramEnd = uint32(data[0x1b8])<<24 | uint32(data[0x1b9])<<16 | uint32(data[0x1ba])<<8 | uint32(data[0x1bb])
		sramStart &= 0x3fffff
		sramEnd &= 0x3fffff
		logger.Logf(logger.Allow, "cartridge", "SRAM window %06x-%06x", sramStart, sramEnd)
	}

	c.Mapper = mappers.NewGenesisFlat(data, sramStart, sramEnd)
	return nil
}

// serial numbers of Genesis cartridges with serial EEPROM saves, with the
// EEPROM capacity in bytes.
var eepromCarts = map[string]int{
	"T-50176":     128,  // Rings of Power
	"T-50396":     128,  // NHLPA Hockey 93
	"T-50446":     128,  // John Madden 93
	"T-50516":     128,  // John Madden 93 Championship
	"T-12046":     128,  // Megaman: The Wily Wars
	"T-12053":     128,  // Rockman Mega World
	"MK-1215":     128,  // Evander Holyfield Boxing
	"MK-1228":     128,  // Greatest Heavyweights
	"G-5538":      128,  // Greatest Heavyweights JP
	"PR-1993":     128,  // Greatest Heavyweights US
	"T-081326":    1024, // NBA Jam
	"T-81033":     1024, // NBA Jam JP
	"T-081276":    2048, // NBA Jam TE
	"T-81406":     2048, // NBA Jam TE alt
	"T-8101428":   2048, // College Slam
	"T-8101676":   2048, // Frank Thomas Big Hurt Baseball
}

// loadSMS parses a Master System / Game Gear ROM image.
func (c *Cartridge) loadSMS(data []byte) error {
	// the TMR SEGA header lives at one of three offsets; absence is
	// tolerated (very early releases have none)
	for _, off := range []int{0x1ff0, 0x3ff0, 0x7ff0} {
		if len(data) >= off+16 && bytes.Equal(data[off:off+8], []byte("TMR SEGA")) {
			rc := data[off+15] >> 4
			switch rc {
			case 3, 4:
				c.Region = RegionJapan
			case 5, 6, 7:
				// export SMS/GG. the SMS has no region in this field
				// beyond Japan/export; default to the Americas
				c.Region = RegionAmericas
			}
			break
		}
	}

	c.ROM = data
	c.Mapper = mappers.NewSMSSega(data)
	return nil
}

// loadNES parses an iNES image.
func (c *Cartridge) loadNES(data []byte) error {
	if len(data) < 16 || !bytes.Equal(data[:4], []byte("NES\x1a")) {
		return fmt.Errorf("not an iNES image")
	}

	prgSize := int(data[4]) * 0x4000
	chrSize := int(data[5]) * 0x2000
	mapperNum := int(data[6]>>4) | int(data[7]&0xf0)

	mirror := mappers.MirrorHorizontal
	if data[6]&0x01 == 0x01 {
		mirror = mappers.MirrorVertical
	}
	if data[6]&0x08 == 0x08 {
		mirror = mappers.MirrorFourScreen
	}

	// battery flag implies PRG-RAM. plenty of headers declare PRG-RAM
	// without the battery flag too; byte 8 is the (often zero) RAM size
	prgRAM := data[6]&0x02 == 0x02 || data[8] > 0 || mapperNum == 1 || mapperNum == 4 || mapperNum == 2

	offset := 16
	if data[6]&0x04 == 0x04 {
		// trainer
		offset += 512
	}

	if len(data) < offset+prgSize+chrSize {
		return fmt.Errorf("iNES image truncated")
	}

	prg := data[offset : offset+prgSize]
	chr := data[offset+prgSize : offset+prgSize+chrSize]

	switch mapperNum {
	case 0:
		c.Mapper = mappers.NewNROM(prg, chr, prgRAM, mirror)
	case 1:
		c.Mapper = mappers.NewMMC1(prg, chr, prgRAM)
	case 2:
		c.Mapper = mappers.NewUxROM(prg, chr, prgRAM, mirror)
	case 3:
		c.Mapper = mappers.NewCNROM(prg, chr, prgRAM, mirror)
	case 4:
		c.Mapper = mappers.NewMMC3(prg, chr, prgRAM, mirror)
	case 7:
		c.Mapper = mappers.NewAxROM(prg, chr, prgRAM)
	default:
		return fmt.Errorf("unsupported iNES mapper %d", mapperNum)
	}

	c.ROM = data
	c.Region = RegionAmericas
	if data[9]&0x01 == 0x01 {
		c.Region = RegionEurope
	}
	return nil
}

// loadSNES parses a SNES image, scoring the LoROM and HiROM header
// locations against each other.
func (c *Cartridge) loadSNES(data []byte) error {
	// strip the 512 byte copier header if present
	if len(data)%0x8000 == 512 {
		data = data[512:]
	}
	if len(data) < 0x10000 {
		return fmt.Errorf("image too small for a SNES header")
	}

	scoreAt := func(base int) int {
		if len(data) < base+0x30 {
			return -1
		}
		var score int
		// checksum and complement at base+$2C
		sum := uint16(data[base+0x2e]) | uint16(data[base+0x2f])<<8
		cmp := uint16(data[base+0x2c]) | uint16(data[base+0x2d])<<8
		if sum^cmp == 0xffff {
			score += 4
		}
		// the title area should be printable
		printable := true
		for _, ch := range data[base : base+21] {
			if ch != 0 && (ch < 0x20 || ch > 0x7e) {
				printable = false
				break
			}
		}
		if printable {
			score += 2
		}
		// the map mode byte agrees with the location
		mode := data[base+0x15] & 0x0f
		if base == 0x7fc0 && mode == 0x00 || base == 0xffc0 && mode == 0x01 {
			score += 2
		}
		return score
	}

	lo := scoreAt(0x7fc0)
	hi := scoreAt(0xffc0)
	hirom := hi > lo

	base := 0x7fc0
	if hirom {
		base = 0xffc0
	}

	c.ROM = data
	c.Title = strings.TrimSpace(string(data[base : base+21]))

	sramSize := 0
	if data[base+0x18] > 0 && data[base+0x18] <= 0x0c {
		sramSize = 0x400 << uint(data[base+0x18])
	}

	switch data[base+0x19] {
	case 0x00, 0x01:
		c.Region = RegionJapan
	case 0x02, 0x0d:
		c.Region = RegionAmericas
	default:
		c.Region = RegionEurope
	}

	c.Mapper = mappers.NewSNESROM(data, hirom, sramSize)
	return nil
}

// loadGB parses a Game Boy image.
func (c *Cartridge) loadGB(data []byte) error {
	if len(data) < 0x150 {
		return fmt.Errorf("image too small for a Game Boy header")
	}

	c.ROM = data
	c.Title = strings.TrimSpace(string(bytes.TrimRight(data[0x134:0x143], "\x00")))

	if data[0x143]&0x80 == 0x80 {
		c.System = SystemGBC
	}

	ramSize := 0
	switch data[0x149] {
	case 0x02:
		ramSize = 0x2000
	case 0x03:
		ramSize = 0x8000
	case 0x04:
		ramSize = 0x20000
	case 0x05:
		ramSize = 0x10000
	}

	cartType := data[0x147]
	switch cartType {
	case 0x00, 0x08, 0x09:
		c.Mapper = mappers.NewGBROM(data)
	case 0x01, 0x02, 0x03:
		c.Mapper = mappers.NewGBMBC(1, data, ramSize, false)
	case 0x0f, 0x10, 0x11, 0x12, 0x13:
		rtc := cartType == 0x0f || cartType == 0x10
		c.Mapper = mappers.NewGBMBC(3, data, ramSize, rtc)
	case 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e:
		c.Mapper = mappers.NewGBMBC(5, data, ramSize, false)
	default:
		return fmt.Errorf("unsupported cartridge type %02x", cartType)
	}

	// the GB has no region coding
	c.Region = RegionAmericas
	return nil
}
