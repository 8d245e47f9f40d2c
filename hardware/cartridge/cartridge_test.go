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

package cartridge_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/test"
)

// genesisImage builds a minimal Genesis ROM image with the given console
// string and region field.
func genesisImage(console string, region string, size int) []byte {
	data := make([]byte, size)
	copy(data[0x100:], []byte(console))
	copy(data[0x120:], []byte("TEST TITLE"))
	copy(data[0x180:], []byte("T-000000"))
	copy(data[0x1f0:], []byte(region))
	return data
}

func TestGenesisRegionEurope(t *testing.T) {
	// the off-spec "EUROPE" region string selects PAL/EU
	cart, err := cartridge.Load("test.gen", genesisImage("SEGA MEGA DRIVE", "EUROPE", 0x1000), cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cart.System, cartridge.SystemGenesis)
	test.ExpectEquality(t, cart.Region, cartridge.RegionEurope)
	test.ExpectSuccess(t, cart.Region.PAL())
}

func TestGenesisRegionField(t *testing.T) {
	for _, tc := range []struct {
		field  string
		region cartridge.Region
	}{
		{"JUE", cartridge.RegionAmericas},
		{"J", cartridge.RegionJapan},
		{"E", cartridge.RegionEurope},
		{"U", cartridge.RegionAmericas},
		{"4", cartridge.RegionAmericas},
		{"8", cartridge.RegionEurope},
	} {
		cart, err := cartridge.Load("test.gen", genesisImage("SEGA MEGA DRIVE", tc.field, 0x1000), cartridge.SystemUnknown)
		test.ExpectSuccess(t, err)
		test.ExpectEquality(t, cart.Region, tc.region)
	}
}

func TestGenesisSSFDetection(t *testing.T) {
	// the "SEGA DOA" console string selects the SSF banked mapper
	cart, err := cartridge.Load("test.gen", genesisImage("SEGA DOA", "JUE", 0x1000), cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cart.Mapper.ID(), "SSF")

	// so does a ROM too large for the 4MB window
	big, err := cartridge.Load("test.gen", genesisImage("SEGA MEGA DRIVE", "JUE", 0x500000), cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, big.Mapper.ID(), "SSF")
}

func TestSMDDeinterleave(t *testing.T) {
	// build a plain image, interleave it into .smd layout, and check the
	// loader undoes the interleave
	plain := genesisImage("SEGA MEGA DRIVE", "JUE", 0x4000)
	for i := 0x200; i < 0x4000; i++ {
		plain[i] = byte(i * 7)
	}

	smd := make([]byte, 512+0x4000)
	smd[8] = 0xaa
	smd[9] = 0xbb
	for i := 0; i < 0x2000; i++ {
		smd[512+i] = plain[i*2+1]
		smd[512+0x2000+i] = plain[i*2]
	}

	cart, err := cartridge.Load("test.smd", smd, cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(cart.ROM), 0x4000)
	for i := range plain {
		if cart.ROM[i] != plain[i] {
			t.Fatalf("deinterleaved ROM differs at %04x", i)
		}
	}
}

// nesImage builds a minimal iNES image.
func nesImage(mapperNum int, prgBanks int, battery bool) []byte {
	data := make([]byte, 16+prgBanks*0x4000+0x2000)
	copy(data, []byte("NES\x1a"))
	data[4] = byte(prgBanks)
	data[5] = 1
	data[6] = byte(mapperNum << 4)
	if battery {
		data[6] |= 0x02
	}
	return data
}

func TestNESUxROMPRGRAM(t *testing.T) {
	// a UxROM cartridge with PRG-RAM declared: reads of $6000-$7FFF
	// return RAM contents, not open bus
	cart, err := cartridge.Load("test.nes", nesImage(2, 2, true), cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cart.Mapper.ID(), "UxROM")

	// power-on RAM contents are all ones, matching the hardware
	test.ExpectEquality(t, cart.Mapper.Read(0x6000), uint8(0xff))

	cart.Mapper.Write(0x6123, 0x42)
	test.ExpectEquality(t, cart.Mapper.Read(0x6123), uint8(0x42))
}

func TestNESUnsupportedMapper(t *testing.T) {
	// unsupported mappers are load errors, not runtime failures
	_, err := cartridge.Load("test.nes", nesImage(200, 2, false), cartridge.SystemUnknown)
	test.ExpectFailure(t, err)
}

func TestUxROMBanking(t *testing.T) {
	img := nesImage(2, 4, false)
	// tag each PRG bank with its number
	for b := 0; b < 4; b++ {
		img[16+b*0x4000] = byte(b + 1)
	}

	cart, err := cartridge.Load("test.nes", img, cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)

	// the last bank is fixed at $C000
	test.ExpectEquality(t, cart.Mapper.Read(0xc000), uint8(4))

	// the $8000 bank switches
	test.ExpectEquality(t, cart.Mapper.Read(0x8000), uint8(1))
	cart.Mapper.Write(0x8000, 0x02)
	test.ExpectEquality(t, cart.Mapper.Read(0x8000), uint8(3))
}

func TestSRAMInitialisedToOnes(t *testing.T) {
	img := genesisImage("SEGA MEGA DRIVE", "JUE", 0x1000)
	// declare an SRAM window at $200000-$203FFF
	img[0x1b0] = 'R'
	img[0x1b1] = 'A'
	img[0x1b4] = 0x00
	img[0x1b5] = 0x20
	img[0x1b6] = 0x00
	img[0x1b7] = 0x00
	img[0x1b8] = 0x00
	img[0x1b9] = 0x20
	img[0x1ba] = 0x3f
	img[0x1bb] = 0xff

	cart, err := cartridge.Load("test.gen", img, cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)

	sram := cart.Mapper.SRAM()
	test.ExpectSuccess(t, sram != nil)
	for _, b := range sram {
		if b != 0xff {
			t.Fatal("SRAM not initialised to all ones")
		}
	}
}

func TestGBHeader(t *testing.T) {
	data := make([]byte, 0x8000)
	copy(data[0x134:], []byte("TESTGAME"))
	data[0x147] = 0x13 // MBC3+RAM+BATTERY
	data[0x149] = 0x03 // 32KB RAM

	cart, err := cartridge.Load("test.gb", data, cartridge.SystemUnknown)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cart.Mapper.ID(), "MBC3")
	test.ExpectEquality(t, cart.Title, "TESTGAME")
	test.ExpectEquality(t, len(cart.Mapper.SRAM()), 0x8000)
}
