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

// Package cartridge holds a loaded ROM image, its parsed header and the
// mapper that presents it to the console's bus.
//
// The ROM data is immutable once loaded. The mapper owns all mutable
// banking state; battery backed RAM is exposed by the mapper for the
// session to persist at teardown.
package cartridge

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/cartridge/mappers"
	"github.com/jetsetilly/gophergen/hardware/cdrom"
)

// System identifies the console a cartridge is for.
type System int

// List of valid System values.
const (
	SystemUnknown System = iota
	SystemGenesis
	System32X
	SystemSegaCD
	SystemSMS
	SystemGameGear
	SystemNES
	SystemSNES
	SystemGB
	SystemGBC
)

func (s System) String() string {
	switch s {
	case SystemGenesis:
		return "Genesis"
	case System32X:
		return "32X"
	case SystemSegaCD:
		return "Sega CD"
	case SystemSMS:
		return "Master System"
	case SystemGameGear:
		return "Game Gear"
	case SystemNES:
		return "NES"
	case SystemSNES:
		return "SNES"
	case SystemGB:
		return "Game Boy"
	case SystemGBC:
		return "Game Boy Color"
	}
	return "unknown"
}

// Region is the market region encoded in a cartridge header.
type Region int

// List of valid Region values.
const (
	RegionAuto Region = iota
	RegionJapan
	RegionAmericas
	RegionEurope
)

func (r Region) String() string {
	switch r {
	case RegionJapan:
		return "JP"
	case RegionAmericas:
		return "US"
	case RegionEurope:
		return "EU"
	}
	return "auto"
}

// PAL returns true for regions with 50Hz displays.
func (r Region) PAL() bool {
	return r == RegionEurope
}

// Cartridge is a loaded ROM image plus its mapper.
type Cartridge struct {
	// the name of the cartridge, from the loader
	Name string

	System System
	Region Region

	// the ROM image after any de-interleaving. immutable
	ROM []byte

	// the mapper routing bus accesses into the ROM and any on-cartridge
	// RAM
	Mapper mappers.Mapper

	// the disc image for a Sega CD session. nil for every cartridge
	// based system
	Disc *cdrom.Disc

	// header fields of interest to the session
	Title    string
	Checksum uint16
}

// Load parses the ROM image and attaches the appropriate mapper. The
// system argument can be SystemUnknown, in which case the system is
// detected from the image.
func Load(name string, data []byte, system System) (*Cartridge, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cartridge: %s: empty ROM image", name)
	}

	if system == SystemUnknown {
		system = detectSystem(name, data)
	}

	cart := &Cartridge{
		Name:   name,
		System: system,
	}

	var err error
	switch system {
	case SystemGenesis, System32X:
		err = cart.loadGenesis(data)
	case SystemSMS, SystemGameGear:
		err = cart.loadSMS(data)
	case SystemNES:
		err = cart.loadNES(data)
	case SystemSNES:
		err = cart.loadSNES(data)
	case SystemGB, SystemGBC:
		err = cart.loadGB(data)
	case SystemSegaCD:
		// the Sega CD has no cartridge; sessions start from a disc
		// image through NewDiscCartridge
		err = fmt.Errorf("Sega CD sessions load from a disc image, not a ROM file")
	default:
		err = fmt.Errorf("unrecognised ROM image")
	}

	if err != nil {
		return nil, fmt.Errorf("cartridge: %s: %w", name, err)
	}

	return cart, nil
}

// NewDiscCartridge builds the cartridge record for a Sega CD session:
// an opened disc and an empty cartridge slot. The region defaults to
// the Americas; the environment's region override applies as usual.
func NewDiscCartridge(name string, disc *cdrom.Disc) *Cartridge {
	return &Cartridge{
		Name:   name,
		System: SystemSegaCD,
		Region: RegionAmericas,
		Disc:   disc,
		Mapper: mappers.NewGenesisFlat(nil, 0, 0),
	}
}

// End flushes any battery backed RAM through the provided persist
// function. Called at session teardown and at explicit save points.
func (c *Cartridge) End(persist func(sram []byte) error) error {
	if c.Mapper == nil {
		return nil
	}
	sram := c.Mapper.SRAM()
	if sram == nil || persist == nil {
		return nil
	}
	if err := persist(sram); err != nil {
		return fmt.Errorf("cartridge: %s: %w", c.Name, err)
	}
	return nil
}
