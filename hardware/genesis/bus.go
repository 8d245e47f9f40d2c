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

package genesis

import (
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
)

// buildM68KBus lays out the 68000's address space.
func (g *Genesis) buildM68KBus() {
	m := memorymap.NewMap("genesis 68K bus")

	// cartridge window
	m.Add(memorymap.Area{
		Label: "cartridge",
		Start: 0x000000,
		End:   0x3fffff,
		Read8: func(address uint32) uint8 {
			return g.cart.Mapper.Read(address)
		},
		Write8: func(address uint32, data uint8) {
			g.cart.Mapper.Write(address, data)
		},
	})

	// Z80 address space as seen by the 68000. accessible only while the
	// 68000 holds the Z80 bus
	m.Add(memorymap.Area{
		Label: "Z80 space",
		Start: 0xa00000,
		End:   0xa0ffff,
		Read8: func(address uint32) uint8 {
			if !g.zBusReq {
				// reading the Z80 space without the bus returns open bus
				return uint8(g.busM.OpenBus() >> 8)
			}
			return g.z80Read(address & 0x7fff)
		},
		Write8: func(address uint32, data uint8) {
			if g.zBusReq {
				g.z80Write(address&0x7fff, data)
			}
		},
	})

	// I/O area: version register and controller ports
	m.Add(memorymap.Area{
		Label:  "I/O",
		Start:  0xa10000,
		End:    0xa1001f,
		Read8:  g.ioRead,
		Write8: g.ioWrite,
	})

	// Z80 bus request
	m.Add(memorymap.Area{
		Label: "Z80 busreq",
		Start: 0xa11100,
		End:   0xa11101,
		Read16: func(_ uint32) uint16 {
			// bit 8 clear means the bus has been granted to the 68000
			if g.zBusReq || g.zReset {
				return 0x0000
			}
			return 0x0100
		},
		Write16: func(_ uint32, data uint16) {
			req := data&0x0100 == 0x0100
			if req != g.zBusReq {
				g.zBusReq = req
				g.Z80.Halt(req || g.zReset)
				g.Drv.Sync(g.Drv.Now())
			}
		},
	})

	// Z80 reset. writing 0 asserts reset; the YM2612 shares the line
	m.Add(memorymap.Area{
		Label: "Z80 reset",
		Start: 0xa11200,
		End:   0xa11201,
		Write16: func(_ uint32, data uint16) {
			reset := data&0x0100 == 0
			if reset != g.zReset {
				g.zReset = reset
				if reset {
					g.FM.Reset()
					g.Z80.Reset()
				}
				g.Z80.Halt(g.zBusReq || g.zReset)
				g.Drv.Sync(g.Drv.Now())
			}
		},
	})

	// VDP ports. data at +0/+2, control at +4/+6, HV counter at +8
	m.Add(memorymap.Area{
		Label: "VDP",
		Start: 0xc00000,
		End:   0xc0000f,
		Read16: func(address uint32) uint16 {
			switch address & 0x0e {
			case 0x00, 0x02:
				return g.VDP.ReadData()
			case 0x04, 0x06:
				return g.VDP.ReadStatus()
			default:
				return g.VDP.ReadHV()
			}
		},
		Write16: func(address uint32, data uint16) {
			switch address & 0x0e {
			case 0x00, 0x02:
				g.VDP.WriteData(data)
			case 0x04, 0x06:
				g.VDP.WriteControl(data)
			}
		},
	})

	// PSG sits in the VDP's address range at +$11
	m.Add(memorymap.Area{
		Label: "PSG",
		Start: 0xc00010,
		End:   0xc00017,
		Write8: func(_ uint32, data uint8) {
			g.PSG.Write(data)
		},
	})

	// work RAM, mirrored through the top of the address space
	m.Add(memorymap.Area{
		Label: "work RAM",
		Start: 0xe00000,
		End:   0xffffff,
		Read8: func(address uint32) uint8 {
			return g.workRAM[address&0xffff]
		},
		Write8: func(address uint32, data uint8) {
			g.workRAM[address&0xffff] = data
		},
	})

	g.busM = m
}

// buildZ80Bus lays out the Z80's address space.
func (g *Genesis) buildZ80Bus() {
	m := memorymap.NewMap("genesis Z80 bus")

	m.Add(memorymap.Area{
		Label: "sound RAM",
		Start: 0x0000,
		End:   0x3fff,
		Read8: func(address uint32) uint8 {
			return g.soundRAM[address&0x1fff]
		},
		Write8: func(address uint32, data uint8) {
			g.soundRAM[address&0x1fff] = data
		},
	})

	m.Add(memorymap.Area{
		Label:  "YM2612",
		Start:  0x4000,
		End:    0x5fff,
		Read8:  func(_ uint32) uint8 { return g.FM.ReadStatus() },
		Write8: g.fmWrite,
	})

	// bank register: sequential writes of bit 0 build the 68000 address
	// window
	m.Add(memorymap.Area{
		Label: "bank register",
		Start: 0x6000,
		End:   0x60ff,
		Write8: func(_ uint32, data uint8) {
			g.z80Bank = g.z80Bank>>1 | uint32(data&0x01)<<8
		},
	})

	m.Add(memorymap.Area{
		Label: "PSG",
		Start: 0x7f00,
		End:   0x7fff,
		Write8: func(address uint32, data uint8) {
			if address&0xff == 0x11 {
				g.PSG.Write(data)
			}
		},
	})

	// the banked window into 68000 space
	m.Add(memorymap.Area{
		Label: "68K window",
		Start: 0x8000,
		End:   0xffff,
		Read8: func(address uint32) uint8 {
			return g.busM.Read8(g.z80Bank<<15 | address&0x7fff)
		},
		Write8: func(address uint32, data uint8) {
			g.busM.Write8(g.z80Bank<<15|address&0x7fff, data)
		},
	})

	g.busZ = m
}

// z80Read services 68000 reads into the Z80 address space.
func (g *Genesis) z80Read(address uint32) uint8 {
	return g.busZ.Read8(address)
}

// z80Write services 68000 writes into the Z80 address space.
func (g *Genesis) z80Write(address uint32, data uint8) {
	g.busZ.Write8(address, data)
}

// fmWrite routes a Z80 (or banked 68000) write to the YM2612's four
// ports.
func (g *Genesis) fmWrite(address uint32, data uint8) {
	switch address & 0x03 {
	case 0:
		g.FM.WriteAddr(0, data)
	case 1:
		g.FM.WriteData(0, data)
	case 2:
		g.FM.WriteAddr(1, data)
	case 3:
		g.FM.WriteData(1, data)
	}
}

// ioRead services the I/O area: version register and controller ports.
func (g *Genesis) ioRead(address uint32) uint8 {
	switch address & 0x1e {
	case 0x00:
		// version register: export machine, expansion absent. bit 6 set
		// for PAL
		v := uint8(0xa0)
		if g.pal {
			v |= 0x40
		}
		return v
	case 0x02, 0x04:
		port := int(address>>1&0x0f) - 1
		if port >= 0 && port < 2 {
			// combine the pad's data lines with the latched output bits
			// on lines configured as outputs
			in := g.pads[port].Read()
			ctrl := g.padCtrl[port]
			return in&^ctrl | g.padData[port]&ctrl | 0x40&g.padData[port]
		}
		return 0x7f
	case 0x08, 0x0a, 0x0c:
		port := int(address>>1&0x0f) - 4
		if port >= 0 && port < 2 {
			return g.padCtrl[port]
		}
		return 0
	}
	return 0
}

// ioWrite services writes to the I/O area.
func (g *Genesis) ioWrite(address uint32, data uint8) {
	switch address & 0x1e {
	case 0x02, 0x04:
		port := int(address>>1&0x0f) - 1
		if port >= 0 && port < 2 {
			g.padData[port] = data
			g.pads[port].WriteTH(data&0x40 == 0x40)
		}
	case 0x08, 0x0a, 0x0c:
		port := int(address>>1&0x0f) - 4
		if port >= 0 && port < 2 {
			g.padCtrl[port] = data
		}
	}
}
