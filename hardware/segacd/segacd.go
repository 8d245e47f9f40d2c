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

// Package segacd is the Sega CD expansion: the sub-68000 with its
// program RAM and word RAM, the CD drive and CDC/CDD control logic, and
// the RF5C164 PCM chip, all folded into the Genesis clock domain.
package segacd

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/cdrom"
	"github.com/jetsetilly/gophergen/hardware/clocks"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/memory/memorymap"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/hardware/segacd/rf5c164"
)

// memory sizes.
const (
	PRGRAMSize  = 0x80000
	WordRAMSize = 0x40000
)

// CDD command codes, as issued by the BIOS through the gate array.
// Commands 4 and 5 are unused by the documented BIOS.
const (
	CDDCmdStop         = 0
	CDDCmdReportStatus = 1
	CDDCmdRead         = 2
	CDDCmdSeek         = 3
	CDDCmdPause        = 6
)

// SegaCD is the expansion unit.
type SegaCD struct {
	Sub *scheduler.Host

	Drive *cdrom.Drive
	PCM   *rf5c164.RF5C164

	prgRAM  [PRGRAMSize]byte
	wordRAM [WordRAMSize]byte

	// word RAM assignment: true when the sub CPU owns it
	wordRAMSub bool

	busSub *memorymap.Map

	// CDC data buffer: the most recent data sector
	dataBuf   [cdrom.SectorSize]byte
	dataReady bool
	dataLBA   int

	masterHz int64
}

// NewSegaCD is the preferred method of initialisation for the SegaCD
// type. The disc may be nil (no disc in the drive).
func NewSegaCD(disc *cdrom.Disc, subFactory func(bus.Bus16) scheduler.Decoder, drv *scheduler.Driver, masterHz int64, pcmRing *mix.Ring, cddaRing *mix.Ring) (*SegaCD, error) {
	if disc == nil {
		return nil, fmt.Errorf("segacd: no disc")
	}

	s := &SegaCD{masterHz: masterHz}

	s.Drive = cdrom.NewDrive(disc, masterHz, cddaRing)
	s.Drive.SetDataCallback(func(lba int, sector []byte) {
		copy(s.dataBuf[:], sector)
		s.dataLBA = lba
		s.dataReady = true
	})

	s.buildSubBus(pcmRing)

	// the sub 68000 runs from the expansion's own 12.5MHz crystal,
	// expressed against the Genesis master clock
	ratio := scheduler.Ticks(masterHz / clocks.SegaCDSub68KHz)
	s.Sub = scheduler.NewHost("sub68K", subFactory(s.busSub), drv, ratio)
	drv.AddProcessor(s.Sub)

	return s, nil
}

// buildSubBus lays out the sub-68000's address space.
func (s *SegaCD) buildSubBus(pcmRing *mix.Ring) {
	m := memorymap.NewMap("segacd sub bus")

	// the PCM chip divides its 12.5MHz clock by 384; expressed against
	// the Genesis master clock
	pcmDivider := s.masterHz * clocks.SegaCDPCMDivider / clocks.SegaCDSub68KHz
	pcm := rf5c164.NewRF5C164(pcmRing, pcmDivider)
	s.PCM = pcm

	m.Add(memorymap.Area{
		Label: "PRG RAM",
		Start: 0x000000,
		End:   0x07ffff,
		Read8: func(address uint32) uint8 {
			return s.prgRAM[address]
		},
		Write8: func(address uint32, data uint8) {
			s.prgRAM[address] = data
		},
	})

	m.Add(memorymap.Area{
		Label: "word RAM",
		Start: 0x080000,
		End:   0x0bffff,
		Read8: func(address uint32) uint8 {
			return s.wordRAM[address-0x080000]
		},
		Write8: func(address uint32, data uint8) {
			if s.wordRAMSub {
				s.wordRAM[address-0x080000] = data
			}
		},
	})

	// PCM chip: registers in the low half of its window, waveform RAM
	// bank in the upper
	m.Add(memorymap.Area{
		Label: "PCM",
		Start: 0xff0000,
		End:   0xff3fff,
		Read8: func(address uint32) uint8 {
			if address >= 0xff2000 {
				return pcm.ReadRAM(uint16(address & 0x1fff >> 1))
			}
			return 0
		},
		Write8: func(address uint32, data uint8) {
			if address >= 0xff2000 {
				pcm.WriteRAM(uint16(address&0x1fff>>1), data)
			} else {
				pcm.WriteRegister(int(address>>1)&0x0f, data)
			}
		},
	})

	// gate array registers
	m.Add(memorymap.Area{
		Label:  "gate array",
		Start:  0xff8000,
		End:    0xff81ff,
		Read8:  s.gateRead,
		Write8: s.gateWrite,
	})

	s.busSub = m
}

// GateRead services a gate array register read. The gate array is
// visible from both the main and sub sides of the machine.
func (s *SegaCD) GateRead(address uint32) uint8 {
	return s.gateRead(address)
}

// GateWrite services a gate array register write.
func (s *SegaCD) GateWrite(address uint32, data uint8) {
	s.gateWrite(address, data)
}

// gateRead services the gate array registers.
func (s *SegaCD) gateRead(address uint32) uint8 {
	switch address & 0x1ff {
	case 0x03:
		// memory mode: word RAM assignment in bit 0
		if s.wordRAMSub {
			return 0x01
		}
		return 0x00
	case 0x37:
		// CDD control: HOCK bit reads back
		return 0x04
	}
	return 0
}

// gateWrite services the gate array registers.
func (s *SegaCD) gateWrite(address uint32, data uint8) {
	switch address & 0x1ff {
	case 0x03:
		s.wordRAMSub = data&0x01 == 0x01
	case 0x42:
		// CDD command word 0: the command code. the full ten nibble
		// command block protocol is reduced to its effect
		s.cddCommand(int(data & 0x0f))
	}
}

// cddCommand services a CDD command.
func (s *SegaCD) cddCommand(cmd int) {
	switch cmd {
	case CDDCmdStop:
		s.Drive.Stop()
	case CDDCmdRead:
		s.Drive.Play(s.Drive.Head())
	case CDDCmdSeek:
		s.Drive.Play(s.dataLBA)
	case CDDCmdPause:
		s.Drive.Pause()
	}
}

// PlayFrom points the drive at a sector and starts reading. Exposed for
// the BIOS-less boot path used by the tests.
func (s *SegaCD) PlayFrom(lba int) {
	s.Drive.Play(lba)
}

// DataSector returns the most recent data sector and its LBA, clearing
// the ready flag.
func (s *SegaCD) DataSector() (int, []byte, bool) {
	if !s.dataReady {
		return 0, nil, false
	}
	s.dataReady = false
	return s.dataLBA, s.dataBuf[:], true
}

// StepDevices advances the drive and PCM chip. Registered with the clock
// driver by the host system.
func (s *SegaCD) StepDevices(ticks int64) {
	s.Drive.Step(ticks)
	s.PCM.Step(ticks)
}
