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

package hardware

import (
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/gb"
	"github.com/jetsetilly/gophergen/hardware/genesis"
	"github.com/jetsetilly/gophergen/hardware/memory/bus"
	"github.com/jetsetilly/gophergen/hardware/nes"
	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/hardware/sms"
	"github.com/jetsetilly/gophergen/hardware/snes"
)

// Decoders is the registry of CPU instruction decoders. The decoder
// packages fill this in at init time; a console cannot be built for a
// system whose decoders are absent from the build.
//
// Decoders are pure functions over the bus they are created with. They
// are developed and tested against per-opcode reference vectors in
// their own repositories.
var Decoders struct {
	M68K   func(bus.Bus16) scheduler.Decoder
	Z80    func(bus.Bus8) scheduler.Decoder
	SH2    func(bus.Bus16) scheduler.Decoder
	M6502  func(bus.Bus8) scheduler.Decoder
	W65816 func(bus.Bus8) scheduler.Decoder
	SPC700 func(bus.Bus8) scheduler.Decoder
	SM83   func(bus.Bus8) scheduler.Decoder
}

// NewConsole builds the system core for the loaded cartridge.
func NewConsole(cart *cartridge.Cartridge, hostRate int) (Console, error) {
	missing := func(name string) error {
		return fmt.Errorf("hardware: no %s decoder in this build", name)
	}

	newGenesis := func() (*genesis.Genesis, error) {
		if Decoders.M68K == nil {
			return nil, missing("68000")
		}
		if Decoders.Z80 == nil {
			return nil, missing("Z80")
		}
		return genesis.NewGenesis(cart, genesis.DecoderFactories{
			M68K: Decoders.M68K,
			Z80:  Decoders.Z80,
		}, hostRate), nil
	}

	switch cart.System {
	case cartridge.SystemGenesis:
		return newGenesis()

	case cartridge.System32X:
		if Decoders.SH2 == nil {
			return nil, missing("SH-2")
		}
		g, err := newGenesis()
		if err != nil {
			return nil, err
		}
		g.AttachS32X(Decoders.SH2, Decoders.SH2)
		return g, nil

	case cartridge.SystemSegaCD:
		if cart.Disc == nil {
			return nil, fmt.Errorf("hardware: Sega CD needs a disc image")
		}
		g, err := newGenesis()
		if err != nil {
			return nil, err
		}
		// the sub processor is another 68000
		if err := g.AttachSegaCD(cart.Disc, Decoders.M68K); err != nil {
			return nil, err
		}
		return g, nil

	case cartridge.SystemSMS, cartridge.SystemGameGear:
		if Decoders.Z80 == nil {
			return nil, missing("Z80")
		}
		return sms.NewSMS(cart, Decoders.Z80, hostRate), nil

	case cartridge.SystemNES:
		if Decoders.M6502 == nil {
			return nil, missing("6502")
		}
		return nes.NewNES(cart, Decoders.M6502, hostRate)

	case cartridge.SystemSNES:
		if Decoders.W65816 == nil {
			return nil, missing("65C816")
		}
		if Decoders.SPC700 == nil {
			return nil, missing("SPC700")
		}
		return snes.NewSNES(cart, snes.DecoderFactories{
			CPU:    Decoders.W65816,
			SPC700: Decoders.SPC700,
		}, hostRate)

	case cartridge.SystemGB, cartridge.SystemGBC:
		if Decoders.SM83 == nil {
			return nil, missing("SM83")
		}
		return gb.NewGB(cart, Decoders.SM83, hostRate), nil
	}

	return nil, fmt.Errorf("hardware: no system core for %v", cart.System)
}
