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

package input

// GenesisPad implements the Genesis controller protocol: the TH line
// selects between two data views, and the 6-button pad adds a counter of
// TH transitions that exposes the extra buttons on the third toggle. The
// counter resets if TH stays idle for more than a frame, which is how
// 3-button software avoids seeing ghosts.
type GenesisPad struct {
	SixButton bool

	state State

	th      bool
	toggles int

	// countdown to the toggle counter reset, in polls
	idle int
}

// SetState updates the pad with freshly polled controller state.
func (p *GenesisPad) SetState(state State) {
	p.state = state

	// the toggle counter decays once per poll (per frame)
	if p.idle > 0 {
		p.idle--
		if p.idle == 0 {
			p.toggles = 0
		}
	}
}

// WriteTH drives the TH line from the I/O port data register.
func (p *GenesisPad) WriteTH(th bool) {
	if th != p.th {
		p.th = th
		if p.SixButton && th {
			p.toggles = (p.toggles + 1) % 4
			p.idle = 2
		}
	}
}

// Read returns the 6 data bits of the port.
func (p *GenesisPad) Read() uint8 {
	if p.state.Unplugged {
		return 0x3f
	}

	bit := func(pressed bool, mask uint8) uint8 {
		if pressed {
			return 0
		}
		return mask
	}

	s := p.state

	if p.th {
		// TH high: C and B on bits 5/4, directions on 3-0. the third
		// toggle of a 6-button pad returns X/Y/Z/Mode instead of the
		// directions
		if p.SixButton && p.toggles == 3 {
			return bit(s.Pressed(C), 0x20) | bit(s.Pressed(B), 0x10) |
				bit(s.Pressed(Mode), 0x08) | bit(s.Pressed(X), 0x04) |
				bit(s.Pressed(Y), 0x02) | bit(s.Pressed(Z), 0x01)
		}
		return bit(s.Pressed(C), 0x20) | bit(s.Pressed(B), 0x10) |
			bit(s.Pressed(Right), 0x08) | bit(s.Pressed(Left), 0x04) |
			bit(s.Pressed(Down), 0x02) | bit(s.Pressed(Up), 0x01)
	}

	// TH low: Start and A on bits 5/4, Up/Down on 1/0. the second toggle
	// of a 6-button pad grounds bits 3-0
	out := bit(s.Pressed(Start), 0x20) | bit(s.Pressed(A), 0x10)
	if p.SixButton && p.toggles == 2 {
		return out
	}
	return out | 0x0c | bit(s.Pressed(Down), 0x02) | bit(s.Pressed(Up), 0x01)
}
