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

// Package input defines the controller state consumed by the system
// cores and the Poller interface the host implements to supply it.
//
// Pollers are polled at well defined instants, typically on entry to the
// vertical blank, so that a fixed input recording replays identically.
package input

// Button identifies a single input on a controller. The set covers every
// pad the supported consoles take; each system reads the subset it knows.
type Button int

// List of valid Button values.
const (
	Up Button = iota
	Down
	Left
	Right
	A
	B
	C
	X
	Y
	Z
	L
	R
	Start
	Select
	Mode
	numButtons
)

// State is the state of one controller: a bitmask of held buttons plus
// pointer coordinates for the light gun and mouse devices.
type State struct {
	buttons uint32

	// pointer position for Zapper/Super Scope/mouse devices, in frame
	// coordinates
	PointerX int
	PointerY int
	Trigger  bool

	// true when no controller is plugged into the port
	Unplugged bool
}

// Set marks a button as held.
func (s *State) Set(b Button) {
	s.buttons |= 1 << uint(b)
}

// Clear marks a button as released.
func (s *State) Clear(b Button) {
	s.buttons &^= 1 << uint(b)
}

// Pressed returns true if the button is held.
func (s State) Pressed(b Button) bool {
	return s.buttons&(1<<uint(b)) != 0
}

// Poller supplies controller state for up to two ports. Implemented by
// the host; polled by the system cores.
type Poller interface {
	Poll(port int) State
}

// NilPoller is a Poller with nothing plugged in.
type NilPoller struct{}

// Poll implements the Poller interface.
func (p NilPoller) Poll(_ int) State {
	return State{Unplugged: true}
}
