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

// Package environment is the context of a running emulation: a label
// naming the session, the region override and the logging permission.
// Several sessions can exist at once and the environment keeps their logs
// and preferences apart.
package environment

import (
	"github.com/jetsetilly/gophergen/hardware/cartridge"
)

// Label is used to name the environment.
type Label string

// MainEmulation is the label used for the main emulation.
const MainEmulation = Label("main")

// Environment is the context of a running emulation session.
type Environment struct {
	Label Label

	// the region the session runs as. RegionAuto follows the cartridge
	// header
	Region cartridge.Region

	// whether log entries from this session are recorded
	allowLogging bool
}

// NewEnvironment is the preferred method of initialisation for the
// Environment type.
func NewEnvironment(label Label) *Environment {
	return &Environment{
		Label:        label,
		Region:       cartridge.RegionAuto,
		allowLogging: true,
	}
}

// AllowLogging implements the logger.Permission interface.
func (env *Environment) AllowLogging() bool {
	return env.allowLogging
}

// SetLogging changes whether the session's log entries are recorded.
func (env *Environment) SetLogging(allow bool) {
	env.allowLogging = allow
}

// IsMain returns true if the environment is the main emulation.
func (env *Environment) IsMain() bool {
	return env.Label == MainEmulation
}
