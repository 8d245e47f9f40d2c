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

// Package crunched provides a byte block that can be stored in a compressed
// form. It is used for the memory heavy parts of a machine snapshot: VRAM,
// work RAM, frame buffers, etc. Rewind snapshots favour the quick
// implementation; save states written to disk favour the tight
// implementation.
package crunched

// Data provides the interface to a crunched data type
type Data interface {
	// IsCrunched returns true if data is currently crunched
	IsCrunched() bool

	// Size returns the uncrunched size and the current size of the data. If
	// the data is not currently crunched then the two values will be the same
	Size() (int, int)

	// Data returns a pointer to the uncrunched data, uncrunching it first if
	// necessary
	Data() *[]byte

	// Snapshot makes a copy of the data, crunching it if required. The data
	// will be uncrunched automatically when the Data() function is called
	Snapshot() Data
}

// Inspection is implemented by crunched data types that allow the data to be
// examined in its current form, without uncrunching
type Inspection interface {
	Data

	// Inspect returns data in the current state. In other words, the data
	// will not be uncrunched as it would be with the Data() function
	Inspect() *[]byte
}
