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

// Package digest hashes the emulation's outputs. The video digest chains
// a hash over every presented frame and the audio digest over every mixed
// sample, giving a compact fingerprint of an entire run. Two runs with
// the same ROM and the same input sequence must produce identical
// digests; the regression tests lean on this.
package digest

// Digest is implemented by the video and audio digest types.
type Digest interface {
	// Hash returns the hex string of the running digest
	Hash() string

	// ResetDigest returns the running digest to its initial state
	ResetDigest()
}
