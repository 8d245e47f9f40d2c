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

package digest

import (
	"crypto/sha1"
	"fmt"

	"github.com/jetsetilly/gophergen/hardware/display"
)

// Video is an implementation of the display.Renderer interface that
// hashes every presented frame into a running digest and displays
// nothing.
//
// Note that the use of SHA-1 is fine for this application because this
// is not a cryptographic task.
type Video struct {
	digest [sha1.Size]byte

	// number of frames presented since the last reset
	frameNum int

	// hash of the most recent frame on its own, separate from the
	// running digest
	lastFrame [sha1.Size]byte
}

// NewVideo is the preferred method of initialisation for the Video type.
func NewVideo() *Video {
	return &Video{}
}

// Present implements the display.Renderer interface.
func (dig *Video) Present(frame *display.Frame) error {
	h := sha1.New()
	h.Write(dig.digest[:])
	h.Write([]byte{
		byte(frame.Width >> 8), byte(frame.Width),
		byte(frame.Height >> 8), byte(frame.Height),
	})
	h.Write(frame.Pixels)
	copy(dig.digest[:], h.Sum(nil))

	f := sha1.Sum(frame.Pixels)
	copy(dig.lastFrame[:], f[:])

	dig.frameNum++
	return nil
}

// Hash implements the Digest interface.
func (dig *Video) Hash() string {
	return fmt.Sprintf("%x", dig.digest)
}

// LastFrameHash returns the hash of the most recent frame alone.
func (dig *Video) LastFrameHash() string {
	return fmt.Sprintf("%x", dig.lastFrame)
}

// FrameNum returns the number of frames hashed since the last reset.
func (dig *Video) FrameNum() int {
	return dig.frameNum
}

// ResetDigest implements the Digest interface.
func (dig *Video) ResetDigest() {
	dig.digest = [sha1.Size]byte{}
	dig.lastFrame = [sha1.Size]byte{}
	dig.frameNum = 0
}
