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

package crunched

type quick struct {
	crunched       bool
	data           []byte
	uncrunchedSize int
}

// NewQuick returns an implementation of the Data interface that is intended
// to perform quickly on both crunching and decrunching. The compression
// method is a simple run-length scheme which works well on the kind of data
// found in emulated RAM and frame buffers.
//
// For simplicity, the minimum amount of data allocated will be 4 bytes.
func NewQuick(size int) Data {
	size = max(size, 4)
	return &quick{
		data:           make([]byte, size),
		uncrunchedSize: size,
	}
}

// IsCrunched returns true if data is currently crunched
//
// This function implements the Data interface
func (c *quick) IsCrunched() bool {
	return c.crunched
}

// Size returns the uncrunched size and the current size of the data
//
// This function implements the Data interface
func (c *quick) Size() (int, int) {
	return c.uncrunchedSize, len(c.data)
}

// Data returns a pointer to the uncrunched data
//
// This function implements the Data interface
func (c *quick) Data() *[]byte {
	if c.crunched {
		// sanity check. the RLE data is a sequence of (value, count) pairs
		// so the number of bytes must be even
		if len(c.data)&0x01 == 0x01 {
			panic("crunched data should have an even number of bytes")
		}

		// make a reference to the crunched data before creating space for
		// the uncrunched data
		working := c.data
		c.data = make([]byte, c.uncrunchedSize)

		// undo the RLE process
		var idx int
		for i := 0; i < len(working); i += 2 {
			for r := 0; r <= int(working[i+1]); r++ {
				c.data[idx] = working[i]
				idx++
			}
		}

		c.crunched = false
	}

	return &c.data
}

// Snapshot makes a copy of the data, crunching it if required
//
// This function implements the Data interface
func (c *quick) Snapshot() Data {
	d := *c

	if !d.crunched {
		// run-length encode into (value, count) pairs. count is the number
		// of *additional* occurrences of value, allowing runs of up to 256
		crunched := make([]byte, 0, len(c.data))

		var run byte
		var ct int

		for i, v := range c.data {
			if i == 0 {
				run = v
				ct = 0
				continue
			}
			if v == run && ct < 255 {
				ct++
				continue
			}
			crunched = append(crunched, run, byte(ct))
			run = v
			ct = 0
		}
		crunched = append(crunched, run, byte(ct))

		// only use the crunched data if it is actually smaller
		if len(crunched) < len(c.data) {
			d.data = crunched
			d.crunched = true
			return &d
		}
	}

	d.data = make([]byte, len(c.data))
	copy(d.data, c.data)

	return &d
}

// Inspect returns data in the current state
//
// This function implements the Inspection interface
func (c *quick) Inspect() *[]byte {
	return &c.data
}
