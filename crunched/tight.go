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

import (
	"bytes"
	"compress/zlib"
	"io"
)

type tight struct {
	crunched       bool
	data           []byte
	uncrunchedSize int
}

// NewTight returns an implementation of the Data interface that crunches
// data with the zlib package. Slower than the quick implementation but with
// a much better compression ratio. Used for save states written to disk.
func NewTight(size int) Data {
	size = max(size, 4)
	return &tight{
		data:           make([]byte, size),
		uncrunchedSize: size,
	}
}

// IsCrunched returns true if data is currently crunched
//
// This function implements the Data interface
func (c *tight) IsCrunched() bool {
	return c.crunched
}

// Size returns the uncrunched size and the current size of the data
//
// This function implements the Data interface
func (c *tight) Size() (int, int) {
	return c.uncrunchedSize, len(c.data)
}

// Data returns a pointer to the uncrunched data
//
// This function implements the Data interface
func (c *tight) Data() *[]byte {
	if c.crunched {
		r, err := zlib.NewReader(bytes.NewReader(c.data))
		if err != nil {
			// the data was crunched by this package so a failure here
			// indicates a programming error rather than a runtime condition
			panic(err)
		}
		defer r.Close()

		uncrunched := make([]byte, c.uncrunchedSize)
		if _, err := io.ReadFull(r, uncrunched); err != nil {
			panic(err)
		}

		c.data = uncrunched
		c.crunched = false
	}

	return &c.data
}

// Snapshot makes a copy of the data, crunching it if required
//
// This function implements the Data interface
func (c *tight) Snapshot() Data {
	d := *c

	if !d.crunched {
		b := &bytes.Buffer{}
		w := zlib.NewWriter(b)
		w.Write(c.data)
		w.Close()

		if b.Len() < len(c.data) {
			d.data = b.Bytes()
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
func (c *tight) Inspect() *[]byte {
	return &c.data
}
