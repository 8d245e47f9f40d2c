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

package crunched_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/crunched"
	"github.com/jetsetilly/gophergen/test"
)

func roundTrip(t *testing.T, c crunched.Data) {
	t.Helper()

	data := *c.Data()
	for i := range data {
		data[i] = byte(i >> 3)
	}

	s := c.Snapshot()
	test.ExpectSuccess(t, s.IsCrunched())

	// snapshot must reproduce the original data exactly
	uncrunched := *s.Data()
	test.ExpectSuccess(t, !s.IsCrunched())
	test.ExpectEquality(t, len(uncrunched), len(data))
	for i := range data {
		if data[i] != uncrunched[i] {
			t.Fatalf("uncrunched data differs at index %d", i)
		}
	}

	// the original is unaffected by the snapshot being uncrunched
	test.ExpectSuccess(t, !c.IsCrunched())
}

func TestQuick(t *testing.T) {
	roundTrip(t, crunched.NewQuick(4096))
}

func TestTight(t *testing.T) {
	roundTrip(t, crunched.NewTight(4096))
}

func TestQuickIncompressible(t *testing.T) {
	c := crunched.NewQuick(256)
	data := *c.Data()
	for i := range data {
		data[i] = byte(i)
	}

	// data with no runs at all should not be stored crunched
	s := c.Snapshot()
	test.ExpectSuccess(t, !s.IsCrunched())

	uncrunched := *s.Data()
	for i := range data {
		if data[i] != uncrunched[i] {
			t.Fatalf("uncrunched data differs at index %d", i)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	c := crunched.NewQuick(64)
	data := *c.Data()
	for i := range data {
		data[i] = 0xff
	}

	s := c.Snapshot()

	// changing the original data does not affect the snapshot
	data[0] = 0x00

	uncrunched := *s.Data()
	test.ExpectEquality(t, uncrunched[0], byte(0xff))
}
