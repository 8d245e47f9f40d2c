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

// Package mix collects the sample streams of the audio units and combines
// them into a single stream at the host sample rate.
//
// Each audio unit owns a Ring and pushes one Frame per native sample. The
// ring is a single-producer/single-consumer structure and is the only data
// that crosses between the emulation goroutine and the host audio
// goroutine; everything else in the audio path is single-threaded.
package mix

import (
	"sync/atomic"
)

// Frame is one stereo sample stamped with the master clock tick at which
// the unit emitted it.
type Frame struct {
	Tick int64
	L    float32
	R    float32
}

// Ring is a lock-free single-producer/single-consumer ring of Frames.
// Exactly one goroutine may call Push and exactly one may call Pop/Peek.
type Ring struct {
	buf  []Frame
	mask uint32

	// head is owned by the consumer, tail by the producer. both are read
	// by the other side, hence atomic
	head atomic.Uint32
	tail atomic.Uint32
}

// NewRing creates a ring with capacity of at least the given number of
// frames. The capacity is rounded up to a power of two.
func NewRing(capacity int) *Ring {
	sz := uint32(1)
	for sz < uint32(capacity) {
		sz <<= 1
	}
	return &Ring{
		buf:  make([]Frame, sz),
		mask: sz - 1,
	}
}

// Push adds a frame to the ring. It returns false if the ring is full, in
// which case the frame is dropped; the mixer's dynamic ratio control keeps
// this from happening in normal running.
func (r *Ring) Push(f Frame) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() > r.mask {
		return false
	}
	r.buf[tail&r.mask] = f
	r.tail.Store(tail + 1)
	return true
}

// Pop removes and returns the oldest frame in the ring.
func (r *Ring) Pop() (Frame, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return Frame{}, false
	}
	f := r.buf[head&r.mask]
	r.head.Store(head + 1)
	return f, true
}

// Peek returns the oldest frame without removing it.
func (r *Ring) Peek() (Frame, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return Frame{}, false
	}
	return r.buf[head&r.mask], true
}

// Len returns the number of frames in the ring.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}
