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

// Package display defines the interface between the video units and the
// host presentation layer. The video units build Frame values and hand them
// to a Renderer at the vertical blank. What the renderer does with the frame
// is not the emulation's concern.
package display

// Depth is the number of bytes per pixel in a Frame. Pixels are RGB with no
// alpha channel.
const Depth = 3

// Frame is a completed video frame. The pixel slice is owned by the video
// unit that built it and is valid until the next call to the unit's step
// function. Renderers that keep the frame beyond that point must copy it.
type Frame struct {
	Width  int
	Height int

	// the ratio of pixel width to pixel height for correct presentation.
	// the consoles supported here never have square pixels
	PixelAspectRatio float32

	// whether the frame was produced by an interlaced mode. when a renderer
	// receives an interlaced frame the Height field counts both fields
	Interlaced bool

	// frame number since the console was powered on
	FrameNum int

	// RGB24 pixel data, Width*Height*Depth bytes, top-left origin
	Pixels []byte
}

// NewFrame allocates a Frame of the given dimensions.
func NewFrame(width int, height int, aspect float32) *Frame {
	return &Frame{
		Width:            width,
		Height:           height,
		PixelAspectRatio: aspect,
		Pixels:           make([]byte, width*height*Depth),
	}
}

// Resize adjusts the dimensions of the frame, reallocating the pixel slice
// only when it needs to grow.
func (f *Frame) Resize(width int, height int) {
	f.Width = width
	f.Height = height
	sz := width * height * Depth
	if cap(f.Pixels) < sz {
		f.Pixels = make([]byte, sz)
	} else {
		f.Pixels = f.Pixels[:sz]
	}
}

// SetPixel sets the RGB value of a single pixel. Out of range coordinates
// are ignored.
func (f *Frame) SetPixel(x int, y int, r uint8, g uint8, b uint8) {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return
	}
	o := (y*f.Width + x) * Depth
	f.Pixels[o] = r
	f.Pixels[o+1] = g
	f.Pixels[o+2] = b
}

// Pixel returns the RGB value of a single pixel.
func (f *Frame) Pixel(x int, y int) (uint8, uint8, uint8) {
	o := (y*f.Width + x) * Depth
	return f.Pixels[o], f.Pixels[o+1], f.Pixels[o+2]
}

// Renderer implementations are the sink for completed frames. Present() is
// called by the video unit at the vertical blank, on the emulation
// goroutine. The frame is complete and consistent: in-progress scanlines are
// never visible to a renderer.
type Renderer interface {
	Present(frame *Frame) error
}

// NilRenderer is a Renderer that discards all frames. Used when no
// presentation layer is attached.
type NilRenderer struct{}

// Present implements the Renderer interface.
func (r NilRenderer) Present(_ *Frame) error {
	return nil
}
