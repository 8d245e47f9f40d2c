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

// Package cartridgeloader abstracts the ways a ROM image reaches the
// emulation: a plain file, an entry in a zip or 7z archive, or a disc
// image for the Sega CD. Archives are supported for every system except
// the Sega CD (a disc image is not usefully archived).
package cartridgeloader

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jetsetilly/gophergen/archivefs"
	"github.com/jetsetilly/gophergen/hardware/cartridge"
	"github.com/jetsetilly/gophergen/hardware/cdrom"
)

// sentinal error for when it is attempted to create a loader with no
// filename
var NoFilename = errors.New("no filename")

// Loader describes a loadable ROM or disc image.
type Loader struct {
	// the name to use for the cartridge represented by Loader
	Name string

	// filename of the image being loaded
	Filename string

	// true when the filename names a Sega CD disc image (cue or chd)
	IsDisc bool

	// the hash of the loaded data. empty until Load() succeeds
	HashSHA1 string

	// ROM data. empty until Load() is called
	Data []byte
}

// NewLoaderFromFilename is the preferred method of initialisation for
// the Loader type.
func NewLoaderFromFilename(filename string) (Loader, error) {
	if strings.TrimSpace(filename) == "" {
		return Loader{}, fmt.Errorf("cartridgeloader: %w", NoFilename)
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		return Loader{}, fmt.Errorf("cartridgeloader: %w", err)
	}

	ld := Loader{
		Filename: abs,
		Name:     nameFromFilename(abs),
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".cue", ".chd":
		ld.IsDisc = true
	}

	return ld, nil
}

// nameFromFilename strips the directory and extension from a filename.
func nameFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads the image data. For archives the ROM entry inside the
// archive provides the data and the effective name. Disc images are
// opened by Cartridge() through the cdrom package.
func (ld *Loader) Load() error {
	if ld.IsDisc {
		return nil
	}

	name, data, err := archivefs.Read(ld.Filename)
	if err != nil {
		return fmt.Errorf("cartridgeloader: %w", err)
	}

	if archivefs.IsArchive(ld.Filename) {
		ld.Name = nameFromFilename(name)
	}

	ld.Data = data
	ld.HashSHA1 = fmt.Sprintf("%x", sha1.Sum(data))

	// the inner name decides the system for archive entries
	ld.Filename = name

	return nil
}

// Cartridge parses the loaded data into a cartridge. A disc image
// opens the disc instead; a malformed cue or chd is a load error and
// no session state is retained.
func (ld *Loader) Cartridge() (*cartridge.Cartridge, error) {
	if ld.IsDisc {
		disc, err := cdrom.Open(ld.Filename)
		if err != nil {
			return nil, fmt.Errorf("cartridgeloader: %w", err)
		}
		return cartridge.NewDiscCartridge(ld.Name, disc), nil
	}

	if ld.Data == nil {
		if err := ld.Load(); err != nil {
			return nil, err
		}
	}
	cart, err := cartridge.Load(ld.Filename, ld.Data, cartridge.SystemUnknown)
	if err != nil {
		return nil, err
	}
	cart.Name = ld.Name
	return cart, nil
}
