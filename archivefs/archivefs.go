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

// Package archivefs reads ROM images out of zip and 7z archives as
// though they were plain files. An archive is expected to contain one
// ROM; when it contains several the first entry with a recognised ROM
// extension wins.
package archivefs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// extensions recognised as ROM images inside an archive.
var romExtensions = []string{
	".gen", ".smd", ".md", ".sms", ".gg", ".nes", ".sfc", ".smc",
	".gb", ".gbc", ".32x", ".bin",
}

// IsArchive returns true if the path names a supported archive format.
func IsArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".7z":
		return true
	}
	return false
}

func isROMName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range romExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Read returns the contents of the file at path. Archives are opened
// and searched for a ROM entry; the returned name is the name of the
// entry inside the archive, or the path itself for a plain file.
func Read(path string) (string, []byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return readZip(path)
	case ".7z":
		return read7z(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("archivefs: %w", err)
	}
	return path, data, nil
}

func readZip(path string) (string, []byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("archivefs: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !isROMName(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", nil, fmt.Errorf("archivefs: %s: %w", path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", nil, fmt.Errorf("archivefs: %s: %w", path, err)
		}

		return f.Name, data, nil
	}

	return "", nil, fmt.Errorf("archivefs: %s: no ROM image in archive", path)
}

func read7z(path string) (string, []byte, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("archivefs: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !isROMName(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", nil, fmt.Errorf("archivefs: %s: %w", path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", nil, fmt.Errorf("archivefs: %s: %w", path, err)
		}

		return f.Name, data, nil
	}

	return "", nil, fmt.Errorf("archivefs: %s: no ROM image in archive", path)
}
