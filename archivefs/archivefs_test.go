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

package archivefs_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/jetsetilly/gophergen/archivefs"
	"github.com/jetsetilly/gophergen/test"
)

func TestIsArchive(t *testing.T) {
	test.ExpectSuccess(t, archivefs.IsArchive("game.zip"))
	test.ExpectSuccess(t, archivefs.IsArchive("game.7Z"))
	test.ExpectSuccess(t, !archivefs.IsArchive("game.gen"))
}

func TestPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.gen")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}

	name, data, err := archivefs.Read(path)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, name, path)
	test.ExpectEquality(t, len(data), 3)
}

func TestZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)

	// a non-ROM entry first; the reader must skip it
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("hello"))
	w, _ = zw.Create("game.nes")
	w.Write([]byte{4, 5, 6, 7})

	zw.Close()
	f.Close()

	name, data, err := archivefs.Read(path)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, name, "game.nes")
	test.ExpectEquality(t, len(data), 4)
}

func TestZipNoROM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("hello"))
	zw.Close()
	f.Close()

	_, _, err = archivefs.Read(path)
	test.ExpectFailure(t, err)
}
