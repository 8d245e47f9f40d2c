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

package cdrom_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jetsetilly/gophergen/hardware/audio/mix"
	"github.com/jetsetilly/gophergen/hardware/cdrom"
	"github.com/jetsetilly/gophergen/test"
)

// writeDisc builds a two track CUE/BIN image in a temporary directory:
// one data track and one audio track.
func writeDisc(t *testing.T, dataSectors int, audioSectors int) string {
	t.Helper()
	dir := t.TempDir()

	data := make([]byte, dataSectors*cdrom.SectorSize)
	for i := range data {
		data[i] = byte(i / cdrom.SectorSize)
	}
	if err := os.WriteFile(filepath.Join(dir, "track01.bin"), data, 0644); err != nil {
		t.Fatal(err)
	}

	audio := make([]byte, audioSectors*cdrom.SectorSize)
	if err := os.WriteFile(filepath.Join(dir, "track02.bin"), audio, 0644); err != nil {
		t.Fatal(err)
	}

	cue := `FILE "track01.bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
FILE "track02.bin" BINARY
  TRACK 02 AUDIO
    PREGAP 00:02:00
    INDEX 01 00:00:00
`
	cuePath := filepath.Join(dir, "disc.cue")
	if err := os.WriteFile(cuePath, []byte(cue), 0644); err != nil {
		t.Fatal(err)
	}

	return cuePath
}

func TestCueParse(t *testing.T) {
	disc, err := cdrom.Open(writeDisc(t, 100, 75))
	test.ExpectSuccess(t, err)
	defer disc.Close()

	test.ExpectEquality(t, len(disc.Tracks), 2)
	test.ExpectEquality(t, disc.Tracks[0].Type, cdrom.TrackMode1)
	test.ExpectEquality(t, disc.Tracks[0].StartLBA, 0)
	test.ExpectEquality(t, disc.Tracks[0].Length, 100)

	// the audio track starts after the data track plus its two second
	// pregap
	test.ExpectEquality(t, disc.Tracks[1].Type, cdrom.TrackAudio)
	test.ExpectEquality(t, disc.Tracks[1].Pregap, 150)
	test.ExpectEquality(t, disc.Tracks[1].StartLBA, 250)

	// sector contents round trip
	s := disc.ReadSector(5)
	test.ExpectEquality(t, s[0], uint8(5))

	// pregap sectors read as silence
	s = disc.ReadSector(150)
	test.ExpectEquality(t, s[0], uint8(0))
}

func TestMalformedCue(t *testing.T) {
	dir := t.TempDir()

	for _, cue := range []string{
		"TRACK 01 MODE1/2352\n",                              // TRACK before FILE
		"FILE \"missing.bin\" BINARY\nTRACK 01 MODE1/2352\n", // missing file
		"NONSENSE LINE\n",                                    // unknown command
	} {
		path := filepath.Join(dir, "bad.cue")
		if err := os.WriteFile(path, []byte(cue), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := cdrom.Open(path)
		test.ExpectFailure(t, err)
	}
}

func TestSeekLatencyFloor(t *testing.T) {
	disc, err := cdrom.Open(writeDisc(t, 1000, 75))
	test.ExpectSuccess(t, err)
	defer disc.Close()

	const masterHz = 53693175
	ring := mix.NewRing(65536)
	drive := cdrom.NewDrive(disc, masterHz, ring)

	var firstSector int
	var gotSector bool
	drive.SetDataCallback(func(lba int, _ []byte) {
		if !gotSector {
			firstSector = lba
			gotSector = true
		}
	})

	// a Play command issued at T reports the first data sector no
	// earlier than T plus the minimum seek time
	drive.Play(10)

	// just before the floor: nothing yet
	minTicks := int64(cdrom.SeekMinMs) * masterHz / 1000
	drive.Step(minTicks - 1000)
	test.ExpectSuccess(t, !gotSector)

	// the sector arrives one sector time after the seek completes
	drive.Step(1000 + masterHz/cdrom.SectorsPerSecond + 1)
	test.ExpectSuccess(t, gotSector)
	test.ExpectEquality(t, firstSector, 10)
}

func TestLongSeek(t *testing.T) {
	disc, err := cdrom.Open(writeDisc(t, 1000, 75))
	test.ExpectSuccess(t, err)
	defer disc.Close()

	const masterHz = 53693175
	ring := mix.NewRing(65536)
	drive := cdrom.NewDrive(disc, masterHz, ring)

	var gotSector bool
	drive.SetDataCallback(func(_ int, _ []byte) { gotSector = true })

	// short and long seeks have different floors
	drive.Play(999)
	drive.Step(int64(cdrom.SeekMinMs) * masterHz / 1000 * 2)
	// a seek of 999 sectors is short: well past the floor by now
	test.ExpectSuccess(t, drive.State() != cdrom.DriveSeeking)
	_ = gotSector
}

func TestFaderRamp(t *testing.T) {
	disc, err := cdrom.Open(writeDisc(t, 10, 750))
	test.ExpectSuccess(t, err)
	defer disc.Close()

	const masterHz = 53693175
	ring := mix.NewRing(1 << 20)
	drive := cdrom.NewDrive(disc, masterHz, ring)

	// play the audio track with the fader at silence: output samples are
	// all zero
	drive.SetFader(0)
	drive.PlayAudio(disc.Tracks[1].StartLBA, disc.Tracks[1].StartLBA+10)

	drive.Step(int64(cdrom.SeekLongMs) * masterHz / 1000)
	drive.Step(masterHz / cdrom.SectorsPerSecond * 5)

	// the ramp from full volume to silence covers at most 1024 samples;
	// everything after that is exactly zero. the source audio is silence
	// anyway so every sample is zero regardless
	var n int
	for {
		f, ok := ring.Pop()
		if !ok {
			break
		}
		test.ExpectEquality(t, f.L, float32(0))
		n++
	}
	test.ExpectSuccess(t, n > 0)
}
