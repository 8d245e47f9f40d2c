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

package cdrom

import (
	"github.com/jetsetilly/gophergen/hardware/audio/mix"
)

// drive states.
const (
	DriveStopped = iota
	DriveSeeking
	DrivePlaying
	DrivePaused
	DriveReadingData
)

// seek latency model. even the shortest seek takes the drive a
// perceptible time; long seeks cross the disc at a few hundred tracks per
// sideways step and take the better part of a second
const (
	// the floor for any seek, in milliseconds
	SeekMinMs = 50

	// seeks crossing more than half the disc
	SeekLongMs = 800

	// full stroke threshold, in sectors
	seekLongThreshold = 135000 / 2
)

// Drive models the Sega CD's drive mechanism: head position, seek
// latency and the CD-DA playback path with its fader.
type Drive struct {
	disc *Disc

	state     int
	head      int
	target    int
	playUntil int

	// master clock ticks remaining in the current seek
	seekRemaining int64

	// ticks per sector at normal speed (75 sectors/second)
	ticksPerSector int64
	sectorAcc      int64

	// ticks per millisecond, for the latency model
	ticksPerMs int64

	// the CD-DA fader: an attenuation ramp controlled by the CDD fader
	// register. values are 0 (silent) to 1024 (full volume)
	faderTarget  int
	faderCurrent int

	// data sector ready callback and CD-DA sample output
	dataReady func(lba int, sector []byte)
	ring      *mix.Ring
	tick      int64

	// audio sample position within the current sector
	audioOffset int
}

// NewDrive is the preferred method of initialisation for the Drive type.
// The masterHz argument is the master clock rate of the host system, used
// to convert the drive's real-time behaviour to ticks.
func NewDrive(disc *Disc, masterHz int64, ring *mix.Ring) *Drive {
	return &Drive{
		disc:           disc,
		ticksPerSector: masterHz / SectorsPerSecond,
		ticksPerMs:     masterHz / 1000,
		faderTarget:    1024,
		faderCurrent:   1024,
		ring:           ring,
		dataReady:      func(_ int, _ []byte) {},
	}
}

// SetDataCallback attaches the function called when a data sector has
// been read. The Sega CD's CDC takes the sector from here.
func (d *Drive) SetDataCallback(f func(lba int, sector []byte)) {
	d.dataReady = f
}

// seekTicks computes the seek time for the given head movement,
// honouring the minimum seek floor.
func (d *Drive) seekTicks(from int, to int) int64 {
	dist := to - from
	if dist < 0 {
		dist = -dist
	}

	ms := int64(SeekMinMs)
	if dist > seekLongThreshold {
		ms = SeekLongMs
	} else if dist > 0 {
		// interpolate between the floor and the long seek time
		ms = SeekMinMs + int64(dist)*(SeekLongMs-SeekMinMs)/seekLongThreshold
	}

	return ms * d.ticksPerMs
}

// Play starts playback or data reading at the given sector. The first
// sector is delivered no earlier than the seek time demands.
func (d *Drive) Play(lba int) {
	d.target = lba
	d.seekRemaining = d.seekTicks(d.head, lba)
	d.state = DriveSeeking
	d.audioOffset = 0
}

// PlayAudio begins CD-DA playback of the given range.
func (d *Drive) PlayAudio(startLBA int, endLBA int) {
	d.playUntil = endLBA
	d.Play(startLBA)
}

// Pause stops the head where it is.
func (d *Drive) Pause() {
	if d.state == DrivePlaying || d.state == DriveReadingData {
		d.state = DrivePaused
	}
}

// Resume continues after a pause.
func (d *Drive) Resume() {
	if d.state == DrivePaused {
		d.state = DrivePlaying
	}
}

// Stop halts the drive and parks the head.
func (d *Drive) Stop() {
	d.state = DriveStopped
	d.head = 0
}

// SetFader sets the CD-DA fader target from the CDD fader register.
func (d *Drive) SetFader(level int) {
	d.faderTarget = min(max(level, 0), 1024)
}

// State returns the drive state.
func (d *Drive) State() int {
	return d.state
}

// Head returns the current head position.
func (d *Drive) Head() int {
	return d.head
}

// Step advances the drive by the given number of master clock ticks.
// Ticks left over when a seek completes carry into the playback that
// follows it.
func (d *Drive) Step(ticks int64) {
	d.tick += ticks

	for ticks > 0 {
		switch d.state {
		case DriveSeeking:
			t := min(ticks, d.seekRemaining)
			d.seekRemaining -= t
			ticks -= t
			if d.seekRemaining <= 0 {
				d.head = d.target
				tr := d.disc.TrackForLBA(d.head)
				if tr != nil && tr.Type == TrackMode1 {
					d.state = DriveReadingData
				} else {
					d.state = DrivePlaying
				}
				d.sectorAcc = 0
			}
		case DrivePlaying, DriveReadingData:
			d.sectorAcc += ticks
			ticks = 0
			for d.sectorAcc >= d.ticksPerSector {
				d.sectorAcc -= d.ticksPerSector
				d.deliverSector()
				if d.state != DrivePlaying && d.state != DriveReadingData {
					break
				}
			}
		default:
			ticks = 0
		}
	}
}

// deliverSector reads the sector under the head and routes it to the CDC
// (data) or the fader and audio ring (CD-DA).
func (d *Drive) deliverSector() {
	sector := d.disc.ReadSector(d.head)

	if d.state == DriveReadingData {
		d.dataReady(d.head, sector)
	} else {
		d.playSector(sector)
	}

	d.head++
	if d.playUntil > 0 && d.head >= d.playUntil {
		d.state = DrivePaused
		d.playUntil = 0
	}
	if d.head >= d.disc.LeadOutLBA() {
		d.state = DrivePaused
	}
}

// playSector pushes the 588 stereo samples of a CD-DA sector through the
// fader into the audio ring.
func (d *Drive) playSector(sector []byte) {
	for i := 0; i+3 < SectorSize; i += 4 {
		// the fader ramps towards its target one step per sample, so a
		// fade never clicks
		if d.faderCurrent < d.faderTarget {
			d.faderCurrent++
		} else if d.faderCurrent > d.faderTarget {
			d.faderCurrent--
		}

		l := int16(uint16(sector[i]) | uint16(sector[i+1])<<8)
		r := int16(uint16(sector[i+2]) | uint16(sector[i+3])<<8)

		gain := float32(d.faderCurrent) / 1024
		d.ring.Push(mix.Frame{
			Tick: d.tick,
			L:    float32(l) / 32768 * gain,
			R:    float32(r) / 32768 * gain,
		})
	}
}
