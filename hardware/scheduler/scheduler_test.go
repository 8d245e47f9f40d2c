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

package scheduler_test

import (
	"testing"

	"github.com/jetsetilly/gophergen/hardware/scheduler"
	"github.com/jetsetilly/gophergen/test"
)

// scriptedDecoder executes a fixed list of thunks, one per instruction.
// when the script is exhausted every instruction is a NOP of the given
// cycle length.
type scriptedDecoder struct {
	script []func()
	cycles int
	steps  int
}

func (d *scriptedDecoder) Step() int {
	if d.steps < len(d.script) {
		d.script[d.steps]()
	}
	d.steps++
	return d.cycles
}

func (d *scriptedDecoder) Interrupt(_ int) {}
func (d *scriptedDecoder) Reset()          {}

// the shared value and the tick at which each processor saw it
type observation struct {
	tick  scheduler.Ticks
	value int
}

func TestInterleaving(t *testing.T) {
	drv := scheduler.NewDriver()

	// shared state written by cpuA and read by cpuB
	var shared int
	var seen []observation

	var hostA, hostB *scheduler.Host

	// cpuA writes to shared state on its third instruction. a real bus
	// handler would raise the sync point; the script does the same
	decA := &scriptedDecoder{cycles: 4}
	decA.script = []func(){
		func() {},
		func() {},
		func() {
			shared = 99
			drv.Sync(hostA.Committed())
		},
	}

	// cpuB samples the shared state on every instruction
	decB := &scriptedDecoder{cycles: 3}

	hostA = scheduler.NewHost("cpuA", decA, drv, 7)
	hostB = scheduler.NewHost("cpuB", decB, drv, 15)

	decB.script = make([]func(), 20)
	for i := range decB.script {
		decB.script[i] = func() {
			seen = append(seen, observation{tick: hostB.Committed(), value: shared})
		}
	}

	drv.AddProcessor(hostA)
	drv.AddProcessor(hostB)

	end := drv.Slice(1000)
	test.ExpectEquality(t, end, scheduler.Ticks(1000))

	// both processors have committed at least to the slice end
	test.ExpectSuccess(t, hostA.Committed() >= 1000)
	test.ExpectSuccess(t, hostB.Committed() >= 1000)

	// the write happens at the end of cpuA's third instruction: tick 84.
	// no observation at a tick meaningfully beyond that may see the old
	// value. the allowed slack is one cpuB instruction (45 ticks)
	writeTick := scheduler.Ticks(3 * 4 * 7)
	for _, o := range seen {
		if o.value == 0 && o.tick > writeTick+45 {
			t.Errorf("processor B read stale value at tick %d (write was at %d)", o.tick, writeTick)
		}
		if o.value == 99 && o.tick+45 < writeTick {
			t.Errorf("processor B read future value at tick %d (write was at %d)", o.tick, writeTick)
		}
	}
}

// device that records the ticks at which it was serviced
type recordingDevice struct {
	period   scheduler.Ticks
	deadline scheduler.Ticks
	serviced []scheduler.Ticks
}

func (d *recordingDevice) Label() string {
	return "recorder"
}

func (d *recordingDevice) NextDeadline() scheduler.Ticks {
	return d.deadline
}

func (d *recordingDevice) Service(now scheduler.Ticks) {
	d.serviced = append(d.serviced, now)
	d.deadline += d.period
}

func TestDeviceDeadlines(t *testing.T) {
	drv := scheduler.NewDriver()

	dec := &scriptedDecoder{cycles: 10}
	host := scheduler.NewHost("cpu", dec, drv, 1)
	drv.AddProcessor(host)

	dev := &recordingDevice{period: 25, deadline: 25}
	drv.AddDevice(dev)

	drv.Slice(100)

	// deadlines at 25, 50, 75 and 100 must all have been serviced, in order
	test.ExpectEquality(t, len(dev.serviced), 4)
	for i, s := range dev.serviced {
		test.ExpectEquality(t, s, scheduler.Ticks(25*(i+1)))
	}
}

func TestOvershootBudget(t *testing.T) {
	drv := scheduler.NewDriver()

	// every instruction is 7 cycles at ratio 1. a deadline of 10 means the
	// second instruction overshoots by 4 ticks
	dec := &scriptedDecoder{cycles: 7}
	host := scheduler.NewHost("cpu", dec, drv, 1)
	drv.AddProcessor(host)

	c := host.RunUntil(10)
	test.ExpectEquality(t, c, scheduler.Ticks(14))

	// the overshoot is repaid: running to 21 needs only one more
	// instruction (14 + 7 = 21)
	c = host.RunUntil(21)
	test.ExpectEquality(t, c, scheduler.Ticks(21))
	test.ExpectEquality(t, dec.steps, 3)
}

func TestStall(t *testing.T) {
	drv := scheduler.NewDriver()

	dec := &scriptedDecoder{cycles: 2}
	host := scheduler.NewHost("cpu", dec, drv, 1)
	drv.AddProcessor(host)

	// a DMA engine stalls the processor for 50 ticks. no instructions
	// execute during the stall
	host.StallUntil(50)
	c := host.RunUntil(50)
	test.ExpectEquality(t, c, scheduler.Ticks(50))
	test.ExpectEquality(t, dec.steps, 0)

	// execution resumes after the stall
	c = host.RunUntil(60)
	test.ExpectEquality(t, c, scheduler.Ticks(60))
	test.ExpectEquality(t, dec.steps, 5)
}

func TestHalt(t *testing.T) {
	drv := scheduler.NewDriver()

	dec := &scriptedDecoder{cycles: 2}
	host := scheduler.NewHost("cpu", dec, drv, 1)
	drv.AddProcessor(host)

	host.Halt(true)
	c := host.RunUntil(100)
	test.ExpectEquality(t, c, scheduler.Ticks(100))
	test.ExpectEquality(t, dec.steps, 0)

	host.Halt(false)
	c = host.RunUntil(110)
	test.ExpectEquality(t, c, scheduler.Ticks(110))
	test.ExpectEquality(t, dec.steps, 5)
}
