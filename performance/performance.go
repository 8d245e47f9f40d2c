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

// Package performance measures the emulation running flat out for a
// fixed period, optionally with CPU profiling and a live statsview
// monitor.
package performance

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"

	"github.com/jetsetilly/gophergen/hardware"
	"github.com/jetsetilly/gophergen/logger"
)

// Check runs the console for the given duration, unpaced, and writes a
// frame rate summary to output. The profile argument, when not empty,
// names a pprof CPU profile to write; monitor starts the statsview web
// monitor for the length of the run.
func Check(output io.Writer, console hardware.Console, nominalRate float64, duration time.Duration, profile string, monitor bool) error {
	if monitor {
		viewer.SetConfiguration(viewer.WithAddr("localhost:12600"))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		logger.Log(logger.Allow, "performance", "statsview monitor on localhost:12600")
	}

	if profile != "" {
		f, err := os.Create(profile)
		if err != nil {
			return fmt.Errorf("performance: %w", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("performance: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var frames int
	start := time.Now()
	end := start.Add(duration)

	for time.Now().Before(end) {
		console.RunFrame()
		frames++
	}

	elapsed := time.Since(start).Seconds()
	rate := float64(frames) / elapsed

	fmt.Fprintf(output, "%d frames in %.2fs: %.1f fps (%.1f%% of full speed)\n",
		frames, elapsed, rate, rate/nominalRate*100)

	return nil
}
