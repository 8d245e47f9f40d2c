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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jetsetilly/gophergen/cartridgeloader"
	"github.com/jetsetilly/gophergen/emulation"
	"github.com/jetsetilly/gophergen/hardware"
	"github.com/jetsetilly/gophergen/hostaudio"
	"github.com/jetsetilly/gophergen/hostaudio/otoaudio"
	"github.com/jetsetilly/gophergen/hostaudio/sdlaudio"
	"github.com/jetsetilly/gophergen/logger"
	"github.com/jetsetilly/gophergen/performance"
	"github.com/jetsetilly/gophergen/version"
)

// the host sample rate used by every audio path.
const hostRate = 48000

func main() {
	// first argument is the mode. no mode means RUN
	args := os.Args[1:]
	mode := "RUN"
	if len(args) > 0 {
		switch strings.ToUpper(args[0]) {
		case "RUN", "PERFORMANCE", "VERSION":
			mode = strings.ToUpper(args[0])
			args = args[1:]
		}
	}

	var err error
	switch mode {
	case "RUN":
		err = run(args)
	case "PERFORMANCE":
		err = perf(args)
	case "VERSION":
		fmt.Println(version.Version())
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "* %v\n", err)
		logger.Tail(os.Stderr, 10)
		os.Exit(10)
	}
}

// buildConsole loads the named ROM and builds its system core.
func buildConsole(filename string) (hardware.Console, float64, error) {
	ld, err := cartridgeloader.NewLoaderFromFilename(filename)
	if err != nil {
		return nil, 0, err
	}

	cart, err := ld.Cartridge()
	if err != nil {
		return nil, 0, err
	}

	logger.Logf(logger.Allow, "loader", "%s: %v (%v)", cart.Name, cart.System, cart.Region)

	console, err := hardware.NewConsole(cart, hostRate)
	if err != nil {
		return nil, 0, err
	}

	rate := 60.0
	if cart.Region.PAL() {
		rate = 50.0
	}

	return console, rate, nil
}

// run is the default playback mode.
func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	useSDL := fs.Bool("sdlaudio", false, "use the SDL audio backend instead of oto")
	mute := fs.Bool("mute", false, "start with audio muted")
	logEcho := fs.Bool("log", false, "echo log entries to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("run: one ROM file required")
	}

	if *logEcho {
		logger.SetEcho(os.Stderr, true)
	}

	console, rate, err := buildConsole(fs.Arg(0))
	if err != nil {
		return err
	}

	var sink hostaudio.Sink
	if *useSDL {
		sink, err = sdlaudio.NewAudio(hostRate)
	} else {
		sink, err = otoaudio.NewAudio(hostRate)
	}
	if err != nil {
		logger.Log(logger.Allow, "audio", err)
		sink = hostaudio.NilSink{}
	}
	defer sink.End()
	sink.Mute(*mute)

	emu := emulation.NewEmulation(console, rate)
	emu.SetAudioSink(sink)
	return emu.Run()
}

// perf is the performance measurement mode.
func perf(args []string) error {
	fs := flag.NewFlagSet("performance", flag.ExitOnError)
	duration := fs.Duration("duration", 5*time.Second, "length of the measurement")
	profile := fs.String("profile", "", "write a CPU profile to this file")
	monitor := fs.Bool("statsview", false, "start the live statsview monitor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("performance: one ROM file required")
	}

	console, rate, err := buildConsole(fs.Arg(0))
	if err != nil {
		return err
	}

	return performance.Check(os.Stdout, console, rate, *duration, *profile, *monitor)
}
