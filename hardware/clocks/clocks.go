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

// Package clocks defines the master clock crystals for each supported
// console and the divider each processor and device hangs off that crystal.
//
// Every component in the emulation is stepped in units of the master clock
// of its console. The dividers in this package are exact integer ratios as
// documented in the various service manuals; the crystal frequencies are in
// Hz.
package clocks

// Mega Drive / Genesis. The master crystal is divided down for every chip in
// the machine. The 68000 runs at MClk/7, the Z80 at MClk/15 and the PSG at
// MClk/240. The VDP serial clock is MClk/8 in H40 mode and MClk/10 in H32
// mode (H40 mode additionally stretches some dots during horizontal sync).
const (
	GenesisMasterNTSC = 53693175
	GenesisMasterPAL  = 53203424

	GenesisM68KDivider = 7
	GenesisZ80Divider  = 15
	GenesisPSGDivider  = 240

	GenesisDotH32 = 10
	GenesisDotH40 = 8

	// the YM2612 produces one sample every 144 68000 clocks (6 channels x 24
	// operator slots). against the NTSC master clock this is the familiar
	// 53267Hz sample rate
	GenesisFMDivider = 7 * 144
)

// Sega CD. The sub-68000 and the PCM chip run from the CD unit's own 12.5MHz
// crystal, expressed here in Hz rather than as a divider of the Genesis
// master clock. The scheduler converts between the two tick domains with an
// exact rational.
const (
	SegaCDSub68KHz = 12500000

	// the RF5C164 divides its 12.5MHz clock by 384 giving a sample rate of
	// 32552Hz
	SegaCDPCMDivider = 384
)

// 32X. The twin SH-2s run at three times the 68000 clock: MClk*3/7.
const (
	S32XSH2Numerator   = 3
	S32XSH2Denominator = 7

	// PWM sample rate is programmable from the SH-2 peripheral clock
	S32XPWMSourceDivider = 7
)

// Master System / Game Gear. Conventionally described against its own
// 10.738635MHz crystal with a divide-by-3 for the CPU and a PSG
// divide-by-48.
const (
	SMSMasterNTSC = 10738635
	SMSMasterPAL  = 10640684

	SMSZ80Divider = 3
	SMSPSGDivider = 48
	SMSDotDivider = 2
)

// NES. PPU dots are MClk/4 (NTSC) or MClk/5 (PAL); the CPU is MClk/12 (NTSC)
// or MClk/16 (PAL), giving the familiar three dots per CPU cycle on NTSC
// machines.
const (
	NESMasterNTSC = 21477272
	NESMasterPAL  = 26601712

	NESCPUDividerNTSC = 12
	NESCPUDividerPAL  = 16
	NESDotDividerNTSC = 4
	NESDotDividerPAL  = 5
)

// SNES. The 65C816 runs from the master clock with per-access cycle lengths
// of 6, 8 or 12 master clocks depending on the addressed region ("FastROM"
// regions run at 6). The SPC700/DSP pair runs from its own 24.576MHz
// crystal; the DSP emits one sample every 768 of those clocks (32000Hz).
const (
	SNESMasterNTSC = 21477272
	SNESMasterPAL  = 21281370

	SNESCycleFast  = 6
	SNESCycleSlow  = 8
	SNESCycleXSlow = 12
	SNESDotDivider = 4
	SNESAPUCrystal = 24576000
	SNESDSPDivider = 768
	SNESDSPRateHz  = 32000
)

// Game Boy. A single 4.194304MHz crystal for everything. CGB double-speed
// mode halves the CPU divider but leaves the PPU and APU dividers untouched.
const (
	GBCrystal = 4194304

	GBAPUFrameSequencerDivider = 8192
)
