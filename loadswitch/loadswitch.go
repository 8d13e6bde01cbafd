// Package loadswitch implements the pure projection from phase state to
// a three-lamp load-switch output. It holds no state of its own: the
// projection is a function of its inputs alone.
package loadswitch

import (
	"signalhead.dev/mode"
	"signalhead.dev/phase"
)

// Output is the three-boolean output of one load switch: (a, b, c), which
// for a vehicle switch means (red, yellow, green) and for a pedestrian
// switch means (don't-walk, flashing-don't-walk, walk).
type Output struct {
	A, B, C bool
}

var (
	red    = Output{A: true}
	yellow = Output{B: true}
	green  = Output{C: true}
	dark   = Output{}

	dontWalk = Output{A: true}
	flashDW  = Output{B: true}
	walk     = Output{C: true}
)

// Vehicle projects a vehicle load switch's output for a phase currently
// in state s with the given control mode, flash mode, and 1 Hz pulse
// phase (true on the "on" half of the duty cycle).
func Vehicle(s phase.State, flash phase.FlashMode, m mode.Mode, pulseOn bool) Output {
	switch m {
	case mode.Off:
		return dark
	case mode.LSFlash, mode.Cet:
		return flashOutput(flash, pulseOn)
	}

	switch s {
	case phase.Stop, phase.MinStop, phase.Rclr:
		return red
	case phase.Caution:
		return yellow
	case phase.Go, phase.Extend:
		return green
	case phase.Fya:
		if pulseOn {
			return yellow
		}
		return dark
	default:
		return red
	}
}

// Pedestrian projects a pedestrian load switch's output for a phase
// currently in state s.
func Pedestrian(s phase.State, m mode.Mode, pulseOn bool) Output {
	switch m {
	case mode.Off:
		return dark
	case mode.LSFlash, mode.Cet:
		return dontWalk
	}

	switch s {
	case phase.Pclr:
		if pulseOn {
			return flashDW
		}
		return dontWalk
	case phase.Walk:
		return walk
	default:
		return dontWalk
	}
}

func flashOutput(flash phase.FlashMode, pulseOn bool) Output {
	if !pulseOn {
		return dark
	}
	if flash == phase.FlashYellow {
		return yellow
	}
	return red
}
