package af

import "math"

// pdafUpdate is the closed-loop PDAF controller (§4.5, doPDAF). It takes the
// fused (phase, conf) pair and the current commanded position, and returns
// the new target position, the State that update implies, and the
// (possibly snapped) stepCount the caller must store back: in triggered-auto
// mode a small phase delta while stepCount is still at or above stepFrames
// (e.g. just after SetSpeed extended the budget) latches termination by
// resetting stepCount to exactly stepFrames, matching the source's
// `stepCount_` member mutation in `doPDAF`. oldFtarget is the previous
// frame's ftarget: the slew-limited failure check below tests whether *that*
// position was already pinned at a range endpoint, matching the source's
// `ftarget_` read before it is overwritten.
func pdafUpdate(speed SpeedParams, rng RangeParams, confEpsilon uint, mode Mode, stepCount uint, fsmooth, oldFtarget, phase, conf float64) (ftarget float64, state State, newStepCount uint) {
	phase *= speed.PdafGain
	newStepCount = stepCount

	if mode == ModeContinuous {
		// Scale down lens movement when delta is small or confidence is
		// low, to suppress wobble.
		phase *= conf / (conf + float64(confEpsilon))
		if math.Abs(phase) < speed.PdafSquelch {
			a := phase / speed.PdafSquelch
			phase *= a * a
		}
	} else {
		// Triggered-auto mode: allow early termination when phase delta is
		// small; scale down lens movements towards the end of the sequence.
		if stepCount >= speed.StepFrames {
			if math.Abs(phase) < speed.PdafSquelch {
				newStepCount = speed.StepFrames
			}
		} else {
			phase *= float64(stepCount) / float64(speed.StepFrames)
		}
	}

	switch {
	case phase < -speed.MaxSlew:
		phase = -speed.MaxSlew
		if oldFtarget <= rng.FocusMin {
			state = StateFailed
		} else {
			state = StateScanning
		}
	case phase > speed.MaxSlew:
		phase = speed.MaxSlew
		if oldFtarget >= rng.FocusMax {
			state = StateFailed
		} else {
			state = StateScanning
		}
	default:
		state = StateFocused
	}

	ftarget = fsmooth + phase
	return ftarget, state, newStepCount
}
