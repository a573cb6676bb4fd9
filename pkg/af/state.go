package af

import (
	"log/slog"

	"github.com/raphaelscholle/libcamera-opensource/internal/log"
)

// AFStateMachine orchestrates mode, pause, and scan-state transitions and
// drives the per-frame Prepare/Process calls (§4.8). It is strictly
// single-threaded and cooperative (§5): callers must not invoke Prepare,
// Process, or any control method concurrently.
type AFStateMachine struct {
	cfg Config
	log *slog.Logger

	rangeSel Range
	speedSel Speed
	mode     Mode
	paused   bool

	statsRegion Rectangle
	windows     []Rectangle
	useWindows  bool

	phaseWeights    WeightGrid
	contrastWeights WeightGrid

	scanState     scanState
	ftarget       float64
	fsmooth       float64
	initted       bool
	isPdafEnabled bool

	prevContrast float64
	skipCount    uint
	stepCount    uint
	dropCount    uint

	scanMaxContrast float64
	scanMinContrast float64
	scanMaxIndex    int
	scanData        []ScanRecord

	reportState State

	lastStats Statistics

	lastMean          float64
	lastAgcLocked     int
	triggerWhenStable bool
}

// NewStateMachine creates a fresh AF instance with built-in default tuning.
// Read/Initialise overlay tuning-file values before the first frame; runtime
// state resets on SwitchMode, goIdle, startAF, and startProgrammedScan (§3
// Lifecycle).
func NewStateMachine() *AFStateMachine {
	m := &AFStateMachine{
		cfg:             DefaultConfig(),
		log:             log.Component("af"),
		ftarget:         -1.0,
		fsmooth:         -1.0,
		scanMinContrast: 1.0e9,
		reportState:     StateIdle,
	}
	return m
}

// Name implements Controller.
func (m *AFStateMachine) Name() string { return Name }

// Read implements Controller.
func (m *AFStateMachine) Read(params ParamSource) { m.cfg.Read(params) }

// Initialise implements Controller.
func (m *AFStateMachine) Initialise() { m.cfg.Initialise() }

func (m *AFStateMachine) activeRange() RangeParams { return m.cfg.Ranges[m.rangeSel] }
func (m *AFStateMachine) activeSpeed() SpeedParams { return m.cfg.Speeds[m.speedSel] }

func (m *AFStateMachine) invalidateWeights() {
	m.phaseWeights.Sum = 0
	m.contrastWeights.Sum = 0
}

// SwitchMode recomputes the active statistics region from the camera mode
// and restarts any in-flight coarse/fine scan, since CDAF statistics may
// have changed shape (§4.8 switchMode).
func (m *AFStateMachine) SwitchMode(mode CameraMode) {
	m.statsRegion = Rectangle{
		X:      mode.CropX,
		Y:      mode.CropY,
		Width:  uint(float64(mode.Width) * mode.ScaleX),
		Height: uint(float64(mode.Height) * mode.ScaleY),
	}
	m.log.Debug("switch mode", "statsRegion", m.statsRegion)
	m.invalidateWeights()

	if m.scanState >= scanCoarse && m.scanState < scanSettle {
		m.startProgrammedScan()
	}
	m.skipCount = m.cfg.Confidence.SkipFrames
}

func (m *AFStateMachine) getPhase(regions PdafRegions) (phase, conf float64, valid bool) {
	rows, cols := regions.Rows(), regions.Cols()
	if !m.phaseWeights.valid(rows, cols) {
		m.phaseWeights = computeWeights(rows, cols, m.useWindows, m.statsRegion, m.windows)
	}
	return fusePhase(regions, m.phaseWeights, m.cfg.Confidence.ConfThresh, m.cfg.Confidence.ConfClip)
}

func (m *AFStateMachine) getContrast(regions FocusRegions) float64 {
	rows, cols := regions.Rows(), regions.Cols()
	if !m.contrastWeights.valid(rows, cols) {
		m.contrastWeights = computeWeights(rows, cols, m.useWindows, m.statsRegion, m.windows)
	}
	return fuseContrast(regions, m.contrastWeights)
}

// Prepare runs the AF core for one frame and writes the resulting Status
// into meta (§4.8). PDAF telemetry, when present, is fused and fed straight
// into the closed loop so the commanded lens position can be issued before
// the frame's CDAF statistics are even available (§5).
func (m *AFStateMachine) Prepare(meta Metadata) {
	if m.scanState == scanTrigger {
		m.startAF()
	}

	if m.initted {
		var phase, conf float64
		if regions, ok := meta.Pdaf(); ok {
			if p, c, valid := m.getPhase(regions); valid {
				phase, conf = p, c
			}
			m.isPdafEnabled = true
		}
		oldSs, oldSt := m.scanState, m.stepCount
		m.doAF(meta, m.prevContrast, phase, conf)
		m.updateLensPosition()
		m.log.Debug("prepare",
			"state", m.reportState,
			slog.Group("scan", "from", oldSs.String(), "to", m.scanState.String(), "step", oldSt, "stepNew", m.stepCount),
			"ftarget", m.ftarget, "fsmooth", m.fsmooth,
			"contrast", m.prevContrast, "phase", phase, "conf", conf)
	}

	var status Status
	switch {
	case !m.paused:
		status.PauseState = PauseRunning
	case m.scanState == scanIdle:
		status.PauseState = PausePaused
	default:
		status.PauseState = PausePausing
	}

	if m.mode == ModeAuto && m.scanState != scanIdle {
		status.State = StateScanning
	} else {
		status.State = m.reportState
	}

	if m.initted {
		v := m.cfg.Map.Eval(m.fsmooth)
		status.LensSetting = &v
	}

	meta.SetStatus(status)
}

// Process fuses this frame's CDAF statistics; the result becomes
// prevContrast for doAF on the *next* frame (§5 ordering guarantee).
func (m *AFStateMachine) Process(stats Statistics) {
	m.prevContrast = m.getContrast(stats.FocusRegions())
	m.lastStats = stats
}

// doAF dispatches by scanState (§4.8).
func (m *AFStateMachine) doAF(meta Metadata, contrast, phase, conf float64) {
	if m.skipCount > 0 {
		m.skipCount--
		return
	}

	switch {
	case m.mode == ModeContinuous && !m.isPdafEnabled && m.scanState == scanIdle:
		if m.lastStats == nil {
			return
		}
		locked, _ := meta.AgcLocked()
		m.runSceneMonitor(locked, m.lastStats)

	case m.scanState == scanPdaf:
		threshold := 0.25
		if m.dropCount > 0 {
			threshold = 1.0
		}
		if conf > threshold*float64(m.cfg.Confidence.ConfEpsilon) {
			speed := m.activeSpeed()
			rng := m.activeRange()
			ftarget, state, stepCount := pdafUpdate(speed, rng, m.cfg.Confidence.ConfEpsilon, m.mode, m.stepCount, m.fsmooth, m.ftarget, phase, conf)
			m.ftarget = ftarget
			m.reportState = state
			m.stepCount = stepCount
			if m.stepCount > 0 {
				m.stepCount--
			} else if m.mode != ModeContinuous {
				m.scanState = scanIdle
			}
			m.dropCount = 0
		} else {
			m.dropCount++
			if m.dropCount == m.activeSpeed().DropoutFrames {
				m.startProgrammedScan()
			}
		}

	case m.scanState >= scanCoarse && m.fsmooth == m.ftarget:
		if m.stepCount > 0 {
			m.stepCount--
		} else if m.scanState == scanSettle {
			speed := m.activeSpeed()
			if contrast >= speed.ContrastRatio*m.scanMaxContrast && m.scanMinContrast <= speed.ContrastRatio*m.scanMaxContrast {
				m.reportState = StateFocused
			} else {
				m.reportState = StateFailed
			}
			if m.mode == ModeContinuous && !m.paused && speed.DropoutFrames > 0 && m.isPdafEnabled {
				m.scanState = scanPdaf
			} else {
				m.scanState = scanIdle
			}
			m.scanData = m.scanData[:0]
			m.lastMean = 0
		} else if conf >= float64(m.cfg.Confidence.ConfEpsilon) && m.earlyTerminationByPhase(phase) {
			m.scanState = scanSettle
			if m.mode == ModeContinuous {
				m.stepCount = 0
			} else {
				m.stepCount = m.activeSpeed().StepFrames
			}
		} else {
			m.doScan(contrast, phase, conf)
		}
	}
}

// updateLensPosition clamps ftarget to the active range while scanning, then
// applies the slew-rate limit (invariant 2, invariant 3).
func (m *AFStateMachine) updateLensPosition() {
	if m.scanState >= scanPdaf {
		rng := m.activeRange()
		m.ftarget = clampF(m.ftarget, rng.FocusMin, rng.FocusMax)
	}

	if m.initted {
		speed := m.activeSpeed()
		m.fsmooth = clampF(m.ftarget, m.fsmooth-speed.MaxSlew, m.fsmooth+speed.MaxSlew)
	} else {
		m.fsmooth = m.ftarget
		m.initted = true
		m.skipCount = m.cfg.Confidence.SkipFrames
	}
}

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// startAF begins either the PDAF closed loop or a programmed scan, depending
// on tuning (§4.8).
func (m *AFStateMachine) startAF() {
	speed := m.activeSpeed()
	if speed.DropoutFrames > 0 && (m.mode == ModeContinuous || speed.PdafFrames > 0) {
		if !m.initted {
			m.ftarget = m.activeRange().FocusDefault
			m.updateLensPosition()
		}
		if m.mode == ModeContinuous {
			m.stepCount = 0
		} else {
			m.stepCount = speed.PdafFrames
		}
		m.scanState = scanPdaf
		m.scanData = m.scanData[:0]
		m.dropCount = 0
		m.reportState = StateScanning
	} else {
		m.startProgrammedScan()
	}
}

// startProgrammedScan resets scan bookkeeping and begins the coarse sweep
// from focusMin (§4.6).
func (m *AFStateMachine) startProgrammedScan() {
	m.ftarget = m.activeRange().FocusMin
	m.updateLensPosition()
	m.scanState = scanCoarse
	m.scanMaxContrast = 0.0
	m.scanMinContrast = 1.0e9
	m.scanMaxIndex = 0
	m.scanData = m.scanData[:0]
	m.stepCount = m.activeSpeed().StepFrames
	m.reportState = StateScanning
	m.lastMean = 0
	m.triggerWhenStable = false
	m.lastAgcLocked = 0
}

func (m *AFStateMachine) goIdle() {
	m.scanState = scanIdle
	m.reportState = StateIdle
	m.scanData = m.scanData[:0]
}

// --- Controls (§4.8) ---

// SetRange changes which focus-sweep bounds are active.
func (m *AFStateMachine) SetRange(r Range) {
	if r < rangeMax {
		m.rangeSel = r
	}
}

// SetSpeed changes which PDAF/scan tuning set is active. Switching during a
// PDAF phase extends stepCount by the difference in pdafFrames budgets.
func (m *AFStateMachine) SetSpeed(s Speed) {
	if s >= speedMax {
		return
	}
	if m.scanState == scanPdaf && m.cfg.Speeds[s].PdafFrames > m.cfg.Speeds[m.speedSel].PdafFrames {
		m.stepCount += m.cfg.Speeds[s].PdafFrames - m.cfg.Speeds[m.speedSel].PdafFrames
	}
	m.speedSel = s
}

// SetMetering enables or disables user metering windows.
func (m *AFStateMachine) SetMetering(useWindows bool) {
	if m.useWindows != useWindows {
		m.useWindows = useWindows
		m.invalidateWeights()
	}
}

// SetWindows replaces the metering window list, capped at MaxWindows.
func (m *AFStateMachine) SetWindows(wins []Rectangle) {
	if len(wins) > MaxWindows {
		wins = wins[:MaxWindows]
	}
	m.windows = append([]Rectangle(nil), wins...)
	if m.useWindows {
		m.invalidateWeights()
	}
}

// SetLensPosition is only honoured in Manual mode; it clamps to the map
// domain and reports whether fsmooth would move.
func (m *AFStateMachine) SetLensPosition(dioptres float64) (changed bool, hwpos int) {
	if m.mode == ModeManual {
		m.ftarget = m.cfg.Map.Domain().Clip(dioptres)
		changed = !(m.initted && m.fsmooth == m.ftarget)
		m.updateLensPosition()
	}
	hwpos = m.cfg.Map.Eval(m.fsmooth)
	return changed, hwpos
}

// LensPosition returns the current commanded position, if known.
func (m *AFStateMachine) LensPosition() (dioptres float64, ok bool) {
	if !m.initted {
		return 0, false
	}
	return m.fsmooth, true
}

// TriggerScan starts a triggered scan; only honoured in Auto mode while Idle.
func (m *AFStateMachine) TriggerScan() {
	if m.mode == ModeAuto && m.scanState == scanIdle {
		m.scanState = scanTrigger
	}
}

// CancelScan returns to Idle; only honoured in Auto mode.
func (m *AFStateMachine) CancelScan() {
	if m.mode == ModeAuto {
		m.goIdle()
	}
}

// SetMode switches the user-visible AF mode; idempotent, and clears any
// pending pause on an actual change.
func (m *AFStateMachine) SetMode(mode Mode) {
	if m.mode == mode {
		return
	}
	m.mode = mode
	m.paused = false
	if mode == ModeContinuous {
		m.scanState = scanTrigger
	} else if mode != ModeAuto || m.scanState < scanCoarse {
		m.goIdle()
	}
}

// Mode returns the current AF mode.
func (m *AFStateMachine) Mode() Mode { return m.mode }

// Pause implements Continuous-mode pause/resume (§4.8, §9 Open Question on
// Immediate vs Deferred): any non-Resume value sets the pause flag, with
// only Immediate forcing an Idle transition mid-scan.
func (m *AFStateMachine) Pause(p Pause) {
	if m.mode != ModeContinuous {
		return
	}
	if p == PauseResume && m.paused {
		m.paused = false
		if m.scanState < scanCoarse {
			m.scanState = scanTrigger
		}
	} else if p != PauseResume && !m.paused {
		m.paused = true
		if p == PauseImmediate || m.scanState < scanCoarse {
			m.goIdle()
		}
	}
}
