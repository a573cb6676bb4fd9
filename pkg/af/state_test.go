package af

import (
	"math"
	"testing"
)

// contrastOf models a simple unimodal contrast curve peaking at peak
// dioptres, used to drive a synthetic programmed scan end to end.
func contrastOf(focus, peak float64) float64 {
	d := focus - peak
	return 1000.0 * math.Exp(-d*d/2.0)
}

// assertFrameInvariants checks §8 invariants 1 and 2 after a single Prepare
// call: the slew-rate bound on fsmooth's per-frame movement, and the
// focusMin/focusMax clamp on ftarget while scanState has reached Pdaf or
// beyond. Called once per frame so a slew-clamp or range-clamp regression
// fails on the frame it actually happens, not just in a final-position check.
func assertFrameInvariants(t *testing.T, m *AFStateMachine, prevFsmooth float64, wasInitted bool) {
	t.Helper()
	if wasInitted {
		if d := math.Abs(m.fsmooth - prevFsmooth); d > m.activeSpeed().MaxSlew+1e-9 {
			t.Fatalf("fsmooth moved %v in one frame, want <= maxSlew %v (invariant 1)", d, m.activeSpeed().MaxSlew)
		}
	}
	if m.scanState >= scanPdaf {
		rng := m.activeRange()
		if m.ftarget < rng.FocusMin-1e-9 || m.ftarget > rng.FocusMax+1e-9 {
			t.Fatalf("ftarget %v outside active range [%v, %v] while scanState=%v (invariant 2)", m.ftarget, rng.FocusMin, rng.FocusMax, m.scanState)
		}
	}
}

func TestAFStateMachine_ManualModeSetsLensDirectly(t *testing.T) {
	m := NewStateMachine()
	m.Initialise()
	m.SwitchMode(CameraMode{Width: 4056, Height: 3040, ScaleX: 1, ScaleY: 1})
	m.SetMode(ModeManual)

	changed, _ := m.SetLensPosition(3.0)
	if !changed {
		t.Fatal("expected first SetLensPosition to report a change")
	}

	meta := &fakeMetadata{}
	m.Prepare(meta)

	if meta.status.LensSetting == nil {
		t.Fatal("expected LensSetting to be populated after Prepare")
	}
	if pos, ok := m.LensPosition(); !ok || math.Abs(pos-3.0) > 1e-9 {
		t.Errorf("LensPosition = (%v, %v), want (3.0, true)", pos, ok)
	}
}

func TestAFStateMachine_AutoModeScanConverges(t *testing.T) {
	m := NewStateMachine()
	m.Initialise()
	m.SwitchMode(CameraMode{Width: 4056, Height: 3040, ScaleX: 1, ScaleY: 1})
	m.SetMode(ModeAuto)
	m.TriggerScan()

	const truePeak = 4.0
	var last Status
	converged := false

	for i := 0; i < 500; i++ {
		prevFsmooth, wasInitted := m.fsmooth, m.initted
		meta := &fakeMetadata{}
		m.Prepare(meta)
		assertFrameInvariants(t, m, prevFsmooth, wasInitted)
		last = meta.status

		pos, ok := m.LensPosition()
		if !ok {
			continue
		}
		contrast := contrastOf(pos, truePeak)
		stats := contrastStats{val: uint32(contrast)}
		m.Process(stats)

		if last.State == StateFocused || last.State == StateFailed {
			converged = true
			break
		}
	}

	if !converged {
		t.Fatal("scan did not converge within the frame budget")
	}
	if last.State != StateFocused {
		t.Fatalf("expected scan to finish Focused, got %v", last.State)
	}

	pos, ok := m.LensPosition()
	if !ok {
		t.Fatal("expected a known lens position after convergence")
	}
	if math.Abs(pos-truePeak) > 0.5 {
		t.Errorf("converged position %v too far from true peak %v", pos, truePeak)
	}
}

func TestAFStateMachine_ContinuousPdafConverges(t *testing.T) {
	m := NewStateMachine()
	m.Initialise()
	m.SwitchMode(CameraMode{Width: 4056, Height: 3040, ScaleX: 1, ScaleY: 1})
	m.SetMode(ModeContinuous)

	const truePeak = 6.0
	var last Status

	for i := 0; i < 2000; i++ {
		pos, ok := m.LensPosition()
		var phase float64
		if ok {
			phase = (truePeak - pos) / -0.02 // invert pdafGain so fusePhase*gain recovers (truePeak-pos)
		}
		meta := &fakePdafMetadata{
			fakeMetadata: fakeMetadata{},
			regions: fakePdaf{rows: 1, cols: 1, cells: []PdafCell{
				{Phase: int32(phase), Conf: 4096},
			}},
		}
		prevFsmooth, wasInitted := m.fsmooth, m.initted
		m.Prepare(meta)
		assertFrameInvariants(t, m, prevFsmooth, wasInitted)
		last = meta.status

		pos2, ok2 := m.LensPosition()
		var contrast float64
		if ok2 {
			contrast = contrastOf(pos2, truePeak)
		}
		m.Process(contrastStats{val: uint32(contrast)})
	}
	_ = last

	pos, ok := m.LensPosition()
	if !ok {
		t.Fatal("expected a known lens position")
	}
	if math.Abs(pos-truePeak) > 0.3 {
		t.Errorf("continuous PDAF converged position %v too far from true peak %v", pos, truePeak)
	}
}

func TestAFStateMachine_PauseImmediateGoesIdle(t *testing.T) {
	m := NewStateMachine()
	m.Initialise()
	m.SwitchMode(CameraMode{Width: 4056, Height: 3040, ScaleX: 1, ScaleY: 1})
	m.SetMode(ModeContinuous)

	meta := &fakeMetadata{}
	m.Prepare(meta)
	m.Process(contrastStats{val: 500})

	m.Pause(PauseImmediate)
	if meta2 := (&fakeMetadata{}); true {
		m.Prepare(meta2)
		if meta2.status.PauseState != PausePaused {
			t.Errorf("PauseState = %v, want Paused", meta2.status.PauseState)
		}
	}
}

// TestAFStateMachine_DropoutFallbackToCoarse exercises §8 scenario S4: with
// no PDAF data ever available, a Pdaf phase must fall back to a programmed
// scan exactly on the DropoutFrames'th consecutive low-confidence frame, not
// before and not later.
func TestAFStateMachine_DropoutFallbackToCoarse(t *testing.T) {
	m := NewStateMachine()
	m.Initialise()
	m.SwitchMode(CameraMode{Width: 4056, Height: 3040, ScaleX: 1, ScaleY: 1})
	m.SetMode(ModeAuto)
	m.TriggerScan()

	// Run past the initial skip-frame dwell imposed by the first
	// updateLensPosition call, so the dropout counter below starts from a
	// known zero.
	for i := 0; i < 50 && (m.skipCount > 0 || m.scanState != scanPdaf); i++ {
		m.Prepare(&fakeMetadata{})
	}
	if m.scanState != scanPdaf || m.dropCount != 0 {
		t.Fatalf("setup: expected scanState=Pdaf, dropCount=0, got scanState=%v dropCount=%d", m.scanState, m.dropCount)
	}

	dropoutFrames := m.activeSpeed().DropoutFrames
	for i := uint(1); i < dropoutFrames; i++ {
		m.Prepare(&fakeMetadata{})
		if m.scanState != scanPdaf {
			t.Fatalf("scanState left Pdaf early on low-confidence frame %d of %d (dropCount=%d)", i, dropoutFrames, m.dropCount)
		}
	}

	m.Prepare(&fakeMetadata{})
	if m.scanState != scanCoarse {
		t.Fatalf("scanState = %v after %d consecutive low-confidence frames, want Coarse", m.scanState, dropoutFrames)
	}
}

// TestAFStateMachine_PauseDeferredCompletesPendingScanThenResumes exercises
// §8 scenario S5: a Deferred pause mid-scan lets the in-flight scan run to
// Settle (reporting Pausing while it does), then reports Paused with
// scanState Idle until Pause(Resume), which must return to Trigger.
func TestAFStateMachine_PauseDeferredCompletesPendingScanThenResumes(t *testing.T) {
	m := NewStateMachine()
	m.Initialise()
	m.SwitchMode(CameraMode{Width: 4056, Height: 3040, ScaleX: 1, ScaleY: 1})
	m.SetMode(ModeContinuous)

	const truePeak = 3.0
	runFrame := func() Status {
		meta := &fakeMetadata{}
		m.Prepare(meta)
		pos, ok := m.LensPosition()
		var contrast float64
		if ok {
			contrast = contrastOf(pos, truePeak)
		}
		m.Process(contrastStats{val: uint32(contrast)})
		return meta.status
	}

	// No PDAF data is ever supplied, so the dropout fallback starts a
	// programmed scan; drive frames until it is underway.
	var status Status
	for i := 0; i < 200 && m.scanState < scanCoarse; i++ {
		status = runFrame()
	}
	if m.scanState < scanCoarse {
		t.Fatalf("setup: expected a programmed scan underway, scanState=%v", m.scanState)
	}

	m.Pause(PauseDeferred)
	if status = runFrame(); status.PauseState != PausePausing {
		t.Errorf("PauseState = %v immediately after a Deferred pause mid-scan, want Pausing", status.PauseState)
	}
	if m.scanState == scanIdle {
		t.Fatal("Deferred pause must not cut the in-flight scan short")
	}

	settled := false
	for i := 0; i < 500; i++ {
		status = runFrame()
		if status.PauseState == PausePaused {
			settled = true
			break
		}
	}
	if !settled {
		t.Fatal("deferred pause never settled to Paused once the pending scan finished")
	}
	if m.scanState != scanIdle {
		t.Errorf("scanState = %v after settling paused, want Idle", m.scanState)
	}

	m.Pause(PauseResume)
	if m.paused {
		t.Error("expected Pause(Resume) to clear the pause flag")
	}
	if m.scanState != scanTrigger {
		t.Errorf("scanState = %v after Resume, want Trigger", m.scanState)
	}
}

// --- test doubles ---

type fakeMetadata struct {
	status  Status
	agc     int
	hasAgc  bool
}

func (f *fakeMetadata) Pdaf() (PdafRegions, bool)   { return nil, false }
func (f *fakeMetadata) AgcLocked() (int, bool)      { return f.agc, f.hasAgc }
func (f *fakeMetadata) SetStatus(s Status)          { f.status = s }

type fakePdafMetadata struct {
	fakeMetadata
	regions fakePdaf
}

func (f *fakePdafMetadata) Pdaf() (PdafRegions, bool) { return f.regions, true }
func (f *fakePdafMetadata) SetStatus(s Status)        { f.status = s }

type contrastStats struct {
	val uint32
}

func (c contrastStats) FocusRegions() FocusRegions {
	return FocusGridStub{rows: 1, cols: 1, cells: []FocusRegion{{Val: c.val, Counted: 256}}}
}
func (c contrastStats) AwbRegions() AwbRegions { return AwbGridStub{} }

type AwbGridStub struct{}

func (AwbGridStub) NumRegions() int      { return 0 }
func (AwbGridStub) At(i int) AwbRegion   { return AwbRegion{} }
