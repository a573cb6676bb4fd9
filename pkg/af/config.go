package af

import (
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/raphaelscholle/libcamera-opensource/internal/log"
)

// ParamSource is the narrow view onto a parsed tuning file that Config.Read
// consumes. The AF core never depends on a generic dynamic map (see the
// "Metadata access" design note, extended here to tuning-file access): a
// concrete ParamSource such as pkg/tuning's YAML adapter is the only thing
// that ever touches the raw document shape.
type ParamSource interface {
	// Has reports whether a key is present at this level.
	Has(name string) bool
	// Float reads a floating point leaf. ok is false if absent or not a number.
	Float(name string) (float64, bool)
	// Uint reads an unsigned integer leaf.
	Uint(name string) (uint, bool)
	// Sub descends into a nested object.
	Sub(name string) (ParamSource, bool)
	// Points reads a list of [x, y] pairs, used for the lens map.
	Points(name string) ([][2]float64, bool)
}

// RangeParams bounds the focus sweep for one AfRange.
type RangeParams struct {
	FocusMin     float64 // dioptres
	FocusMax     float64 // dioptres
	FocusDefault float64 // dioptres, used to seed a triggered scan
}

func (r *RangeParams) read(params ParamSource, logger interface {
	Warn(string, ...any)
}, label string) {
	readFloat(&r.FocusMin, params, "min", logger, label)
	readFloat(&r.FocusMax, params, "max", logger, label)
	readFloat(&r.FocusDefault, params, "default", logger, label)
}

// SpeedParams tunes the closed-loop PDAF controller and the programmed scan
// for one AfSpeed.
type SpeedParams struct {
	StepCoarse    float64 // dioptres per coarse scan step
	StepFine      float64 // dioptres per fine scan step
	ContrastRatio float64 // 0..1, scan termination / settle threshold
	PdafGain      float64 // negative: phase units -> dioptres
	PdafSquelch   float64 // dioptres, dead-band radius
	MaxSlew       float64 // dioptres/frame
	PdafFrames    uint    // triggered-mode PDAF budget
	DropoutFrames uint    // consecutive low-confidence frames before falling back
	StepFrames    uint    // inter-step dwell, in frames
}

func (s *SpeedParams) read(params ParamSource, logger interface {
	Warn(string, ...any)
}, label string) {
	readFloat(&s.StepCoarse, params, "step_coarse", logger, label)
	readFloat(&s.StepFine, params, "step_fine", logger, label)
	readFloat(&s.ContrastRatio, params, "contrast_ratio", logger, label)
	readFloat(&s.PdafGain, params, "pdaf_gain", logger, label)
	readFloat(&s.PdafSquelch, params, "pdaf_squelch", logger, label)
	readFloat(&s.MaxSlew, params, "max_slew", logger, label)
	readUint(&s.PdafFrames, params, "pdaf_frames", logger, label)
	readUint(&s.DropoutFrames, params, "dropout_frames", logger, label)
	readUint(&s.StepFrames, params, "step_frames", logger, label)
}

// ConfidenceParams tunes PDAF confidence handling, independent of range/speed.
type ConfidenceParams struct {
	ConfEpsilon uint
	ConfThresh  uint
	ConfClip    uint
	SkipFrames  uint
}

func readFloat(dst *float64, params ParamSource, name string, logger interface {
	Warn(string, ...any)
}, label string) {
	if v, ok := params.Float(name); ok {
		*dst = v
	} else {
		logger.Warn("missing tuning parameter, using default", "param", name, "section", label, "default", *dst)
	}
}

func readUint(dst *uint, params ParamSource, name string, logger interface {
	Warn(string, ...any)
}, label string) {
	if v, ok := params.Uint(name); ok {
		*dst = v
	} else {
		logger.Warn("missing tuning parameter, using default", "param", name, "section", label, "default", *dst)
	}
}

// Domain is the supported input range of a LensMap.
type Domain struct {
	X0, X1 float64
}

// Clip clamps x to the domain.
func (d Domain) Clip(x float64) float64 {
	if x < d.X0 {
		return d.X0
	}
	if x > d.X1 {
		return d.X1
	}
	return x
}

// LensMap is a piecewise-linear, strictly non-empty mapping from dioptres to
// a hardware lens-driver code. Anchor points must be appended in increasing
// x order (matching the tuning file's "map" list); Eval clips to the
// supported domain before interpolating, so it is monotonic whenever the
// anchor points are monotonic (invariant 6).
type LensMap struct {
	xs, ys []float64
	fit    interp.PiecewiseLinear
	ready  bool
}

// Append adds one (dioptres, hardware-code) anchor point.
func (m *LensMap) Append(x, y float64) {
	m.xs = append(m.xs, x)
	m.ys = append(m.ys, y)
	m.ready = false
}

// Empty reports whether the map has no anchor points at all.
func (m *LensMap) Empty() bool {
	return len(m.xs) == 0
}

func (m *LensMap) build() {
	if m.ready {
		return
	}
	// Anchor points normally arrive already sorted (tuning file order), but
	// sort defensively so Fit never sees a non-monotonic x sequence.
	idx := make([]int, len(m.xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return m.xs[idx[a]] < m.xs[idx[b]] })
	xs := make([]float64, len(m.xs))
	ys := make([]float64, len(m.ys))
	for i, j := range idx {
		xs[i] = m.xs[j]
		ys[i] = m.ys[j]
	}
	wellFormed := len(xs) >= 2
	for i := 1; wellFormed && i < len(xs); i++ {
		wellFormed = xs[i] > xs[i-1]
	}
	if !wellFormed {
		// Duplicate x anchors or similar malformed tuning data: fall back to
		// a flat map at the first anchor rather than panicking mid-frame.
		log.Warn("lens map anchors malformed, using constant fallback", "anchors", len(xs))
		xs = []float64{xs[0], xs[0] + 1}
		ys = []float64{ys[0], ys[0]}
	}
	_ = m.fit.Fit(xs, ys)
	m.xs, m.ys = xs, ys
	m.ready = true
}

// Domain returns the supported input range, clipping outside it.
func (m *LensMap) Domain() Domain {
	m.build()
	return Domain{X0: m.xs[0], X1: m.xs[len(m.xs)-1]}
}

// Eval returns the rounded, clipped hardware code for x dioptres.
func (m *LensMap) Eval(x float64) int {
	m.build()
	x = m.Domain().Clip(x)
	y := m.fit.Predict(x)
	if y >= 0 {
		return int(y + 0.5)
	}
	return -int(-y + 0.5)
}

// defaultMapX0/Y0/X1/Y1 are the default dioptre->hardware-code anchors used
// when the tuning file supplies no map.
const (
	defaultMapX0 = 0.0
	defaultMapY0 = 445.0
	defaultMapX1 = 15.0
	defaultMapY1 = 925.0
)

// Config holds all tuning parameters, immutable once Read/Initialise have
// run (§3 Lifecycle).
type Config struct {
	Ranges     [rangeMax]RangeParams
	Speeds     [speedMax]SpeedParams
	Confidence ConfidenceParams
	Map        LensMap
}

// DefaultConfig returns the built-in defaults listed in §3, as if every
// tuning-file entry were absent.
func DefaultConfig() Config {
	var c Config
	c.Ranges[RangeNormal] = RangeParams{FocusMin: 0.0, FocusMax: 12.0, FocusDefault: 1.0}
	c.Ranges[RangeMacro] = RangeParams{FocusMin: 0.0, FocusMax: 12.0, FocusDefault: 1.0}
	c.Ranges[RangeFull] = RangeParams{FocusMin: 0.0, FocusMax: 12.0, FocusDefault: 1.0}
	normal := SpeedParams{
		StepCoarse: 1.0, StepFine: 0.25, ContrastRatio: 0.75,
		PdafGain: -0.02, PdafSquelch: 0.125, MaxSlew: 2.0,
		PdafFrames: 20, DropoutFrames: 6, StepFrames: 4,
	}
	c.Speeds[SpeedNormal] = normal
	c.Speeds[SpeedFast] = normal
	c.Confidence = ConfidenceParams{ConfEpsilon: 8, ConfThresh: 16, ConfClip: 512, SkipFrames: 5}
	return c
}

// Read loads ranges, speeds, confidence constants and the lens map from
// params, overlaying them onto c. Callers must start from DefaultConfig()
// (the zero value leaves every field at its Go zero, not the documented
// default) so that a missing tuning-file entry leaves the builtin default in
// place. Missing entries fall back to those defaults and emit a warning;
// nothing here ever returns an error that aborts construction (§7).
func (c *Config) Read(params ParamSource) {
	logger := log.Component("af.config")

	if rr, ok := params.Sub("ranges"); ok {
		if normal, ok := rr.Sub("normal"); ok {
			c.Ranges[RangeNormal].read(normal, logger, "ranges.normal")
		} else {
			logger.Warn("missing range", "range", "normal")
		}
		c.Ranges[RangeMacro] = c.Ranges[RangeNormal]
		if macro, ok := rr.Sub("macro"); ok {
			c.Ranges[RangeMacro].read(macro, logger, "ranges.macro")
		}
		c.Ranges[RangeFull] = RangeParams{
			FocusMin:     min64(c.Ranges[RangeNormal].FocusMin, c.Ranges[RangeMacro].FocusMin),
			FocusMax:     max64(c.Ranges[RangeNormal].FocusMax, c.Ranges[RangeMacro].FocusMax),
			FocusDefault: c.Ranges[RangeNormal].FocusDefault,
		}
		if full, ok := rr.Sub("full"); ok {
			c.Ranges[RangeFull].read(full, logger, "ranges.full")
		}
	} else {
		logger.Warn("no ranges defined")
	}

	if ss, ok := params.Sub("speeds"); ok {
		if normal, ok := ss.Sub("normal"); ok {
			c.Speeds[SpeedNormal].read(normal, logger, "speeds.normal")
		} else {
			logger.Warn("missing speed", "speed", "normal")
		}
		c.Speeds[SpeedFast] = c.Speeds[SpeedNormal]
		if fast, ok := ss.Sub("fast"); ok {
			c.Speeds[SpeedFast].read(fast, logger, "speeds.fast")
		}
	} else {
		logger.Warn("no speeds defined")
	}

	readUint(&c.Confidence.ConfEpsilon, params, "conf_epsilon", logger, "root")
	readUint(&c.Confidence.ConfThresh, params, "conf_thresh", logger, "root")
	readUint(&c.Confidence.ConfClip, params, "conf_clip", logger, "root")
	readUint(&c.Confidence.SkipFrames, params, "skip_frames", logger, "root")

	if pts, ok := params.Points("map"); ok {
		for _, p := range pts {
			c.Map.Append(p[0], p[1])
		}
	} else {
		logger.Warn("no map defined")
	}
}

// Initialise installs the default lens map if the tuning file provided none.
// Called once, after Read, per §3 Lifecycle.
func (c *Config) Initialise() {
	if c.Map.Empty() {
		c.Map.Append(defaultMapX0, defaultMapY0)
		c.Map.Append(defaultMapX1, defaultMapY1)
	}
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
