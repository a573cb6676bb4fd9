package af

import "testing"

func TestLensMap_DefaultAnchors(t *testing.T) {
	c := DefaultConfig()
	c.Initialise()

	d := c.Map.Domain()
	if d.X0 != defaultMapX0 || d.X1 != defaultMapX1 {
		t.Fatalf("domain = [%v, %v], want [%v, %v]", d.X0, d.X1, defaultMapX0, defaultMapX1)
	}

	if got := c.Map.Eval(defaultMapX0); got != int(defaultMapY0) {
		t.Errorf("Eval(x0) = %d, want %d", got, int(defaultMapY0))
	}
	if got := c.Map.Eval(defaultMapX1); got != int(defaultMapY1) {
		t.Errorf("Eval(x1) = %d, want %d", got, int(defaultMapY1))
	}
}

func TestLensMap_ClipsOutsideDomain(t *testing.T) {
	var m LensMap
	m.Append(0, 100)
	m.Append(10, 200)

	if got := m.Eval(-5); got != 100 {
		t.Errorf("Eval(-5) = %d, want clipped to 100", got)
	}
	if got := m.Eval(50); got != 200 {
		t.Errorf("Eval(50) = %d, want clipped to 200", got)
	}
}

func TestLensMap_Monotonic(t *testing.T) {
	var m LensMap
	m.Append(0, 445)
	m.Append(5, 700)
	m.Append(15, 925)

	prev := m.Eval(0)
	for x := 1; x <= 15; x++ {
		got := m.Eval(float64(x))
		if got < prev {
			t.Fatalf("Eval not monotonic at x=%d: %d < %d", x, got, prev)
		}
		prev = got
	}
}

type stubParams struct {
	sub map[string]stubParams
	fl  map[string]float64
	ui  map[string]uint
	pts map[string][][2]float64
}

func (s stubParams) Has(name string) bool {
	_, ok := s.fl[name]
	return ok
}

func (s stubParams) Float(name string) (float64, bool) {
	v, ok := s.fl[name]
	return v, ok
}

func (s stubParams) Uint(name string) (uint, bool) {
	v, ok := s.ui[name]
	return v, ok
}

func (s stubParams) Sub(name string) (ParamSource, bool) {
	v, ok := s.sub[name]
	return v, ok
}

func (s stubParams) Points(name string) ([][2]float64, bool) {
	v, ok := s.pts[name]
	return v, ok
}

func TestConfig_ReadOverlaysOnDefaults(t *testing.T) {
	c := DefaultConfig()

	params := stubParams{
		sub: map[string]stubParams{
			"ranges": {
				sub: map[string]stubParams{
					"normal": {fl: map[string]float64{"min": 1.0, "max": 10.0, "default": 2.0}},
				},
			},
		},
		ui: map[string]uint{"conf_epsilon": 12},
	}

	c.Read(params)

	if c.Ranges[RangeNormal].FocusMin != 1.0 || c.Ranges[RangeNormal].FocusMax != 10.0 {
		t.Errorf("ranges.normal not overlaid: %+v", c.Ranges[RangeNormal])
	}
	// macro/full derive from normal by default when not separately given.
	if c.Ranges[RangeMacro].FocusMin != 1.0 {
		t.Errorf("ranges.macro should inherit normal.min, got %v", c.Ranges[RangeMacro].FocusMin)
	}
	if c.Confidence.ConfEpsilon != 12 {
		t.Errorf("conf_epsilon = %d, want 12", c.Confidence.ConfEpsilon)
	}
	// Untouched defaults survive.
	if c.Confidence.ConfThresh != 16 {
		t.Errorf("conf_thresh default clobbered: %d", c.Confidence.ConfThresh)
	}
	if c.Speeds[SpeedNormal].StepCoarse != 1.0 {
		t.Errorf("speeds.normal default clobbered: %+v", c.Speeds[SpeedNormal])
	}
}
