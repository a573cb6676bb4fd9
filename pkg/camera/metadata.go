package camera

import "github.com/raphaelscholle/libcamera-opensource/pkg/af"

// PdafGrid is a row-major grid of PDAF cells satisfying af.PdafRegions.
type PdafGrid struct {
	rows, cols int
	cells      []af.PdafCell
}

// NewPdafGrid builds a PdafGrid; cells must have length rows*cols.
func NewPdafGrid(rows, cols int, cells []af.PdafCell) PdafGrid {
	return PdafGrid{rows: rows, cols: cols, cells: cells}
}

func (g PdafGrid) Rows() int       { return g.rows }
func (g PdafGrid) Cols() int       { return g.cols }
func (g PdafGrid) NumRegions() int { return len(g.cells) }
func (g PdafGrid) At(i int) af.PdafCell { return g.cells[i] }

// FocusGrid is a row-major grid of CDAF focus-of-merit cells satisfying
// af.FocusRegions.
type FocusGrid struct {
	rows, cols int
	cells      []af.FocusRegion
}

// NewFocusGrid builds a FocusGrid; cells must have length rows*cols.
func NewFocusGrid(rows, cols int, cells []af.FocusRegion) FocusGrid {
	return FocusGrid{rows: rows, cols: cols, cells: cells}
}

func (g FocusGrid) Rows() int            { return g.rows }
func (g FocusGrid) Cols() int            { return g.cols }
func (g FocusGrid) NumRegions() int      { return len(g.cells) }
func (g FocusGrid) At(i int) af.FocusRegion { return g.cells[i] }

// AwbZones is a flat list of AWB zones satisfying af.AwbRegions.
type AwbZones struct {
	zones []af.AwbRegion
}

// NewAwbZones builds an AwbZones list.
func NewAwbZones(zones []af.AwbRegion) AwbZones {
	return AwbZones{zones: zones}
}

func (z AwbZones) NumRegions() int       { return len(z.zones) }
func (z AwbZones) At(i int) af.AwbRegion { return z.zones[i] }

// Statistics bundles one frame's CDAF and AWB region grids, implementing
// af.Statistics. A pipeline constructs one of these per frame from ISP
// output. The AF core keeps a reference to the last one passed to Process
// until the next Prepare, where SceneMonitor reads its AWB zones.
type Statistics struct {
	Focus FocusGrid
	Awb   AwbZones
}

func (s Statistics) FocusRegions() af.FocusRegions { return s.Focus }
func (s Statistics) AwbRegions() af.AwbRegions     { return s.Awb }

// Metadata bundles one frame's PDAF input and AGC status, and receives the
// Status that Prepare writes back, implementing af.Metadata.
type Metadata struct {
	PdafGrid     PdafGrid
	HasPdaf      bool
	AgcIsLocked  int
	HasAgcStatus bool

	Status af.Status
}

func (m *Metadata) Pdaf() (af.PdafRegions, bool) {
	if !m.HasPdaf {
		return nil, false
	}
	return m.PdafGrid, true
}

func (m *Metadata) AgcLocked() (int, bool) {
	if !m.HasAgcStatus {
		return 0, false
	}
	return m.AgcIsLocked, true
}

func (m *Metadata) SetStatus(s af.Status) { m.Status = s }
