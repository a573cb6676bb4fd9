package af

// This file defines the narrow, typed metadata contract described in §6 and
// in the "Metadata access" design note: the core never depends on a generic
// dynamic map, only on small interfaces exposing exactly the fields it reads
// or writes for a single frame. Concrete implementations (e.g. pkg/camera)
// are borrowed for the duration of one prepare/process call; the one
// exception is the Statistics passed to Process, which is kept until the
// next Prepare so SceneMonitor can read its AWB regions.

// PdafCell is one PDAF region sample: a signed defocus estimate and an
// unsigned confidence.
type PdafCell struct {
	Phase int32
	Conf  uint32
}

// PdafRegions is the PDAF region grid read by Prepare. Row-major, Rows*Cols
// cells reachable through At.
type PdafRegions interface {
	Rows() int
	Cols() int
	NumRegions() int
	At(i int) PdafCell
}

// FocusRegion is one CDAF region: a focus-of-merit scalar plus the count of
// pixels it was computed over. Val is the only field ContrastFusion reads;
// Counted is carried for parity with the source metadata and is available
// to callers that want to threshold low-population regions themselves.
type FocusRegion struct {
	Val     uint32
	Counted uint32
}

// FocusRegions is the CDAF region grid read by Process.
type FocusRegions interface {
	Rows() int
	Cols() int
	NumRegions() int
	At(i int) FocusRegion
}

// AwbRegion is one AWB zone: RGBY channel sums plus the counted pixel
// population, used only by SceneMonitor's green-channel mean.
type AwbRegion struct {
	RSum, GSum, BSum, YSum uint64
	Counted                uint32
}

// AwbRegions is the AWB region grid read by Process for scene-change
// detection.
type AwbRegions interface {
	NumRegions() int
	At(i int) AwbRegion
}

// Metadata is the per-frame bundle Prepare reads from and writes Status
// into. AgcLocked returns (locked, ok) since agc.prepare_status is optional.
type Metadata interface {
	Pdaf() (PdafRegions, bool)
	AgcLocked() (int, bool)
	SetStatus(Status)
}

// Statistics is the per-frame bundle Process reads CDAF and AWB statistics
// from.
type Statistics interface {
	FocusRegions() FocusRegions
	AwbRegions() AwbRegions
}

// CameraMode describes the active sensor crop/scale, supplied to SwitchMode.
// PDAF and focus-region statistics are assumed to cover the visible area
// described here.
type CameraMode struct {
	CropX, CropY     int
	Width, Height    uint
	ScaleX, ScaleY   float64
}

// Rectangle is an axis-aligned region in sensor coordinates, used both for
// the active statistics region and for user metering windows.
type Rectangle struct {
	X, Y          int
	Width, Height uint
}
