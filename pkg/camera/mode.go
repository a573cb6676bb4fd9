// Package camera provides in-memory implementations of the af package's
// per-frame metadata and statistics contracts, plus the camera mode
// descriptor passed to SwitchMode. A real pipeline would populate these from
// sensor/ISP buffers each frame; here they are plain structs a caller fills
// in directly.
package camera

import "github.com/raphaelscholle/libcamera-opensource/pkg/af"

// Config describes the active sensor mode: the portion of the full pixel
// array selected and any binning/scaling applied on top of it.
type Config struct {
	CropX, CropY   int
	Width, Height  uint
	ScaleX, ScaleY float64
}

// DefaultConfig returns an identity crop/scale over a 4056x3040 full array,
// the common default on Raspberry Pi HQ-camera-class sensors.
func DefaultConfig() Config {
	return Config{
		CropX: 0, CropY: 0,
		Width: 4056, Height: 3040,
		ScaleX: 1.0, ScaleY: 1.0,
	}
}

// Validate reports configuration problems as a list of human-readable
// messages, rather than failing on the first one.
func (c Config) Validate() []string {
	var problems []string
	if c.Width == 0 || c.Height == 0 {
		problems = append(problems, "width and height must be non-zero")
	}
	if c.ScaleX <= 0 || c.ScaleY <= 0 {
		problems = append(problems, "scale factors must be positive")
	}
	return problems
}

// CameraMode converts c to the af package's crop/scale descriptor.
func (c Config) CameraMode() af.CameraMode {
	return af.CameraMode{
		CropX: c.CropX, CropY: c.CropY,
		Width: c.Width, Height: c.Height,
		ScaleX: c.ScaleX, ScaleY: c.ScaleY,
	}
}
