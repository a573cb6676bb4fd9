// afdemo drives the registered autofocus algorithm in Auto mode over
// synthetic CDAF frames (no PDAF data is supplied) so its scan-state
// transitions and scan behaviour can be observed without real sensor
// hardware.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/raphaelscholle/libcamera-opensource/internal/log"
	"github.com/raphaelscholle/libcamera-opensource/pkg/af"
	"github.com/raphaelscholle/libcamera-opensource/pkg/camera"
	"github.com/raphaelscholle/libcamera-opensource/pkg/tuning"
)

func main() {
	tuningFile := flag.String("tuning", "", "path to a YAML tuning file (optional; builtin defaults are used if empty)")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	frames := flag.Int("frames", 60, "number of synthetic frames to drive")
	truePeak := flag.Float64("peak", 4.0, "dioptres of the synthetic scene's best focus")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.Component("afdemo")

	ctrl, ok := af.New(af.Name)
	if !ok {
		fmt.Fprintf(os.Stderr, "algorithm %q not registered\n", af.Name)
		os.Exit(1)
	}

	if *tuningFile != "" {
		params, err := tuning.Load(*tuningFile, af.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tuning: %v\n", err)
			os.Exit(1)
		}
		ctrl.Read(params)
	}
	ctrl.Initialise()

	afc, ok := ctrl.(af.AFController)
	if !ok {
		fmt.Fprintf(os.Stderr, "algorithm %q does not implement the AF control surface\n", af.Name)
		os.Exit(1)
	}

	mode := camera.DefaultConfig()
	ctrl.SwitchMode(mode.CameraMode())

	afc.SetMode(af.ModeAuto)
	afc.TriggerScan()

	const rows, cols = 4, 3
	for i := 0; i < *frames; i++ {
		meta := &camera.Metadata{HasAgcStatus: true, AgcIsLocked: 1}
		ctrl.Prepare(meta)

		lensPos, _ := afc.LensPosition()
		stats := camera.Statistics{
			Focus: syntheticFocus(rows, cols, lensPos, *truePeak),
			Awb:   camera.NewAwbZones(nil),
		}
		ctrl.Process(stats)

		logger.Info("frame",
			"i", i, "state", meta.Status.State, "pause", meta.Status.PauseState,
			"lens", lensPos, "hw", derefOrNeg1(meta.Status.LensSetting))

		if meta.Status.State == af.StateFocused || meta.Status.State == af.StateFailed {
			break
		}
	}
}

// syntheticFocus builds a CDAF grid whose focus-of-merit peaks at truePeak
// dioptres, modelling a simple unimodal contrast curve.
func syntheticFocus(rows, cols int, lensPos, truePeak float64) camera.FocusGrid {
	d := lensPos - truePeak
	merit := 1000.0 * math.Exp(-d*d/2.0)
	cells := make([]af.FocusRegion, rows*cols)
	for i := range cells {
		cells[i] = af.FocusRegion{Val: uint32(merit), Counted: 256}
	}
	return camera.NewFocusGrid(rows, cols, cells)
}

func derefOrNeg1(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
