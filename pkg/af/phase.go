package af

// fusePhase reduces a PDAF region grid to a single (phase, conf) scalar pair
// (§4.3). Accumulators widen to 64 bits before the final divide, per the
// "Numeric discipline" design note, so high-resolution PDAF grids cannot
// overflow sumWcp.
func fusePhase(regions PdafRegions, weights WeightGrid, confThresh, confClip uint) (phase, conf float64, valid bool) {
	var sumWc uint64
	var sumWcp int64

	quarterThresh := confThresh >> 2

	for i := 0; i < regions.NumRegions(); i++ {
		w := weights.W[i]
		if w == 0 {
			continue
		}
		cell := regions.At(i)
		c := uint(cell.Conf)
		if c < confThresh {
			continue
		}
		if c > confClip {
			c = confClip
		}
		c -= quarterThresh
		sumWc += uint64(w) * uint64(c)
		c -= quarterThresh
		sumWcp += int64(w) * int64(c) * int64(cell.Phase)
	}

	if weights.Sum > 0 && uint64(weights.Sum) <= sumWc {
		return float64(sumWcp) / float64(sumWc), float64(sumWc) / float64(weights.Sum), true
	}
	return 0, 0, false
}
