package af

// MaxWindows bounds both the user window list (§4.8 setWindows) and the
// per-cell weight normalisation constant below.
const MaxWindows = 10

// WeightGrid is a rows*cols grid of unsigned weights plus their sum,
// computed once per (rows, cols, window-set) combination and reused until
// invalidated (§3, §4.2).
type WeightGrid struct {
	Rows, Cols int
	W          []uint
	Sum        uint
}

// valid reports whether the grid already covers the requested dimensions
// and has a non-zero sum (i.e. does not need recomputing).
func (g WeightGrid) valid(rows, cols int) bool {
	return g.Rows == rows && g.Cols == cols && g.Sum != 0
}

// computeWeights projects the user metering windows onto a rows*cols grid,
// falling back to the central AF window when windows are absent, disabled,
// or entirely outside statsRegion (§4.2).
func computeWeights(rows, cols int, useWindows bool, statsRegion Rectangle, windows []Rectangle) WeightGrid {
	g := WeightGrid{Rows: rows, Cols: cols, W: make([]uint, rows*cols)}

	if rows > 0 && cols > 0 && useWindows &&
		int(statsRegion.Height) >= rows && int(statsRegion.Width) >= cols {
		// Ensure the total fits in 16 bits; 46080 divides evenly for common
		// grid ratios (spec §4.2).
		maxCellWeight := 46080 / uint(MaxWindows*rows*cols)
		cellH := statsRegion.Height / uint(rows)
		cellW := statsRegion.Width / uint(cols)
		cellA := cellH * cellW

		for _, w := range windows {
			for r := 0; r < rows; r++ {
				y0 := maxInt(statsRegion.Y+int(cellH)*r, w.Y)
				y1 := minInt(statsRegion.Y+int(cellH)*(r+1), w.Y+int(w.Height))
				if y0 >= y1 {
					continue
				}
				overlapH := uint(y1 - y0)
				for c := 0; c < cols; c++ {
					x0 := maxInt(statsRegion.X+int(cellW)*c, w.X)
					x1 := minInt(statsRegion.X+int(cellW)*(c+1), w.X+int(w.Width))
					if x0 >= x1 {
						continue
					}
					overlapW := uint(x1 - x0)
					a := overlapH * overlapW
					// Ceiling division: (maxCellWeight*overlap + cellArea - 1) / cellArea.
					a = (maxCellWeight*a + cellA - 1) / cellA
					g.W[r*cols+c] += a
					g.Sum += a
				}
			}
		}
	}

	if g.Sum == 0 {
		// Central AF window: middle 1/2 width, middle 1/3 height.
		for r := rows / 3; r < rows-rows/3; r++ {
			for c := cols / 4; c < cols-cols/4; c++ {
				g.W[r*cols+c] = 1
				g.Sum++
			}
		}
	}

	return g
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
