package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/loopsim/internal/sim"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D is a curve in a plane of two observed quantities.
type PhasePortrait2D struct {
	XLabel, YLabel string
	Points         []Point
}

// OutputPortrait traces the run in the (y1, y2) output plane.
func OutputPortrait(tr *sim.Trajectory) *PhasePortrait2D {
	if tr == nil || tr.Len() == 0 {
		return nil
	}

	portrait := &PhasePortrait2D{
		XLabel: "y1",
		YLabel: "y2",
		Points: make([]Point, len(tr.Outputs)),
	}
	for i, y := range tr.Outputs {
		portrait.Points[i] = Point{X: y[0], Y: y[1]}
	}
	return portrait
}

func (p *PhasePortrait2D) bounds() (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}
	return
}

// pad widens [lo, hi] by 10 % on each side; a flat range becomes width 1.
func pad(lo, hi float64) (float64, float64) {
	r := hi - lo
	if r == 0 {
		r = 1
	}
	return lo - 0.1*r, hi + 0.1*r
}

// PhasePortraitToASCII draws the portrait on a width×height character grid.
// The first point is marked 'o', the last '*'.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX, minY, maxY := portrait.bounds()
	minX, maxX = pad(minX, maxX)
	minY, maxY = pad(minY, maxY)

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	cell := func(pt Point) (row, col int) {
		col = int((pt.X - minX) / (maxX - minX) * float64(width-1))
		row = height - 1 - int((pt.Y-minY)/(maxY-minY)*float64(height-1))
		return row, col
	}
	put := func(pt Point, r rune) {
		row, col := cell(pt)
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = r
		}
	}

	for _, pt := range portrait.Points {
		put(pt, '•')
	}
	put(portrait.Points[0], 'o')
	put(portrait.Points[len(portrait.Points)-1], '*')

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s ∈ [%.4g, %.4g]\n", portrait.YLabel, minY, maxY)
	for _, row := range canvas {
		sb.WriteString("│")
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	sb.WriteString("└" + strings.Repeat("─", width) + "\n")
	fmt.Fprintf(&sb, "%s ∈ [%.4g, %.4g]\n", portrait.XLabel, minX, maxX)
	return sb.String()
}
