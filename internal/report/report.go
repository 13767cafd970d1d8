// Package report renders a closed-loop run as a two-panel response figure:
// the level output above, the temperature output below, each with its
// reference staircase and a dashed marker at the setpoint switch.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/loopsim/internal/reference"
	"github.com/san-kum/loopsim/internal/sim"
	"go.uber.org/multierr"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

type Format string

const (
	PDF Format = "pdf"
	PNG Format = "png"
	SVG Format = "svg"
)

var ErrEmpty = errors.New("report: trajectory has no samples")

// FormatFromPath picks the output format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))); f {
	case PDF, PNG, SVG:
		return f, nil
	default:
		return "", fmt.Errorf("report: unsupported output format %q", filepath.Ext(path))
	}
}

type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	DPI    int
	// Labels names the two outputs; Units is appended to each axis label.
	Labels [2]string
	Units  [2]string
}

func DefaultOptions() Options {
	return Options{
		Title:  "Closed-Loop Response with Summed PID Controllers",
		Width:  10 * vg.Inch,
		Height: 8 * vg.Inch,
		DPI:    300,
		Labels: [2]string{"H2 (Water Level)", "T2 (Temperature)"},
		Units:  [2]string{"H2 (m)", "T2 (°C)"},
	}
}

var (
	lineColors = [2]color.Color{
		color.RGBA{B: 220, A: 255},
		color.RGBA{R: 220, A: 255},
	}
	refColor    = color.Gray{Y: 140}
	switchColor = color.Black
)

// Panels builds one plot per output, top to bottom.
func Panels(tr *sim.Trajectory, refs reference.Pair, opts Options) ([][]*plot.Plot, error) {
	if tr.Len() == 0 {
		return nil, ErrEmpty
	}

	t0, t1 := tr.Times[0], tr.Times[tr.Len()-1]
	panels := make([][]*plot.Plot, len(refs))
	for k, ref := range refs {
		p := plot.New()
		p.Y.Label.Text = opts.Units[k]
		p.Legend.Top = true
		p.Add(plotter.NewGrid())
		if k == 0 {
			p.Title.Text = opts.Title
		}
		if k == len(refs)-1 {
			p.X.Label.Text = "Time (s)"
		}

		ys := tr.Output(k)
		pts := make(plotter.XYs, len(ys))
		for i, y := range ys {
			pts[i].X, pts[i].Y = tr.Times[i], y
		}
		out, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", k+1, err)
		}
		out.LineStyle.Color = lineColors[k]
		out.LineStyle.Width = vg.Points(1.5)
		p.Add(out)
		p.Legend.Add(opts.Labels[k], out)

		r, err := plotter.NewLine(staircase(ref, t0, t1))
		if err != nil {
			return nil, fmt.Errorf("reference %d: %w", k+1, err)
		}
		r.LineStyle.Color = refColor
		r.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
		p.Add(r)
		p.Legend.Add(fmt.Sprintf("r%d", k+1), r)

		if ref.SwitchTime > t0 && ref.SwitchTime < t1 {
			lo, hi := span(ys, ref.Before, ref.After)
			marker, err := plotter.NewLine(plotter.XYs{{X: ref.SwitchTime, Y: lo}, {X: ref.SwitchTime, Y: hi}})
			if err != nil {
				return nil, fmt.Errorf("switch marker %d: %w", k+1, err)
			}
			marker.LineStyle.Color = switchColor
			marker.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
			p.Add(marker)
			p.Legend.Add(fmt.Sprintf("r%d step at t=%gs", k+1, ref.SwitchTime), marker)
		}

		panels[k] = []*plot.Plot{p}
	}
	return panels, nil
}

// staircase is the reference signal over [t0, t1] as a polyline.
func staircase(ref reference.Step, t0, t1 float64) plotter.XYs {
	if ref.SwitchTime <= t0 || ref.SwitchTime >= t1 {
		v := ref.Value(t0)
		return plotter.XYs{{X: t0, Y: v}, {X: t1, Y: v}}
	}
	return plotter.XYs{
		{X: t0, Y: ref.Before},
		{X: ref.SwitchTime, Y: ref.Before},
		{X: ref.SwitchTime, Y: ref.After},
		{X: t1, Y: ref.After},
	}
}

func span(ys []float64, extra ...float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range append(extra, ys...) {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

func newCanvas(f Format, opts Options) (vg.CanvasWriterTo, error) {
	switch f {
	case PDF:
		return vgpdf.New(opts.Width, opts.Height), nil
	case PNG:
		c := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
		return vgimg.PngCanvas{Canvas: c}, nil
	case SVG:
		return vgsvg.New(opts.Width, opts.Height), nil
	default:
		return nil, fmt.Errorf("report: unsupported output format %q", f)
	}
}

// Render draws the figure in format f to w.
func Render(w io.Writer, f Format, tr *sim.Trajectory, refs reference.Pair, opts Options) error {
	panels, err := Panels(tr, refs, opts)
	if err != nil {
		return err
	}
	c, err := newCanvas(f, opts)
	if err != nil {
		return err
	}

	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      4 * vg.Millimeter,
		PadTop:    vg.Points(10),
		PadBottom: vg.Points(10),
		PadLeft:   vg.Points(10),
		PadRight:  vg.Points(10),
	}
	canvases := plot.Align(panels, tiles, draw.New(c))
	for i := range panels {
		panels[i][0].Draw(canvases[i][0])
	}

	_, err = c.WriteTo(w)
	return err
}

// Save renders to path, choosing the format from its extension.
func Save(path string, tr *sim.Trajectory, refs reference.Pair, opts Options) (err error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	return Render(file, f, tr, refs, opts)
}
