// Package tui is the terminal viewer for stored runs.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/loopsim/internal/reference"
	"github.com/san-kum/loopsim/internal/sim"
)

const minWindow = 10

var channelNames = [2]string{"y1 level", "y2 temperature"}

// Viewer shows one output channel of a trajectory over a sample window
// that can be zoomed and panned.
type Viewer struct {
	title   string
	tr      *sim.Trajectory
	refs    reference.Pair
	channel int
	lo, hi  int
	showRef bool
	help    bool
	width   int
	height  int
}

func NewViewer(title string, tr *sim.Trajectory, refs reference.Pair) Viewer {
	return Viewer{
		title:   title,
		tr:      tr,
		refs:    refs,
		lo:      0,
		hi:      tr.Len(),
		showRef: true,
		width:   80,
		height:  24,
	}
}

// Run blocks until the user quits.
func Run(v Viewer) error {
	_, err := tea.NewProgram(v, tea.WithAltScreen()).Run()
	return err
}

func (v Viewer) Init() tea.Cmd { return nil }

func (v Viewer) Channel() int { return v.channel }

// Window is the time span currently shown.
func (v Viewer) Window() (float64, float64) {
	if v.tr.Len() == 0 {
		return 0, 0
	}
	return v.tr.Times[v.lo], v.tr.Times[v.hi-1]
}

func (v Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "tab", "c":
			v.channel = (v.channel + 1) % len(channelNames)
		case "+", "=":
			v.zoom(0.5)
		case "-", "_":
			v.zoom(2)
		case "left", "h":
			v.pan(-1)
		case "right", "l":
			v.pan(1)
		case "s":
			v.centerOn(v.refs[v.channel].SwitchTime)
		case "0", "home":
			v.lo, v.hi = 0, v.tr.Len()
		case "r":
			v.showRef = !v.showRef
		case "?":
			v.help = !v.help
		}
	}
	return v, nil
}

func (v *Viewer) zoom(factor float64) {
	n := v.tr.Len()
	size := int(float64(v.hi-v.lo) * factor)
	size = min(max(size, min(minWindow, n)), n)
	mid := (v.lo + v.hi) / 2
	v.lo = mid - size/2
	v.hi = v.lo + size
	v.clamp()
}

// pan moves the window a quarter of its width in direction dir.
func (v *Viewer) pan(dir int) {
	by := dir * max((v.hi-v.lo)/4, 1)
	v.lo += by
	v.hi += by
	v.clamp()
}

func (v *Viewer) centerOn(t float64) {
	size := v.hi - v.lo
	i := 0
	for i < v.tr.Len() && v.tr.Times[i] < t {
		i++
	}
	v.lo = i - size/2
	v.hi = v.lo + size
	v.clamp()
}

// clamp shifts the window back inside [0, Len) keeping its size.
func (v *Viewer) clamp() {
	n := v.tr.Len()
	if v.lo < 0 {
		v.hi -= v.lo
		v.lo = 0
	}
	if v.hi > n {
		v.lo -= v.hi - n
		v.hi = n
	}
	v.lo = max(v.lo, 0)
}

func (v Viewer) series() (out, ref []float64) {
	out = make([]float64, 0, v.hi-v.lo)
	ref = make([]float64, 0, v.hi-v.lo)
	for i := v.lo; i < v.hi; i++ {
		out = append(out, v.tr.Outputs[i][v.channel])
		ref = append(ref, v.refs[v.channel].Value(v.tr.Times[i]))
	}
	return out, ref
}

func (v Viewer) View() string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(v.title)) + "\n")

	if v.tr.Len() == 0 {
		s.WriteString("no samples\n")
		return s.String()
	}

	t0, t1 := v.Window()
	out, ref := v.series()

	width := max(v.width-24, 20)
	height := max(v.height-14, 5)
	caption := fmt.Sprintf("%s  t ∈ [%.1f, %.1f] s", channelNames[v.channel], t0, t1)
	var graph string
	if v.showRef {
		graph = asciigraph.PlotMany([][]float64{out, ref},
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(caption),
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Gray),
		)
	} else {
		graph = asciigraph.Plot(out,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(caption),
		)
	}

	lo, hi := out[0], out[0]
	for _, y := range out {
		lo, hi = min(lo, y), max(hi, y)
	}
	last := out[len(out)-1]
	stats := strings.Join([]string{
		Row("samples", "%d/%d", v.hi-v.lo, v.tr.Len()),
		Row("min", "%.4g", lo),
		Row("max", "%.4g", hi),
		Row("last", "%.4g", last),
		Row("reference", "%.4g", ref[len(ref)-1]),
		Row("error", "%+.4g", ref[len(ref)-1]-last),
	}, "\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, graphStyle.Render(graph), "  ", Panel.Render(stats)))
	s.WriteString("\n")
	if v.help {
		s.WriteString(KeyHint.Render("tab:channel  +/-:zoom  ←/→:pan  s:switch  0:reset  r:reference  q:quit"))
	} else {
		s.WriteString(KeyHint.Render("?:help  q:quit"))
	}
	s.WriteString("\n")
	return s.String()
}
