package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)

	MetricLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	MetricValue = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	KeyHint     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)

	StatusOK   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	StatusFail = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	sparkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
)

// Row renders one label/value line of a summary panel.
func Row(label string, format string, args ...any) string {
	return MetricLabel.Render(label) + MetricValue.Render(fmt.Sprintf(format, args...))
}

// Sparkline squeezes values into width block characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	n := min(width, len(values))
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v := values[i*(len(values)-1)/max(n-1, 1)]
		idx := int((v - lo) / rng * float64(len(chars)-1))
		sb.WriteRune(chars[min(max(idx, 0), len(chars)-1)])
	}
	return sparkStyle.Render(sb.String())
}
