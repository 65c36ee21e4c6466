package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/vigil/internal/model"
)

const (
	gaugeChartHeight = 6
	gaugeBarWidth    = 3
	gaugeBarGap      = 2
)

// gauge is one bar in the metrics panel. Value is on a 0-100 scale.
type gauge struct {
	name  string
	value float64
	label string
}

// snapshotGauges derives the bar set for a snapshot. Temperature is drawn
// with its display scaling and labelled in degrees. Network bandwidth is not
// a percentage and only appears in the legend.
func snapshotGauges(s model.MetricsSnapshot) []gauge {
	return []gauge{
		{name: "CPU", value: s.CPUPercent, label: fmt.Sprintf("%.1f%%", s.CPUPercent)},
		{name: "MEM", value: s.MemoryPercent, label: fmt.Sprintf("%.1f%%", s.MemoryPercent)},
		{name: "DSK", value: s.DiskPercent, label: fmt.Sprintf("%.1f%%", s.DiskPercent)},
		{name: "TMP", value: s.TemperatureGauge(), label: fmt.Sprintf("%.1f°C", s.TemperatureCelsius)},
	}
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

// renderGauges draws the metrics bar chart with a legend on the right.
// Every bar is stacked to 100 so the chart keeps a fixed scale.
func renderGauges(s *model.MetricsSnapshot) string {
	if s == nil {
		return dimStyle.Render("waiting for first sample...")
	}
	gauges := snapshotGauges(*s)

	chartWidth := len(gauges)*(gaugeBarWidth+gaugeBarGap) - gaugeBarGap
	bc := barchart.New(chartWidth, gaugeChartHeight,
		barchart.WithBarGap(gaugeBarGap),
		barchart.WithBarWidth(gaugeBarWidth),
		barchart.WithNoAxis(),
	)
	headroom := lipgloss.NewStyle().Foreground(lipgloss.Color("236")).Background(lipgloss.Color("236"))
	for _, g := range gauges {
		v := clampPercent(g.value)
		c := usageColor(v)
		bc.Push(barchart.BarData{
			Label: g.name,
			Values: []barchart.BarValue{
				{Name: g.name, Value: v, Style: lipgloss.NewStyle().Foreground(c).Background(c)},
				{Name: "rest", Value: 100 - v, Style: headroom},
			},
		})
	}
	bc.Draw()

	names := make([]string, len(gauges))
	for i, g := range gauges {
		names[i] = fmt.Sprintf("%-*s", gaugeBarWidth, g.name)
	}
	chart := bc.View() + "\n" + dimStyle.Render(strings.Join(names, strings.Repeat(" ", gaugeBarGap)))

	legend := make([]string, 0, len(gauges)+5)
	for _, g := range gauges {
		style := lipgloss.NewStyle().Foreground(usageColor(clampPercent(g.value)))
		legend = append(legend, style.Render(fmt.Sprintf("%-4s%10s", g.name, g.label)))
	}
	legend = append(legend,
		dimStyle.Render(strings.Repeat("─", 14)),
		fmt.Sprintf("%-8s%4.1fMB/s", "net", s.NetworkBandwidthMBps),
		fmt.Sprintf("%-8s%6d", "frames", s.TotalFramesProcessed),
		fmt.Sprintf("%-8s%4.0fms", "avg inf", s.AvgInferenceTimeMs),
		fmt.Sprintf("%-8s%6d", "active", s.ActiveStreams),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chart, "   ", strings.Join(legend, "\n"))
}
