// Package charts renders deck statistics as interactive HTML charts.
package charts

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title
	Subtitle   string   // Chart subtitle
	SeriesName string   // Legend entry for single-series charts
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Colors     []string // Custom colors
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Colors:     []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"},
	}
}

// DataPoint represents a single data point in a chart.
type DataPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

func (c ChartConfig) globalOptions(trigger string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  c.Width,
			Height: c.Height,
			Theme:  c.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    c.Title,
			Subtitle: c.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: trigger,
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(c.ShowLegend),
		}),
		charts.WithColorsOpts(opts.Colors(c.Colors)),
	}
}

// NewBarChart builds a single-series bar chart.
func NewBarChart(data []DataPoint, config ChartConfig) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(config.globalOptions("axis")...)

	xLabels := make([]string, len(data))
	yData := make([]opts.BarData, len(data))
	for i, point := range data {
		xLabels[i] = point.Label
		yData[i] = opts.BarData{Value: point.Value}
	}

	bar.SetXAxis(xLabels).
		AddSeries(config.SeriesName, yData).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show:     opts.Bool(true),
				Position: "top",
			}),
		)
	return bar
}

// NewPieChart builds a pie chart; zero-valued points are dropped.
func NewPieChart(data []DataPoint, config ChartConfig) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(config.globalOptions("item")...)

	items := make([]opts.PieData, 0, len(data))
	for _, point := range data {
		if point.Value == 0 {
			continue
		}
		items = append(items, opts.PieData{Name: point.Label, Value: point.Value})
	}

	pie.AddSeries(config.SeriesName, items).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show:      opts.Bool(true),
				Formatter: "{b}: {c}",
			}),
		)
	return pie
}

// RenderDeckStats writes a page with the mana curve, color identity and
// card type charts for stats.
func RenderDeckStats(w io.Writer, stats *DeckStats, config ChartConfig) error {
	if stats == nil {
		return fmt.Errorf("no deck statistics provided")
	}

	curveConfig := config
	curveConfig.Title = "Mana Curve"
	curveConfig.Subtitle = fmt.Sprintf("%s · %d cards · average %.2f", stats.DeckName, stats.TotalCards, stats.AverageManaValue)
	curveConfig.SeriesName = "Cards"

	colorConfig := config
	colorConfig.Title = "Color Identity"
	colorConfig.Subtitle = stats.DeckName
	colorConfig.SeriesName = "Cards"
	colorConfig.Colors = colorPalette(stats.Colors)

	typeConfig := config
	typeConfig.Title = "Card Types"
	typeConfig.Subtitle = stats.DeckName
	typeConfig.SeriesName = "Cards"

	page := components.NewPage()
	page.PageTitle = stats.DeckName
	page.AddCharts(
		NewBarChart(stats.ManaCurve, curveConfig),
		NewPieChart(stats.Colors, colorConfig),
		NewBarChart(stats.Types, typeConfig),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderDeckStatsFile writes the deck statistics page to outputPath.
func RenderDeckStatsFile(stats *DeckStats, config ChartConfig, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	return RenderDeckStats(f, stats, config)
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
