package results

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	DistributionTitle  = "Land Type Distribution"
	FragmentationTitle = "Fragmentation Index by Land Type"
	FragmentationLabel = "Normalized Fragmentation Index"
)

// ChartOptions controls the generated page
type ChartOptions struct {
	AssetsHost string // Where echarts.min.js is loaded from; empty uses the library default
	Theme      string
	Width      string
	Height     string
}

// DefaultChartOptions matches the dark results view
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Theme:  "dark",
		Width:  "100%",
		Height: "420px",
	}
}

func (o ChartOptions) init(title string) opts.Initialization {
	return opts.Initialization{
		PageTitle:  title,
		Theme:      o.Theme,
		Width:      o.Width,
		Height:     o.Height,
		AssetsHost: o.AssetsHost,
	}
}

// PieChart builds the distribution chart
func PieChart(ds ChartDataset, o ChartOptions) *charts.Pie {
	data := make([]opts.PieData, 0, ds.Len())
	for i, cat := range ds.Categories {
		data = append(data, opts.PieData{
			Name:      cat,
			Value:     ds.Distribution[i],
			ItemStyle: &opts.ItemStyle{Color: ds.Colors[i], BorderColor: "#fff", BorderWidth: 1},
		})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(DistributionTitle)),
		charts.WithTitleOpts(opts.Title{Title: DistributionTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Orient: "vertical", Right: "0"}),
	)
	pie.AddSeries("distribution", data)
	return pie
}

// BarChart builds the fragmentation chart
func BarChart(ds ChartDataset, o ChartOptions) *charts.Bar {
	data := make([]opts.BarData, 0, ds.Len())
	for i, cat := range ds.Categories {
		data = append(data, opts.BarData{
			Name:      cat,
			Value:     ds.Fragmentation[i],
			ItemStyle: &opts.ItemStyle{Color: ds.Colors[i], BorderColor: ds.Colors[i], BorderWidth: 1},
		})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(FragmentationTitle)),
		charts.WithTitleOpts(opts.Title{Title: FragmentationTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "top"}),
	)
	bar.SetXAxis(ds.Categories).
		AddSeries(FragmentationLabel, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// RenderCharts writes an HTML page with the bar and pie charts
func RenderCharts(w io.Writer, ds ChartDataset, o ChartOptions) error {
	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.PageTitle = "Analysis Chart"
	page.AddCharts(BarChart(ds, o), PieChart(ds, o))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}
	return nil
}

// ChartsHTML renders the chart page to a string
func ChartsHTML(ds ChartDataset, o ChartOptions) (string, error) {
	var buf bytes.Buffer
	if err := RenderCharts(&buf, ds, o); err != nil {
		return "", err
	}
	return buf.String(), nil
}
