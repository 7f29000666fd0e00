package results

import (
	"satellitor-desktop/internal/analysis"
)

// FragmentationScale stretches normalized fragmentation indexes so they are
// readable next to the percentage chart. It is not a unit conversion.
const FragmentationScale = 1000

// BackgroundCategory is never charted
const BackgroundCategory = "Background"

// FallbackColor is used for categories without a fixed color
const FallbackColor = "#808080"

var categoryColors = map[string]string{
	"Urban":       "#ff0000",
	"Barren":      "#d2b48c",
	"Agriculture": "#00ff00",
	"Water":       "#0000ff",
}

// ColorFor returns the display color for a land category
func ColorFor(category string) string {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return FallbackColor
}

// ChartDataset is the chart-ready view of an analysis. The four slices are
// parallel and share the category order of the result.
type ChartDataset struct {
	Categories    []string  `json:"categories"`
	Distribution  []float64 `json:"distribution"`
	Fragmentation []float64 `json:"fragmentation"`
	Colors        []string  `json:"colors"`
}

// Len returns the number of charted categories
func (d ChartDataset) Len() int {
	return len(d.Categories)
}

// Transform derives the chart dataset. Categories keep the order of the
// percentage mapping; zero shares and the background class are dropped.
// A category without a fragmentation value charts as 0.
func Transform(r *analysis.Result) ChartDataset {
	ds := ChartDataset{
		Categories:    []string{},
		Distribution:  []float64{},
		Fragmentation: []float64{},
		Colors:        []string{},
	}
	if r == nil {
		return ds
	}

	for _, e := range r.Percentage {
		if e.Value == 0 || e.Key == BackgroundCategory {
			continue
		}

		fi, _ := r.NormalizedFI.Get(e.Key)

		ds.Categories = append(ds.Categories, e.Key)
		ds.Distribution = append(ds.Distribution, e.Value)
		ds.Fragmentation = append(ds.Fragmentation, fi*FragmentationScale)
		ds.Colors = append(ds.Colors, ColorFor(e.Key))
	}

	return ds
}

// LegendItem is one swatch of the mask legend
type LegendItem struct {
	Category string  `json:"category"`
	Color    string  `json:"color"`
	Share    float64 `json:"share"`
}

// Legend lists the categories shown on the mask overlay
func Legend(ds ChartDataset) []LegendItem {
	items := make([]LegendItem, 0, ds.Len())
	for i, cat := range ds.Categories {
		items = append(items, LegendItem{Category: cat, Color: ds.Colors[i], Share: ds.Distribution[i]})
	}
	return items
}
