package results

import (
	"fmt"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/geo"
)

// Summary is the text shown in the analysis information panel
type Summary struct {
	Location    string       `json:"location"`
	Humidity    string       `json:"humidity"`
	Temperature string       `json:"temperature"`
	Rainfall    string       `json:"rainfall"`
	PH          string       `json:"ph"`
	SoilType    string       `json:"soilType"`
	Nitrogen    string       `json:"nitrogen"`
	Phosphorus  string       `json:"phosphorus"`
	Potassium   string       `json:"potassium"`
	Moisture    string       `json:"moisture"`
	Fertilizer  *Fertilizer  `json:"fertilizer,omitempty"`
	Legend      []LegendItem `json:"legend"`
}

const notAvailable = "N/A"

// Summarize formats a stored analysis for display
func Summarize(coords geo.Coordinate, r *analysis.Result) Summary {
	s := Summary{
		Location: fmt.Sprintf("%.4f°N, %.4f°E", coords.Latitude, coords.Longitude),
		PH:       notAvailable,
		SoilType: notAvailable,
		Moisture: notAvailable,
	}
	if r == nil {
		return s
	}

	s.Humidity = withUnit(r.Humidity, "%")
	s.Temperature = withUnit(r.Temperature, "°C")
	s.Rainfall = withUnit(r.Rainfall, " mm")
	if r.PHAvailable() {
		s.PH = r.PH.String()
	}
	if r.SoilType != "" {
		s.SoilType = r.SoilType
	}
	s.Nitrogen = withUnit(r.Nitrogen, " mg/kg")
	s.Phosphorus = withUnit(r.Phosphorus, " mg/kg")
	s.Potassium = withUnit(r.Potassium, " mg/kg")
	if r.Moisture.Valid && r.Moisture.Text == "" && r.Moisture.Value != 0 {
		s.Moisture = fmt.Sprintf("%.2f%%", r.Moisture.Value)
	}

	if r.HasFertilizer() {
		f, _ := FertilizerAdvice(r.Fertilizer)
		s.Fertilizer = &f
	}
	s.Legend = Legend(Transform(r))
	return s
}

// withUnit appends unit to a present, non-zero measure
func withUnit(m analysis.Measure, unit string) string {
	if !m.Valid || (m.Text == "" && m.Value == 0) {
		return notAvailable + unit
	}
	return m.String() + unit
}
