package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Entry is one category of a per-category mapping
type Entry struct {
	Key   string
	Value float64
}

// Floats is a JSON object of category -> number that keeps the key order
// the service sent. Null values decode as 0.
type Floats []Entry

// UnmarshalJSON decodes an object while preserving key order
func (f *Floats) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	out := Floats{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var m Measure
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("category %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Value: m.Value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

// MarshalJSON encodes the entries as an object in order
func (f Floats) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(e.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value for key
func (f Floats) Get(key string) (float64, bool) {
	for _, e := range f {
		if e.Key == key {
			return e.Value, true
		}
	}
	return 0, false
}

// Keys returns the categories in received order
func (f Floats) Keys() []string {
	keys := make([]string, len(f))
	for i, e := range f {
		keys[i] = e.Key
	}
	return keys
}

// Measure is a numeric field the service may send as a number, a numeric
// string or null.
type Measure struct {
	Value float64
	Text  string // Original text when the service sent a non-numeric string
	Valid bool
}

// Number creates a valid measure
func Number(v float64) Measure {
	return Measure{Value: v, Valid: true}
}

// UnmarshalJSON accepts numbers, strings and null
func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*m = Measure{}

	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*m = Measure{Value: v, Valid: true}
			return nil
		}
		*m = Measure{Text: s, Valid: s != ""}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Measure{Value: v, Valid: true}
	return nil
}

// MarshalJSON writes null, a string or a number
func (m Measure) MarshalJSON() ([]byte, error) {
	switch {
	case !m.Valid:
		return []byte("null"), nil
	case m.Text != "":
		return json.Marshal(m.Text)
	default:
		return []byte(strconv.FormatFloat(m.Value, 'f', -1, 64)), nil
	}
}

// String formats the measure for display, "N/A" when missing
func (m Measure) String() string {
	switch {
	case !m.Valid:
		return "N/A"
	case m.Text != "":
		return m.Text
	default:
		return strconv.FormatFloat(m.Value, 'f', -1, 64)
	}
}

// CropData holds the growing ranges for a crop
type CropData struct {
	TempMin        Measure `json:"temp_min"`
	TempMax        Measure `json:"temp_max"`
	TempOptMin     Measure `json:"temp_opt_min"`
	TempOptMax     Measure `json:"temp_opt_max"`
	RainfallMin    Measure `json:"rainfall_min"`
	RainfallMax    Measure `json:"rainfall_max"`
	RainfallOptMin Measure `json:"rainfall_opt_min"`
	RainfallOptMax Measure `json:"rainfall_opt_max"`
	PHMin          Measure `json:"ph_min"`
	PHMax          Measure `json:"ph_max"`
	PHOptMin       Measure `json:"ph_opt_min"`
	PHOptMax       Measure `json:"ph_opt_max"`
	ScientificName string  `json:"scientific_name"`
	Category       string  `json:"category"`
	Notes          string  `json:"notes"`
}

// Crop is a crop recommendation
type Crop struct {
	Name  string   `json:"crop_name"`
	Notes string   `json:"crop_notes"`
	Data  CropData `json:"crop_data"`
}

// PHUnavailable is the value the service sends when pH could not be determined
const PHUnavailable = -1

// Result is the land analysis returned by the service. The body it was
// decoded from is kept so it can be forwarded unchanged.
type Result struct {
	Longitude       float64 `json:"longitude"`
	Latitude        float64 `json:"latitude"`
	Percentage      Floats  `json:"percentage"`
	NormalizedFI    Floats  `json:"normalized_FI"`
	PH              Measure `json:"ph"`
	Temperature     Measure `json:"temperature"`
	Humidity        Measure `json:"humidity"`
	Rainfall        Measure `json:"rainfall"`
	SoilType        string  `json:"soil_type,omitempty"`
	Nitrogen        Measure `json:"nitrogen"`
	Potassium       Measure `json:"potassium"`
	Phosphorus      Measure `json:"phosphorus"`
	Moisture        Measure `json:"moisture"`
	Fertilizer      string  `json:"fertilizer,omitempty"`
	BestCrops       []Crop  `json:"best_crops"`
	NormalCrops     []Crop  `json:"normal_crops"`
	NormalImage     string  `json:"normal_image,omitempty"`
	MaskImage       string  `json:"mask_image,omitempty"`
	BoundariesImage string  `json:"boundaries_image,omitempty"`

	raw json.RawMessage
}

type resultFields Result

// ParseResult decodes a service response body
func ParseResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UnmarshalJSON decodes the fields and retains the raw body
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields resultFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode analysis result: %w", err)
	}
	*r = Result(fields)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the body as received, or the fields for a result
// built in code
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(resultFields(r))
}

// Raw returns the JSON the result is forwarded as
func (r *Result) Raw() ([]byte, error) {
	return r.MarshalJSON()
}

// PHAvailable reports whether the service determined a pH value
func (r *Result) PHAvailable() bool {
	return r.PH.Valid && r.PH.Text == "" && r.PH.Value != PHUnavailable
}

// HasFertilizer reports whether a fertilizer was recommended
func (r *Result) HasFertilizer() bool {
	return r.Fertilizer != "" && r.Fertilizer != "none"
}
