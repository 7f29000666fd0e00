package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/geo"
)

const sampleResult = `{
  "longitude": 31.2357, "latitude": 30.0444,
  "percentage": {"Water": 0.1, "Urban": 40, "Background": 5, "Barren": 0, "Agriculture": 54.9},
  "normalized_FI": {"Water": 0.003, "Urban": 0.002, "Agriculture": 0.001},
  "ph": -1, "temperature": 24.5, "humidity": "61", "rainfall": null,
  "soil_type": "Clay", "nitrogen": 12, "potassium": "n/a", "phosphorus": 3.5, "moisture": 21.456,
  "fertilizer": "DAP",
  "best_crops": [{"crop_name": "Wheat", "crop_notes": "Winter crop", "crop_data": {"temp_min": 3, "temp_max": 32, "scientific_name": "Triticum aestivum", "category": "Cereal"}}],
  "normal_crops": [],
  "normal_image": "/download/abc_input.png",
  "mask_image": "/download/abc_mask.png",
  "boundaries_image": "/download/abc_boundaries.png"
}`

func TestParseResultKeepsCategoryOrder(t *testing.T) {
	r, err := ParseResult([]byte(sampleResult))
	require.NoError(t, err)

	assert.Equal(t, []string{"Water", "Urban", "Background", "Barren", "Agriculture"}, r.Percentage.Keys())
	assert.Equal(t, []string{"Water", "Urban", "Agriculture"}, r.NormalizedFI.Keys())

	v, ok := r.Percentage.Get("Urban")
	require.True(t, ok)
	assert.Equal(t, 40.0, v)
	_, ok = r.NormalizedFI.Get("Barren")
	assert.False(t, ok)
}

func TestParseResultFlexibleMeasures(t *testing.T) {
	r, err := ParseResult([]byte(sampleResult))
	require.NoError(t, err)

	assert.False(t, r.PHAvailable())
	assert.Equal(t, Number(24.5), r.Temperature)
	assert.Equal(t, Number(61), r.Humidity)
	assert.False(t, r.Rainfall.Valid)
	assert.Equal(t, "N/A", r.Rainfall.String())
	assert.Equal(t, "n/a", r.Potassium.String())
	assert.True(t, r.HasFertilizer())

	require.Len(t, r.BestCrops, 1)
	assert.Equal(t, "Wheat", r.BestCrops[0].Name)
	assert.Equal(t, Number(32), r.BestCrops[0].Data.TempMax)
	assert.False(t, r.BestCrops[0].Data.PHMin.Valid)
}

func TestResultMarshalReturnsRawBody(t *testing.T) {
	r, err := ParseResult([]byte(sampleResult))
	require.NoError(t, err)

	raw, err := r.Raw()
	require.NoError(t, err)
	assert.Equal(t, sampleResult, string(raw))

	encoded, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, sampleResult, string(encoded))
}

func TestResultMarshalBuiltInCode(t *testing.T) {
	r := &Result{
		Percentage: Floats{{Key: "Urban", Value: 40}, {Key: "Water", Value: 2.5}},
		PH:         Number(7.1),
	}
	raw, err := r.Raw()
	require.NoError(t, err)

	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, r.Percentage, back.Percentage)
	assert.True(t, back.PHAvailable())
}

func TestFloatsRejectsNonObject(t *testing.T) {
	var f Floats
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &f))
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	png := []byte("\x89PNG fake image")
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/process", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "30.0444", r.FormValue("latitude"))
		assert.Equal(t, "31.2357", r.FormValue("longitude"))

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		assert.Equal(t, ImageFilename, header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, png, data)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, sampleResult)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", 0)
	payload := NewCapturePayload(geo.Coordinate{Latitude: 30.0444, Longitude: 31.2357}, png)

	result, err := client.Submit(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "Clay", result.SoilType)
	assert.True(t, payload.Consumed())

	// A payload is consumed by its first submission.
	_, err = client.Submit(context.Background(), payload)
	assert.ErrorIs(t, err, ErrPayloadConsumed)
	assert.Equal(t, int64(1), calls.Load())
}

func TestSubmitFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				require.True(t, errors.As(err, &netErr))
				assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
			},
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			body:   "  ",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name:   "error body with 200",
			status: http.StatusOK,
			body:   `[{"error": "Something went wrong", "details": "no mask"}, 400]`,
			check: func(t *testing.T, err error) {
				var svcErr *ServiceError
				require.True(t, errors.As(err, &svcErr))
				assert.Equal(t, "Something went wrong: no mask", svcErr.Error())
			},
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"percentage": [}`,
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				assert.True(t, errors.As(err, &netErr))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, 0)
			_, err := client.Submit(context.Background(), NewCapturePayload(geo.Coordinate{Latitude: 30, Longitude: 31}, []byte("x")))
			require.Error(t, err)
			tc.check(t, err)
			assert.Equal(t, int64(1), calls.Load(), "no retry")
		})
	}
}

func TestSubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, 0).Submit(context.Background(), NewCapturePayload(geo.Coordinate{}, nil))
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Zero(t, netErr.StatusCode)
	assert.Equal(t, "process", netErr.Op)
}

func TestImageURL(t *testing.T) {
	c := NewClient("https://example.test/", 0)
	assert.Equal(t, "https://example.test/download/a_mask.png", c.ImageURL("/download/a_mask.png"))
	assert.Equal(t, "https://example.test/download/a.png", c.ImageURL("download/a.png"))
	assert.Equal(t, "https://cdn.test/x.png", c.ImageURL("https://cdn.test/x.png"))
	assert.Empty(t, c.ImageURL(""))
}
