package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/coronavirus-tracker/internal/location"
)

func millis(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

type rkiFeature struct {
	State int
	Date  int64
	Value float64
}

// rkiServer serves features in pages of pageSize, honouring resultOffset.
func rkiServer(t *testing.T, features []rkiFeature, pageSize int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "IdBundesland,Meldedatum", r.URL.Query().Get("groupByFieldsForStatistics"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("resultOffset"))

		end := offset + pageSize
		if end > len(features) {
			end = len(features)
		}

		type attrs struct {
			IdBundesland int     `json:"IdBundesland"`
			Meldedatum   int64   `json:"Meldedatum"`
			Value        float64 `json:"value"`
		}
		var out struct {
			Features []struct {
				Attributes attrs `json:"attributes"`
			} `json:"features"`
			ExceededTransferLimit bool `json:"exceededTransferLimit,omitempty"`
		}
		for _, f := range features[offset:end] {
			out.Features = append(out.Features, struct {
				Attributes attrs `json:"attributes"`
			}{attrs{f.State, f.Date, f.Value}})
		}
		out.ExceededTransferLimit = end < len(features)

		json.NewEncoder(w).Encode(out)
	}))
}

func TestRKIFetcher_CumulativeRows(t *testing.T) {
	features := []rkiFeature{
		{State: 9, Date: millis(2020, 3, 2), Value: 4},
		{State: 9, Date: millis(2020, 3, 1), Value: 1},
		{State: 11, Date: millis(2020, 3, 2), Value: 3},
		{State: 9, Date: millis(2020, 3, 3), Value: 2},
		{State: 9, Date: millis(2020, 3, 3), Value: 1},
	}

	var requests atomic.Int32
	srv := rkiServer(t, features, 2, &requests)
	defer srv.Close()

	f := NewRKIFetcher(srv.Client(), srv.URL)
	f.pageSize = 2

	rows, err := f.Fetch(context.Background(), location.Confirmed)
	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	require.Len(t, rows, len(federalStates))

	bayern := rows[8]
	name, _ := bayern.Get(location.DefaultSchema.Province)
	assert.Equal(t, "Bayern", name)
	country, _ := bayern.Get(location.DefaultSchema.Country)
	assert.Equal(t, "Germany", country)

	var dates, counts []string
	for _, c := range bayern[4:] {
		dates = append(dates, c.Name)
		counts = append(counts, c.Value)
	}
	assert.Equal(t, []string{"3/1/20", "3/2/20", "3/3/20"}, dates)
	assert.Equal(t, []string{"1", "5", "8"}, counts)

	berlin := rows[10]
	v, _ := berlin.Get("3/1/20")
	assert.Equal(t, "0", v)
	v, _ = berlin.Get("3/3/20")
	assert.Equal(t, "3", v)

	// A state without reports still carries every date column.
	assert.Len(t, rows[0], 4+3)
}

func TestRKIFetcher_FillsThroughPipeline(t *testing.T) {
	features := []rkiFeature{
		{State: 1, Date: millis(2020, 3, 1), Value: 2},
		{State: 16, Date: millis(2020, 3, 2), Value: 5},
	}

	var requests atomic.Int32
	srv := rkiServer(t, features, 100, &requests)
	defer srv.Close()

	p := location.NewPipeline(location.RKI, NewRKIFetcher(srv.Client(), srv.URL), location.PipelineConfig{Join: location.JoinStrategyPositional})
	locs, err := p.Fill(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 16)

	assert.Equal(t, "Schleswig-Holstein", locs[0].Province)
	assert.Equal(t, location.Latest{Confirmed: 2, Deaths: 2, Recovered: 2}, locs[0].Latest)
	assert.Equal(t, "Thüringen", locs[15].Province)
	assert.Equal(t, 5, locs[15].Latest.Confirmed)
	assert.InDelta(t, 51.0110, locs[15].Coordinates.Latitude, 1e-9)
}

func TestRKIFetcher_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":400,"message":"Invalid query parameters"}}`))
	}))
	defer srv.Close()

	_, err := NewRKIFetcher(srv.Client(), srv.URL).Fetch(context.Background(), location.Recovered)

	var fe *location.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, location.RKI, fe.Provider)
	assert.Equal(t, location.Recovered, fe.Category)
	assert.Contains(t, err.Error(), "Invalid query parameters")
}

func TestRKIFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRKIFetcher(srv.Client(), srv.URL).Fetch(context.Background(), location.Deaths)
	assert.ErrorIs(t, err, errServerError)
}

func TestRKIFetcher_UnsupportedCategory(t *testing.T) {
	_, err := NewRKIFetcher(http.DefaultClient, "").Fetch(context.Background(), location.Category("tested"))

	var fe *location.FetchError
	assert.True(t, errors.As(err, &fe))
}
