package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/i474232898/coronavirus-tracker/internal/common"
	"github.com/i474232898/coronavirus-tracker/internal/location"
)

// DefaultRKIBaseURL is the RKI COVID-19 feature layer.
const DefaultRKIBaseURL = "https://services7.arcgis.com/mOBPykOjAyBO2ZKk/arcgis/rest/services/RKI_COVID19/FeatureServer/0"

const (
	rkiCountry  = "Germany"
	rkiPageSize = 2000
)

// federalState is one German Bundesland with an approximate centroid.
type federalState struct {
	ID   int
	Name string
	Lat  float64
	Long float64
}

// federalStates is ordered by RKI state id; every category emits its rows in
// this order.
var federalStates = []federalState{
	{1, "Schleswig-Holstein", 54.2194, 9.6961},
	{2, "Hamburg", 53.5511, 9.9937},
	{3, "Niedersachsen", 52.6367, 9.8451},
	{4, "Bremen", 53.0793, 8.8017},
	{5, "Nordrhein-Westfalen", 51.4332, 7.6616},
	{6, "Hessen", 50.6521, 9.1624},
	{7, "Rheinland-Pfalz", 50.1183, 7.3090},
	{8, "Baden-Württemberg", 48.6616, 9.3501},
	{9, "Bayern", 48.7904, 11.4979},
	{10, "Saarland", 49.3964, 6.9930},
	{11, "Berlin", 52.5200, 13.4050},
	{12, "Brandenburg", 52.4125, 12.5316},
	{13, "Mecklenburg-Vorpommern", 53.6127, 12.4296},
	{14, "Sachsen", 51.1045, 13.2017},
	{15, "Sachsen-Anhalt", 51.9503, 11.6923},
	{16, "Thüringen", 51.0110, 10.8453},
}

// rkiFields maps categories to the feature attribute holding the daily count.
var rkiFields = map[location.Category]string{
	location.Confirmed: "AnzahlFall",
	location.Deaths:    "AnzahlTodesfall",
	location.Recovered: "AnzahlGenesen",
}

// RKIFetcher implements location.Fetcher for the RKI ArcGIS feature service.
// Daily report sums are accumulated into one cumulative row per state.
type RKIFetcher struct {
	baseURL  string
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
	pageSize int
}

// NewRKIFetcher creates an RKIFetcher. An empty baseURL means DefaultRKIBaseURL.
func NewRKIFetcher(client *http.Client, baseURL string) *RKIFetcher {
	if baseURL == "" {
		baseURL = DefaultRKIBaseURL
	}
	return &RKIFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		circuit:  newCircuitBreaker("rki"),
		pageSize: rkiPageSize,
	}
}

type rkiResponse struct {
	Features []struct {
		Attributes rkiAttributes `json:"attributes"`
	} `json:"features"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Error                 *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rkiAttributes struct {
	IdBundesland int     `json:"IdBundesland"`
	Meldedatum   int64   `json:"Meldedatum"`
	Value        float64 `json:"value"`
}

// Fetch pages through the grouped statistics query for category.
func (f *RKIFetcher) Fetch(ctx context.Context, category location.Category) ([]location.RawRow, error) {
	field, ok := rkiFields[category]
	if !ok {
		return nil, f.fail(category, fmt.Errorf("unsupported category %q", category))
	}

	// daily[stateID][date] = new cases reported that day
	daily := make(map[int]map[time.Time]int)
	dates := make(map[time.Time]struct{})

	for offset := 0; ; offset += f.pageSize {
		page, err := f.fetchPage(ctx, field, offset)
		if err != nil {
			return nil, f.fail(category, err)
		}

		for _, feat := range page.Features {
			a := feat.Attributes
			d := time.UnixMilli(a.Meldedatum).UTC()
			d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
			if daily[a.IdBundesland] == nil {
				daily[a.IdBundesland] = make(map[time.Time]int)
			}
			daily[a.IdBundesland][d] += int(a.Value)
			dates[d] = struct{}{}
		}

		if !page.ExceededTransferLimit || len(page.Features) == 0 {
			break
		}
	}

	rows := buildRKIRows(daily, dates)
	log.WithFields(log.Fields{"prefix": "rki", "category": category, "rows": len(rows), "days": len(dates)}).Debug("fetched category")
	return rows, nil
}

func (f *RKIFetcher) fetchPage(ctx context.Context, field string, offset int) (*rkiResponse, error) {
	resp, err := doRequest(ctx, f.client, f.circuit, func(ctx context.Context) (*http.Request, error) {
		stats, err := json.Marshal([]map[string]string{{
			"statisticType":         "sum",
			"onStatisticField":      field,
			"outStatisticFieldName": "value",
		}})
		if err != nil {
			return nil, err
		}

		values := url.Values{}
		values.Set("f", "json")
		values.Set("where", "1=1")
		values.Set("returnGeometry", "false")
		values.Set("spatialRel", "esriSpatialRelIntersects")
		values.Set("groupByFieldsForStatistics", "IdBundesland,Meldedatum")
		values.Set("outStatistics", string(stats))
		values.Set("orderByFields", "IdBundesland,Meldedatum")
		values.Set("resultOffset", strconv.Itoa(offset))
		values.Set("resultRecordCount", strconv.Itoa(f.pageSize))
		values.Set("cacheHint", "true")

		u := fmt.Sprintf("%s/query?%s", f.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page rkiResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode feature query: %w", err)
	}
	if page.Error != nil {
		return nil, fmt.Errorf("feature query error %d: %s", page.Error.Code, page.Error.Message)
	}
	return &page, nil
}

func (f *RKIFetcher) fail(category location.Category, err error) error {
	return &location.FetchError{Provider: location.RKI, Category: category, Err: err}
}

// buildRKIRows emits one row per federal state with cumulative counts for
// every report date, in chronological column order.
func buildRKIRows(daily map[int]map[time.Time]int, dates map[time.Time]struct{}) []location.RawRow {
	ordered := make([]time.Time, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	rows := make([]location.RawRow, 0, len(federalStates))
	for _, st := range federalStates {
		row := location.RawRow{
			{Name: location.DefaultSchema.Province, Value: st.Name},
			{Name: location.DefaultSchema.Country, Value: rkiCountry},
			{Name: location.DefaultSchema.Latitude, Value: strconv.FormatFloat(st.Lat, 'f', -1, 64)},
			{Name: location.DefaultSchema.Longitude, Value: strconv.FormatFloat(st.Long, 'f', -1, 64)},
		}

		total := 0
		for _, d := range ordered {
			total += daily[st.ID][d]
			row = append(row, location.Column{Name: common.FormatSourceDate(d), Value: strconv.Itoa(total)})
		}
		rows = append(rows, row)
	}
	return rows
}
