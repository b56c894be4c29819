package providers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/i474232898/coronavirus-tracker/internal/location"
)

// DefaultJHUBaseURL is the directory holding the JHU CSSE global time series.
const DefaultJHUBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series"

// JHUFetcher implements location.Fetcher for the JHU CSSE CSV time series.
type JHUFetcher struct {
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewJHUFetcher creates a JHUFetcher. An empty baseURL means DefaultJHUBaseURL.
func NewJHUFetcher(client *http.Client, baseURL string) *JHUFetcher {
	if baseURL == "" {
		baseURL = DefaultJHUBaseURL
	}
	return &JHUFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		circuit: newCircuitBreaker("jhu"),
	}
}

func (f *JHUFetcher) categoryURL(category location.Category) string {
	return fmt.Sprintf("%s/time_series_covid19_%s_global.csv", f.baseURL, category)
}

// Fetch downloads and parses one category CSV. Column order follows the
// CSV header.
func (f *JHUFetcher) Fetch(ctx context.Context, category location.Category) ([]location.RawRow, error) {
	u := f.categoryURL(category)

	resp, err := doRequest(ctx, f.client, f.circuit, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, f.fail(category, err)
	}
	defer resp.Body.Close()

	rows, err := parseCSV(resp.Body)
	if err != nil {
		return nil, f.fail(category, err)
	}

	log.WithFields(log.Fields{"prefix": "jhu", "category": category, "rows": len(rows)}).Debug("fetched category")
	return rows, nil
}

func (f *JHUFetcher) fail(category location.Category, err error) error {
	return &location.FetchError{Provider: location.JHU, Category: category, Err: err}
}

func parseCSV(r io.Reader) ([]location.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []location.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", len(rows)+2, err)
		}

		row := make(location.RawRow, 0, len(header))
		for i, name := range header {
			var value string
			if i < len(record) {
				value = record[i]
			}
			row = append(row, location.Column{Name: name, Value: value})
		}
		rows = append(rows, row)
	}
	return rows, nil
}
