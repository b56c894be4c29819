package location

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/coronavirus-tracker/internal/common"
)

var errMissingField = errors.New("missing field")

// Schema names the metadata columns of a provider's rows.
type Schema struct {
	Country   string
	Province  string
	Latitude  string
	Longitude string
}

// DefaultSchema is the column naming used by the JHU CSSE time series and
// reproduced by the other fetchers.
var DefaultSchema = Schema{
	Country:   "Country/Region",
	Province:  "Province/State",
	Latitude:  "Lat",
	Longitude: "Long",
}

// Normalizer turns provider rows into category records.
type Normalizer struct {
	schema Schema
}

// NewNormalizer creates a Normalizer for schema.
func NewNormalizer(schema Schema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Normalize converts one raw row. Date columns are recognized by their name,
// everything else is metadata. Empty counts become 0.
func (n *Normalizer) Normalize(row RawRow) (CategoryRecord, error) {
	var (
		history    []HistoryEntry
		latestDate time.Time
		latest     int
	)

	for _, col := range row {
		date, err := common.ParseSourceDate(col.Name)
		if err != nil {
			continue
		}

		count, err := parseCount(col.Value)
		if err != nil {
			return CategoryRecord{}, &NormalizationError{Field: col.Name, Value: col.Value, Err: err}
		}
		history = append(history, HistoryEntry{Date: col.Name, Count: count})

		// Latest follows the calendar, not the column order.
		if len(history) == 1 || !date.Before(latestDate) {
			latestDate = date
			latest = count
		}
	}

	lat, err := n.float(row, n.schema.Latitude)
	if err != nil {
		return CategoryRecord{}, err
	}
	long, err := n.float(row, n.schema.Longitude)
	if err != nil {
		return CategoryRecord{}, err
	}

	country, _ := row.Get(n.schema.Country)
	province, _ := row.Get(n.schema.Province)

	return CategoryRecord{
		Country:     country,
		Province:    province,
		Coordinates: Coordinates{Latitude: lat, Longitude: long},
		History:     history,
		Latest:      latest,
	}, nil
}

// NormalizeAll converts every row, stopping at the first error.
func (n *Normalizer) NormalizeAll(rows []RawRow) ([]CategoryRecord, error) {
	records := make([]CategoryRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := n.Normalize(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (n *Normalizer) float(row RawRow, field string) (float64, error) {
	raw, ok := row.Get(field)
	if !ok {
		return 0, &NormalizationError{Field: field, Err: errMissingField}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &NormalizationError{Field: field, Value: raw, Err: err}
	}
	return v, nil
}

// parseCount reads a provider count. Blank is 0, decimals are truncated and
// negative corrections clamp to 0.
func parseCount(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, err
		}
		n = int(f)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
