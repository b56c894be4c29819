package location

import (
	"fmt"
	"time"

	"github.com/i474232898/coronavirus-tracker/internal/common"
)

// JoinStrategy selects how category records are paired into locations.
type JoinStrategy string

const (
	// JoinStrategyPositional pairs records by index and requires the three
	// sequences to have the same length.
	JoinStrategyPositional JoinStrategy = "positional"
	// JoinStrategyKeyed pairs records on (country, province).
	JoinStrategyKeyed JoinStrategy = "keyed"
)

// Joiner combines the three category sequences of one fill.
type Joiner func(confirmed, deaths, recovered []CategoryRecord, now time.Time) ([]TimelinedLocation, error)

// Joiner returns the join function for the strategy. Unknown strategies fall
// back to the keyed join.
func (s JoinStrategy) Joiner() Joiner {
	if s == JoinStrategyPositional {
		return JoinPositional
	}
	return JoinKeyed
}

// JoinPositional treats index i of every sequence as the same location.
// Metadata comes from the confirmed record.
func JoinPositional(confirmed, deaths, recovered []CategoryRecord, now time.Time) ([]TimelinedLocation, error) {
	if len(deaths) != len(confirmed) || len(recovered) != len(confirmed) {
		return nil, fmt.Errorf("%w: confirmed=%d deaths=%d recovered=%d",
			ErrMisalignedCategories, len(confirmed), len(deaths), len(recovered))
	}

	locations := make([]TimelinedLocation, 0, len(confirmed))
	for i := range confirmed {
		loc, err := buildLocation(i, confirmed[i], &deaths[i], &recovered[i], now)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

type recordKey struct {
	country  string
	province string
}

func keyOf(r CategoryRecord) recordKey {
	return recordKey{country: r.Country, province: r.Province}
}

func indexRecords(records []CategoryRecord) map[recordKey]*CategoryRecord {
	idx := make(map[recordKey]*CategoryRecord, len(records))
	for i := range records {
		k := keyOf(records[i])
		if _, ok := idx[k]; !ok {
			idx[k] = &records[i]
		}
	}
	return idx
}

// JoinKeyed pairs deaths and recovered with confirmed on (country, province).
// Ids follow the confirmed order; a location without a deaths or recovered
// record gets an empty timeline for that category.
func JoinKeyed(confirmed, deaths, recovered []CategoryRecord, now time.Time) ([]TimelinedLocation, error) {
	deathsByKey := indexRecords(deaths)
	recoveredByKey := indexRecords(recovered)

	locations := make([]TimelinedLocation, 0, len(confirmed))
	for i, c := range confirmed {
		k := keyOf(c)
		loc, err := buildLocation(i, c, deathsByKey[k], recoveredByKey[k], now)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func buildLocation(id int, confirmed CategoryRecord, deaths, recovered *CategoryRecord, now time.Time) (TimelinedLocation, error) {
	confirmedTL, err := toTimeline(confirmed.History)
	if err != nil {
		return TimelinedLocation{}, err
	}

	var deathsTL, recoveredTL Timeline
	if deaths != nil {
		if deathsTL, err = toTimeline(deaths.History); err != nil {
			return TimelinedLocation{}, err
		}
	}
	if recovered != nil {
		if recoveredTL, err = toTimeline(recovered.History); err != nil {
			return TimelinedLocation{}, err
		}
	}

	return TimelinedLocation{
		ID:          id,
		Country:     confirmed.Country,
		Province:    confirmed.Province,
		Coordinates: confirmed.Coordinates,
		LastUpdated: now.UTC(),
		Latest: Latest{
			Confirmed: confirmed.Latest,
			Deaths:    latestOf(deaths),
			Recovered: latestOf(recovered),
		},
		Timelines: Timelines{
			Confirmed: confirmedTL,
			Deaths:    deathsTL,
			Recovered: recoveredTL,
		},
	}, nil
}

func latestOf(rec *CategoryRecord) int {
	if rec == nil {
		return 0
	}
	return rec.Latest
}

func toTimeline(history []HistoryEntry) (Timeline, error) {
	points := make([]Point, 0, len(history))
	for _, h := range history {
		date, err := common.ParseSourceDate(h.Date)
		if err != nil {
			return Timeline{}, &DateParseError{Value: h.Date, Err: err}
		}
		points = append(points, Point{Date: date, Count: h.Count})
	}
	return NewTimeline(points), nil
}
