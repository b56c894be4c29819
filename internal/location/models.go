package location

import (
	"time"
)

// Category is one of the case metrics supplied by a provider.
type Category string

const (
	Confirmed Category = "confirmed"
	Deaths    Category = "deaths"
	Recovered Category = "recovered"
)

// Categories lists every category in fill order.
var Categories = []Category{Confirmed, Deaths, Recovered}

// Coordinates is a point on the globe.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Latest holds the most recent count per category.
type Latest struct {
	Confirmed int `json:"confirmed"`
	Deaths    int `json:"deaths"`
	Recovered int `json:"recovered"`
}

// Add returns the category-wise sum of l and o.
func (l Latest) Add(o Latest) Latest {
	return Latest{
		Confirmed: l.Confirmed + o.Confirmed,
		Deaths:    l.Deaths + o.Deaths,
		Recovered: l.Recovered + o.Recovered,
	}
}

// Timelines groups the three category series of one location.
type Timelines struct {
	Confirmed Timeline `json:"confirmed"`
	Deaths    Timeline `json:"deaths"`
	Recovered Timeline `json:"recovered"`
}

// Get returns the timeline for c. Unknown categories yield an empty timeline.
func (t Timelines) Get(c Category) Timeline {
	switch c {
	case Confirmed:
		return t.Confirmed
	case Deaths:
		return t.Deaths
	case Recovered:
		return t.Recovered
	default:
		return Timeline{}
	}
}

// TimelinedLocation is a normalized location with its full case history.
// ID is the position assigned at join time and is only meaningful within the
// snapshot it was read from.
type TimelinedLocation struct {
	ID          int         `json:"id"`
	Country     string      `json:"country"`
	Province    string      `json:"province"`
	Coordinates Coordinates `json:"coordinates"`
	LastUpdated time.Time   `json:"last_updated"`
	Latest      Latest      `json:"latest"`
	Timelines   Timelines   `json:"timelines"`
}

// HistoryEntry is one raw date column of a provider row.
type HistoryEntry struct {
	Date  string
	Count int
}

// CategoryRecord is one provider row of a single category after
// normalization, before it is joined with the other categories.
type CategoryRecord struct {
	Country     string
	Province    string
	Coordinates Coordinates
	History     []HistoryEntry
	Latest      int
}

// Column is a single named cell of a provider row.
type Column struct {
	Name  string
	Value string
}

// RawRow is a provider row with its columns in source order.
type RawRow []Column

// Get returns the value of the first column called name.
func (r RawRow) Get(name string) (string, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Snapshot is the result of one fill: everything the cache stores for a
// provider. A refresh replaces the whole snapshot.
type Snapshot struct {
	ID        string              `json:"id"`
	Provider  Provider            `json:"source"`
	Locations []TimelinedLocation `json:"locations"`
	Latest    Latest              `json:"latest"`
	FilledAt  time.Time           `json:"filled_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Expired reports whether the snapshot is past its expiry at now.
func (s Snapshot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Len returns the number of locations in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Locations)
}

// At returns the location at position id.
func (s Snapshot) At(id int) (TimelinedLocation, error) {
	if id < 0 || id >= len(s.Locations) {
		return TimelinedLocation{}, indexError(id, len(s.Locations))
	}
	return s.Locations[id], nil
}
