package location

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/i474232898/coronavirus-tracker/internal/common"
)

// Point is a single dated count of a timeline.
type Point struct {
	Date  time.Time
	Count int
}

// Timeline is an ordered, immutable series of daily counts. Dates are UTC
// midnights and unique; order is the order the provider delivered them.
type Timeline struct {
	points []Point
}

// NewTimeline builds a timeline from points. A date seen twice keeps its
// first position and takes the later count.
func NewTimeline(points []Point) Timeline {
	out := make([]Point, 0, len(points))
	seen := make(map[time.Time]int, len(points))
	for _, p := range points {
		d := p.Date.UTC()
		if i, ok := seen[d]; ok {
			out[i].Count = p.Count
			continue
		}
		seen[d] = len(out)
		out = append(out, Point{Date: d, Count: p.Count})
	}
	return Timeline{points: out}
}

// Points returns a copy of the timeline's points.
func (t Timeline) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Len returns the number of points.
func (t Timeline) Len() int {
	return len(t.points)
}

// Count returns the count recorded for date.
func (t Timeline) Count(date time.Time) (int, bool) {
	d := date.UTC()
	for _, p := range t.points {
		if p.Date.Equal(d) {
			return p.Count, true
		}
	}
	return 0, false
}

// Latest returns the count of the chronologically latest point, 0 if empty.
func (t Timeline) Latest() int {
	var (
		latest Point
		found  bool
	)
	for _, p := range t.points {
		if !found || p.Date.After(latest.Date) {
			latest = p
			found = true
		}
	}
	return latest.Count
}

// MarshalJSON encodes the timeline as {"latest": n, "timeline": {date: n}}
// keeping point order.
func (t Timeline) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"latest":%d,"timeline":{`, t.Latest())
	for i, p := range t.points {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `"%s":%d`, common.ISODate(p.Date), p.Count)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the MarshalJSON format, keeping point order.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Timeline json.RawMessage `json:"timeline"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope.Timeline) == 0 || string(envelope.Timeline) == "null" {
		*t = Timeline{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Timeline))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("timeline: expected object, got %v", tok)
	}

	var points []Point
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("timeline: expected date key, got %v", keyTok)
		}
		date, err := time.Parse(time.RFC3339, key)
		if err != nil {
			return fmt.Errorf("timeline: %w", err)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("timeline: count for %s: %w", key, err)
		}
		points = append(points, Point{Date: date, Count: count})
	}

	*t = NewTimeline(points)
	return nil
}
