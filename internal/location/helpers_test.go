package location

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// row builds a RawRow in DefaultSchema with the given date columns in order.
func row(country, province string, dates ...string) RawRow {
	r := RawRow{
		{Name: "Province/State", Value: province},
		{Name: "Country/Region", Value: country},
		{Name: "Lat", Value: "10.5"},
		{Name: "Long", Value: "-20.25"},
	}
	for i := 0; i+1 < len(dates); i += 2 {
		r = append(r, Column{Name: dates[i], Value: dates[i+1]})
	}
	return r
}

// stubFetcher serves fixed rows per category and counts calls.
type stubFetcher struct {
	mu    sync.Mutex
	rows  map[Category][]RawRow
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *stubFetcher) Fetch(ctx context.Context, category Category) ([]RawRow, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[category], nil
}

func (f *stubFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// mapStore is a minimal SnapshotStore.
type mapStore struct {
	mu   sync.Mutex
	data map[Provider]Snapshot
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[Provider]Snapshot)}
}

func (s *mapStore) Load(_ context.Context, p Provider) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[p]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *mapStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.Provider] = snap
	return nil
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func scenarioFetcher() *stubFetcher {
	return &stubFetcher{rows: map[Category][]RawRow{
		Confirmed: {row("X", "", "1/1/20", "5", "1/2/20", "7")},
		Deaths:    {row("X", "", "1/1/20", "0", "1/2/20", "1")},
		Recovered: {row("X", "", "1/1/20", "0", "1/2/20", "2")},
	}}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
