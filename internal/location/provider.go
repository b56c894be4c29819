package location

import (
	"context"
	"errors"
	"strings"
)

// Provider identifies an upstream data source.
type Provider string

const (
	// JHU is the Johns Hopkins CSSE time series.
	JHU Provider = "jhu"
	// RKI is the Robert Koch-Institut feature service.
	RKI Provider = "rki"
)

// Providers lists every known provider.
var Providers = []Provider{JHU, RKI}

// ParseProvider maps a case-insensitive name to a known provider.
func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Fetcher retrieves one category's raw rows from a provider. A single call
// makes a single attempt; retries are the caller's business.
type Fetcher interface {
	Fetch(ctx context.Context, category Category) ([]RawRow, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, category Category) ([]RawRow, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, category Category) ([]RawRow, error) {
	return f(ctx, category)
}

// ErrSnapshotNotFound is returned by a SnapshotStore holding nothing for a provider.
var ErrSnapshotNotFound = errors.New("no snapshot for provider")

// SnapshotStore persists the latest snapshot per provider.
type SnapshotStore interface {
	Load(ctx context.Context, provider Provider) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
