package location

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a snapshot is served before the next fill.
const DefaultTTL = time.Hour

// FillFunc produces a fresh location list for a provider.
type FillFunc func(ctx context.Context) ([]TimelinedLocation, error)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// TTL is the lifetime of a snapshot. Zero means DefaultTTL.
	TTL time.Duration
	// ServeStale returns the expired snapshot, if the store still has one,
	// when a fill fails.
	ServeStale bool
	// MinRefreshInterval throttles Refill: a snapshot filled more recently
	// than this is returned as is. Zero disables the throttle.
	MinRefreshInterval time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Cache memoizes one snapshot per provider for a TTL window. It is created
// once at startup and lives as long as the process; snapshots are replaced
// whole on the first read after expiry. Only one fill per provider runs at a
// time; concurrent readers wait for its result.
type Cache struct {
	store      SnapshotStore
	ttl        time.Duration
	serveStale bool
	minRefresh time.Duration
	clock      func() time.Time
	sf         singleflight.Group
}

// NewCache creates a Cache backed by store.
func NewCache(store SnapshotStore, opts CacheOptions) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		store:      store,
		ttl:        ttl,
		serveStale: opts.ServeStale,
		minRefresh: opts.MinRefreshInterval,
		clock:      clock,
	}
}

// Locations returns the provider's current snapshot, running fill when the
// stored snapshot is missing or expired.
func (c *Cache) Locations(ctx context.Context, provider Provider, fill FillFunc) (Snapshot, error) {
	if snap, ok := c.fresh(ctx, provider); ok {
		return snap, nil
	}
	return c.flight(ctx, provider, fill, false)
}

// Refill fills a new snapshot for provider even if the stored one is still
// fresh. The stored snapshot is replaced only when the fill succeeds, so a
// failed refill leaves readers on the current snapshot until it expires.
// Refill shares the single flight of Locations.
func (c *Cache) Refill(ctx context.Context, provider Provider, fill FillFunc) (Snapshot, error) {
	return c.flight(ctx, provider, fill, true)
}

func (c *Cache) flight(ctx context.Context, provider Provider, fill FillFunc, force bool) (Snapshot, error) {
	// The fill is shared by every waiting caller, so it must not die with
	// the caller that happened to start it.
	fillCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(string(provider), func() (any, error) {
		return c.refill(fillCtx, provider, fill, force)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (c *Cache) fresh(ctx context.Context, provider Provider) (Snapshot, bool) {
	snap, err := c.store.Load(ctx, provider)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			log.WithFields(log.Fields{"prefix": "cache", "provider": provider, "error": err}).Warn("load snapshot")
		}
		return Snapshot{}, false
	}
	if snap.Expired(c.clock()) {
		return snap, false
	}
	return snap, true
}

func (c *Cache) refill(ctx context.Context, provider Provider, fill FillFunc, force bool) (Snapshot, error) {
	// Another flight, or another replica sharing the store, may have filled
	// while this caller was waiting.
	previous, err := c.store.Load(ctx, provider)
	hasPrevious := err == nil
	if hasPrevious && !previous.Expired(c.clock()) {
		if !force {
			return previous, nil
		}
		if c.minRefresh > 0 && c.clock().Sub(previous.FilledAt) < c.minRefresh {
			log.WithFields(log.Fields{"prefix": "cache", "provider": provider, "snapshot": previous.ID}).Debug("refill throttled")
			return previous, nil
		}
	}

	started := c.clock()
	locations, err := fill(ctx)
	if err != nil {
		if c.serveStale && hasPrevious && !force {
			log.WithFields(log.Fields{
				"prefix":    "cache",
				"provider":  provider,
				"snapshot":  previous.ID,
				"filled_at": previous.FilledAt,
				"error":     err,
			}).Warn("fill failed, serving stale snapshot")
			return previous, nil
		}
		log.WithFields(log.Fields{"prefix": "cache", "provider": provider, "error": err}).Error("fill failed")
		return Snapshot{}, err
	}

	now := c.clock()
	snap := Snapshot{
		ID:        uuid.NewString(),
		Provider:  provider,
		Locations: locations,
		FilledAt:  now.UTC(),
		ExpiresAt: now.Add(c.ttl).UTC(),
	}
	for _, l := range locations {
		snap.Latest = snap.Latest.Add(l.Latest)
	}

	if err := c.store.Save(ctx, snap); err != nil {
		log.WithFields(log.Fields{"prefix": "cache", "provider": provider, "error": err}).Warn("save snapshot")
	}

	log.WithFields(log.Fields{
		"prefix":    "cache",
		"provider":  provider,
		"snapshot":  snap.ID,
		"locations": len(locations),
		"took":      now.Sub(started),
	}).Info("snapshot filled")

	return snap, nil
}
