package location

import (
	"context"
	"fmt"
	"sort"
)

// Service is the read path over one provider's locations. Ids passed to Get
// refer to the snapshot GetAll currently returns and may change after a
// refresh.
type Service interface {
	GetAll(ctx context.Context) ([]TimelinedLocation, error)
	Get(ctx context.Context, id int) (TimelinedLocation, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Refresh(ctx context.Context) (Snapshot, error)
}

// ProviderService serves one provider's locations through the shared cache.
type ProviderService struct {
	provider Provider
	cache    *Cache
	fill     FillFunc
}

// NewProviderService creates a Service filling the cache with pipeline.
func NewProviderService(cache *Cache, pipeline *Pipeline) *ProviderService {
	return &ProviderService{
		provider: pipeline.Provider(),
		cache:    cache,
		fill:     pipeline.Fill,
	}
}

// Provider returns the provider served.
func (s *ProviderService) Provider() Provider {
	return s.provider
}

// Snapshot returns the cached snapshot, filling it if needed.
func (s *ProviderService) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.cache.Locations(ctx, s.provider, s.fill)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s locations: %w", s.provider, err)
	}
	return snap, nil
}

// GetAll returns every location of the current snapshot.
func (s *ProviderService) GetAll(ctx context.Context) ([]TimelinedLocation, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TimelinedLocation, len(snap.Locations))
	copy(out, snap.Locations)
	return out, nil
}

// Get returns the location at position id of the current snapshot.
func (s *ProviderService) Get(ctx context.Context, id int) (TimelinedLocation, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return TimelinedLocation{}, err
	}
	return snap.At(id)
}

// Refresh fills a new snapshot ahead of the TTL. On failure the current
// snapshot stays in place and keeps being served.
func (s *ProviderService) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := s.cache.Refill(ctx, s.provider, s.fill)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s refresh: %w", s.provider, err)
	}
	return snap, nil
}

// Registry maps providers to their services. It is filled at startup and
// read-only afterwards.
type Registry struct {
	services map[Provider]Service
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[Provider]Service)}
}

// Register binds svc to provider, replacing any previous binding.
func (r *Registry) Register(provider Provider, svc Service) {
	r.services[provider] = svc
}

// Lookup finds the service for a case-insensitive provider name.
func (r *Registry) Lookup(name string) (Service, bool) {
	p, ok := ParseProvider(name)
	if !ok {
		return nil, false
	}
	svc, ok := r.services[p]
	return svc, ok
}

// Providers lists the registered providers in name order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.services))
	for p := range r.services {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
