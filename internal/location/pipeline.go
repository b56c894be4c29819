package location

import (
	"context"
	"errors"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RetryPolicy controls how often a failed category fetch is retried.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// PipelineConfig bundles the fill settings of one provider.
type PipelineConfig struct {
	Schema       Schema
	Join         JoinStrategy
	FetchTimeout time.Duration
	Retry        RetryPolicy
}

// Pipeline runs fetch, normalize and join for one provider.
type Pipeline struct {
	provider   Provider
	fetcher    Fetcher
	normalizer *Normalizer
	join       Joiner
	timeout    time.Duration
	retry      RetryPolicy
	now        func() time.Time
}

// NewPipeline creates a Pipeline. A zero Schema means DefaultSchema.
func NewPipeline(provider Provider, fetcher Fetcher, cfg PipelineConfig) *Pipeline {
	schema := cfg.Schema
	if schema == (Schema{}) {
		schema = DefaultSchema
	}
	return &Pipeline{
		provider:   provider,
		fetcher:    fetcher,
		normalizer: NewNormalizer(schema),
		join:       cfg.Join.Joiner(),
		timeout:    cfg.FetchTimeout,
		retry:      cfg.Retry,
		now:        time.Now,
	}
}

// Provider returns the provider this pipeline fills.
func (p *Pipeline) Provider() Provider {
	return p.provider
}

// Fill fetches all categories concurrently, normalizes and joins them.
// Any failure aborts the whole fill.
func (p *Pipeline) Fill(ctx context.Context) ([]TimelinedLocation, error) {
	records := make([][]CategoryRecord, len(Categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range Categories {
		i, category := i, category
		g.Go(func() error {
			rows, err := p.fetchWithRetry(gctx, category)
			if err != nil {
				return err
			}
			recs, err := p.normalizer.NormalizeAll(rows)
			if err != nil {
				return err
			}
			records[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.join(records[0], records[1], records[2], p.now())
}

func (p *Pipeline) fetchWithRetry(ctx context.Context, category Category) ([]RawRow, error) {
	var attempt int
	for {
		rows, err := p.fetchOnce(ctx, category)
		if err == nil {
			return rows, nil
		}
		if attempt >= p.retry.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		delay := p.retry.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if p.retry.MaxInterval > 0 && delay > p.retry.MaxInterval {
			delay = p.retry.MaxInterval
		}

		log.WithFields(log.Fields{
			"prefix":   "pipeline",
			"provider": p.provider,
			"category": category,
			"attempt":  attempt + 1,
			"delay":    delay,
			"error":    err,
		}).Warn("category fetch failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &FetchError{Provider: p.provider, Category: category, Err: ctx.Err()}
		case <-timer.C:
		}
		attempt++
	}
}

func (p *Pipeline) fetchOnce(ctx context.Context, category Category) ([]RawRow, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	rows, err := p.fetcher.Fetch(ctx, category)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FetchError{Provider: p.provider, Category: category, Err: err}
	}
	return rows, nil
}
