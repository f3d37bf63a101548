package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ParlVotes/internal/cache"
	"github.com/TobiSchelling/ParlVotes/internal/composition"
	"github.com/TobiSchelling/ParlVotes/internal/config"
	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

// ErrNoComposition is returned for legislatures without a configured
// organization dump.
var ErrNoComposition = errors.New("no composition dump configured")

// Fetcher downloads a dump from the upstream.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Store keeps the last dump under each key.
type Store interface {
	Put(key string, data []byte, fetchedAt time.Time) error
	Get(key string) (*cache.Entry, error)
}

// Result holds the results of a collection run.
type Result struct {
	Downloaded int
	FromCache  int
	Failed     int
	Bytes      map[string]int
	Errors     map[string]error
}

// Collector keeps the cached dumps of the configured legislatures current
// and serves them decoded.
type Collector struct {
	legislatures []config.Legislature
	fetcher      Fetcher
	store        Store
	now          func() time.Time
}

// NewCollector creates a new dump collector.
func NewCollector(cfg *config.Config, fetcher Fetcher, store Store) *Collector {
	return &Collector{
		legislatures: cfg.Legislatures,
		fetcher:      fetcher,
		store:        store,
		now:          time.Now,
	}
}

// Refresh downloads a legislature's dump when it is ongoing, not cached
// yet, or force is set. It reports whether a download happened. A failed
// download leaves the cached dump untouched.
func (c *Collector) Refresh(ctx context.Context, legislature string, force bool) (bool, error) {
	leg, err := c.lookup(legislature)
	if err != nil {
		return false, err
	}

	if !force && !leg.Ongoing {
		if _, err := c.store.Get(leg.Name); err == nil {
			return false, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			return false, err
		}
	}

	log.Printf("Downloading initiatives for %s...", leg.Name)
	data, err := c.fetcher.Get(ctx, leg.URL)
	if err != nil {
		return false, err
	}

	// Reject dumps that would not decode before replacing a good one.
	if _, err := raw.DecodeFeed(data); err != nil {
		return false, fmt.Errorf("decoding %s dump: %w", leg.Name, err)
	}

	if err := c.store.Put(leg.Name, data, c.now()); err != nil {
		return false, fmt.Errorf("caching %s dump: %w", leg.Name, err)
	}
	return true, nil
}

// RefreshComposition downloads a legislature's organization dump under the
// same rules as Refresh.
func (c *Collector) RefreshComposition(ctx context.Context, legislature string, force bool) (bool, error) {
	leg, err := c.lookup(legislature)
	if err != nil {
		return false, err
	}
	if leg.CompositionURL == "" {
		return false, fmt.Errorf("%s: %w", leg.Name, ErrNoComposition)
	}

	key := cache.CompositionKey(leg.Name)
	if !force && !leg.Ongoing {
		if _, err := c.store.Get(key); err == nil {
			return false, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			return false, err
		}
	}

	log.Printf("Downloading composition for %s...", leg.Name)
	data, err := c.fetcher.Get(ctx, leg.CompositionURL)
	if err != nil {
		return false, err
	}
	if _, err := composition.Decode(data); err != nil {
		return false, fmt.Errorf("decoding %s composition: %w", leg.Name, err)
	}

	if err := c.store.Put(key, data, c.now()); err != nil {
		return false, fmt.Errorf("caching %s composition: %w", leg.Name, err)
	}
	return true, nil
}

// Collect refreshes every configured legislature. Failures are recorded
// per legislature and do not stop the others.
func (c *Collector) Collect(ctx context.Context, force bool) *Result {
	r := &Result{Bytes: make(map[string]int), Errors: make(map[string]error)}

	for _, leg := range c.legislatures {
		downloaded, err := c.Refresh(ctx, leg.Name, force)
		if err != nil {
			log.Printf("Failed to refresh %s: %v", leg.Name, err)
			r.Failed++
			r.Errors[leg.Name] = err
			continue
		}
		if downloaded {
			r.Downloaded++
		} else {
			r.FromCache++
		}
		if e, err := c.store.Get(leg.Name); err == nil {
			r.Bytes[leg.Name] = len(e.Data)
		}

		if leg.CompositionURL == "" {
			continue
		}
		if _, err := c.RefreshComposition(ctx, leg.Name, force); err != nil {
			log.Printf("Failed to refresh %s composition: %v", leg.Name, err)
			r.Failed++
			r.Errors[leg.Name+" composition"] = err
		}
	}

	log.Printf("Collection complete: %d downloaded, %d from cache, %d failed", r.Downloaded, r.FromCache, r.Failed)
	return r
}

// RawInitiatives returns the decoded cached dump of a legislature.
func (c *Collector) RawInitiatives(ctx context.Context, legislature string) ([]raw.Value, error) {
	if _, err := c.lookup(legislature); err != nil {
		return nil, err
	}

	e, err := c.store.Get(legislature)
	if err != nil {
		return nil, err
	}

	items, err := raw.DecodeFeed(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s dump: %w", legislature, err)
	}
	return items, nil
}

// Composition returns the cached organization dump of a legislature,
// ErrNoComposition when none is configured, or cache.ErrMiss when it was
// never downloaded.
func (c *Collector) Composition(ctx context.Context, legislature string) (*composition.Composition, error) {
	leg, err := c.lookup(legislature)
	if err != nil {
		return nil, err
	}
	if leg.CompositionURL == "" {
		return nil, fmt.Errorf("%s: %w", leg.Name, ErrNoComposition)
	}

	e, err := c.store.Get(cache.CompositionKey(leg.Name))
	if err != nil {
		return nil, err
	}
	comp, err := composition.Decode(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s composition: %w", leg.Name, err)
	}
	return comp, nil
}

func (c *Collector) lookup(name string) (config.Legislature, error) {
	for _, l := range c.legislatures {
		if l.Name == name {
			return l, nil
		}
	}
	return config.Legislature{}, fmt.Errorf("unknown legislature %q", name)
}
