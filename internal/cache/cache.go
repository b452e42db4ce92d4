// Package cache holds the desk's local copy of the lead collection. The whole
// collection lives under a single key as an ordered JSON list; the backing
// store only reads and writes that blob.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/models"
)

// ErrEmpty is returned by a Store when nothing has been written under the key yet
var ErrEmpty = errors.New("cache: no collection stored")

// Store persists the serialized lead collection
type Store interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// LeadCache serializes read-modify-write cycles against a Store
type LeadCache struct {
	mu    sync.Mutex
	store Store
}

// New wraps a store
func New(store Store) *LeadCache {
	return &LeadCache{store: store}
}

// Open builds the store selected by cfg.Type
func Open(ctx context.Context, cfg config.CacheConfig) (*LeadCache, error) {
	switch cfg.Type {
	case config.CacheTypeMemory:
		return New(NewMemoryStore()), nil
	case config.CacheTypeSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath, cfg.Key)
		if err != nil {
			return nil, err
		}
		return New(s), nil
	case config.CacheTypeRedis:
		s, err := NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, cfg.Key)
		if err != nil {
			return nil, err
		}
		return New(s), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// Close releases the underlying store
func (c *LeadCache) Close() error {
	return c.store.Close()
}

func (c *LeadCache) load(ctx context.Context) ([]*models.Lead, error) {
	data, err := c.store.Read(ctx)
	if errors.Is(err, ErrEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lead collection: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var leads []*models.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("failed to decode lead collection: %w", err)
	}
	return leads, nil
}

func (c *LeadCache) save(ctx context.Context, leads []*models.Lead) error {
	if leads == nil {
		leads = []*models.Lead{}
	}
	data, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("failed to encode lead collection: %w", err)
	}
	if err := c.store.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write lead collection: %w", err)
	}
	return nil
}

func indexOf(leads []*models.Lead, id string) int {
	for i, l := range leads {
		if l != nil && l.ID == id {
			return i
		}
	}
	return -1
}

// List returns every cached lead in collection order
func (c *LeadCache) List(ctx context.Context) ([]*models.Lead, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Get returns a copy of one lead or a LeadNotFoundError
func (c *LeadCache) Get(ctx context.Context, id string) (*models.Lead, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	leads, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(leads, id)
	if i < 0 {
		return nil, models.NewLeadNotFoundError(id)
	}
	return leads[i], nil
}

// Put inserts or replaces a lead; new leads are appended
func (c *LeadCache) Put(ctx context.Context, lead *models.Lead) error {
	if lead == nil || lead.ID == "" {
		return fmt.Errorf("lead id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	leads, err := c.load(ctx)
	if err != nil {
		return err
	}
	if i := indexOf(leads, lead.ID); i >= 0 {
		leads[i] = lead.Clone()
	} else {
		leads = append(leads, lead.Clone())
	}
	return c.save(ctx, leads)
}

// Update applies fn to the cached lead and persists the result. Nothing is
// written when fn returns an error.
func (c *LeadCache) Update(ctx context.Context, id string, fn func(*models.Lead) error) (*models.Lead, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	leads, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(leads, id)
	if i < 0 {
		return nil, models.NewLeadNotFoundError(id)
	}

	lead := leads[i]
	if err := fn(lead); err != nil {
		return nil, err
	}
	if err := c.save(ctx, leads); err != nil {
		return nil, err
	}
	return lead.Clone(), nil
}

// Delete removes a lead; deleting an unknown id is a no-op
func (c *LeadCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	leads, err := c.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(leads, id)
	if i < 0 {
		return nil
	}
	leads = append(leads[:i], leads[i+1:]...)
	return c.save(ctx, leads)
}

// Merge replaces the collection with the backend's leads, in backend order.
// A cached lead still marked SyncPending is not discarded: while the backend
// has not moved past its version the local lead wins outright, otherwise its
// ledger is carried onto the backend copy. Pending leads the backend no longer
// lists are kept at the end. The ids of all kept pending leads are returned so
// the caller can sync them again.
func (c *LeadCache) Merge(ctx context.Context, remote []*models.Lead) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	pending := make(map[string]*models.Lead)
	for _, l := range local {
		if l != nil && l.SyncPending {
			pending[l.ID] = l
		}
	}

	merged := make([]*models.Lead, 0, len(remote)+len(pending))
	var kept []string
	for _, r := range remote {
		if r == nil {
			continue
		}
		l, ok := pending[r.ID]
		if !ok {
			merged = append(merged, r.Clone())
			continue
		}
		delete(pending, r.ID)
		kept = append(kept, l.ID)
		if r.Version <= l.Version {
			merged = append(merged, l)
			continue
		}
		rebased := r.Clone()
		rebased.ReachOut = l.ReachOut
		rebased.SyncPending = true
		merged = append(merged, rebased)
	}
	for _, l := range local {
		if l == nil {
			continue
		}
		if _, ok := pending[l.ID]; ok {
			merged = append(merged, l)
			kept = append(kept, l.ID)
		}
	}

	if err := c.save(ctx, merged); err != nil {
		return nil, err
	}
	return kept, nil
}
