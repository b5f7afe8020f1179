// Package cache implements the tiered cache: a fast volatile tier (Redis)
// backed by a durable database tier, read fast -> durable -> miss. Caching
// is best-effort everywhere; tier failures are logged and never propagated
// to the caller's primary operation.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"go_stocksync/models"
)

// DataType selects the TTL policy and key prefix for a cached payload.
type DataType string

const (
	TypeQuote       DataType = "quote"
	TypePrice       DataType = "price"
	TypeStock       DataType = "stock"
	TypeIndicator   DataType = "indicator"
	TypeFundamental DataType = "fundamental"
)

// Per-type TTLs. Quotes go stale in a minute; rosters survive a week.
var cacheTTL = map[DataType]time.Duration{
	TypeQuote:       60 * time.Second,
	TypePrice:       24 * time.Hour,
	TypeStock:       7 * 24 * time.Hour,
	TypeIndicator:   6 * time.Hour,
	TypeFundamental: 24 * time.Hour,
}

// TTLFor returns the TTL policy for a data type; unknown types get the
// shortest TTL so a misconfigured caller can never pin stale data for long.
func TTLFor(t DataType) time.Duration {
	if ttl, ok := cacheTTL[t]; ok {
		return ttl
	}
	return cacheTTL[TypeQuote]
}

// FastStore is the volatile tier contract (Redis semantics). ok=false on a
// miss, error only on transport problems.
type FastStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// DurableStore is the durable tier contract. The store performs its own
// expiry check on read and upserts by cache key on write.
type DurableStore interface {
	Get(ctx context.Context, cacheKey string) (value string, ok bool, err error)
	Set(ctx context.Context, entry models.StockDataCache) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Manager is the tiered cache facade. A nil fast tier degrades gracefully to
// durable-tier-only operation.
type Manager struct {
	fast      FastStore
	durable   DurableStore
	namespace string
}

// NewManager builds a cache manager. fast may be nil when Redis is not
// configured; durable is required.
func NewManager(fast FastStore, durable DurableStore, namespace string) *Manager {
	return &Manager{fast: fast, durable: durable, namespace: namespace}
}

// fastKey builds "{namespace}:{type}:{id}" for the volatile tier.
func (m *Manager) fastKey(t DataType, identifier string) string {
	return m.namespace + ":" + string(t) + ":" + identifier
}

// durableKey builds "{type}:{id}" for the durable tier's logical key column.
func durableKey(t DataType, identifier string) string {
	return string(t) + ":" + identifier
}

// Get reads through the tiers and unmarshals the payload into dest.
// A durable-tier hit is written back to the fast tier with the type's TTL.
// Returns false on a miss on both tiers; the caller decides whether to hit
// upstream.
func (m *Manager) Get(ctx context.Context, t DataType, identifier string, dest any) bool {
	raw, ok := m.GetRaw(ctx, t, identifier)
	if !ok {
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("[Cache] Failed to decode cached payload for %s: %v", durableKey(t, identifier), err)
		return false
	}
	return true
}

// GetRaw is Get without deserialization.
func (m *Manager) GetRaw(ctx context.Context, t DataType, identifier string) (json.RawMessage, bool) {
	key := m.fastKey(t, identifier)

	if m.fast != nil {
		value, ok, err := m.fast.Get(ctx, key)
		if err != nil {
			log.Printf("[Cache] Fast tier read failed for %s: %v", key, err)
		} else if ok {
			return json.RawMessage(value), true
		}
	}

	value, ok, err := m.durable.Get(ctx, durableKey(t, identifier))
	if err != nil {
		log.Printf("[Cache] Durable tier read failed for %s: %v", durableKey(t, identifier), err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	// Write-through on a durable hit so the next read stays in memory.
	if m.fast != nil {
		if err := m.fast.SetEx(ctx, key, value, TTLFor(t)); err != nil {
			log.Printf("[Cache] Fast tier write-through failed for %s: %v", key, err)
		}
	}

	return json.RawMessage(value), true
}

// Set serializes data and writes both tiers concurrently with the type's
// TTL. Either tier failing is logged; Set never fails the caller.
func (m *Manager) Set(ctx context.Context, t DataType, identifier string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Cache] Failed to encode payload for %s: %v", durableKey(t, identifier), err)
		return
	}

	ttl := TTLFor(t)

	var wg sync.WaitGroup

	if m.fast != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.fast.SetEx(ctx, m.fastKey(t, identifier), string(payload), ttl); err != nil {
				log.Printf("[Cache] Fast tier write failed for %s: %v", m.fastKey(t, identifier), err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		entry := models.StockDataCache{
			CacheKey:  durableKey(t, identifier),
			Symbol:    identifier,
			DataType:  string(t),
			Data:      string(payload),
			ExpiresAt: time.Now().Add(ttl),
		}
		if err := m.durable.Set(ctx, entry); err != nil {
			log.Printf("[Cache] Durable tier write failed for %s: %v", entry.CacheKey, err)
		}
	}()

	wg.Wait()
}

// Clear deletes the fast-tier key and tombstones the durable row by writing
// an already-expired entry, keeping the row available for audit queries.
func (m *Manager) Clear(ctx context.Context, t DataType, identifier string) {
	if m.fast != nil {
		if err := m.fast.Del(ctx, m.fastKey(t, identifier)); err != nil {
			log.Printf("[Cache] Fast tier delete failed for %s: %v", m.fastKey(t, identifier), err)
		}
	}

	tombstone := models.StockDataCache{
		CacheKey:  durableKey(t, identifier),
		Symbol:    identifier,
		DataType:  string(t),
		Data:      "{}",
		ExpiresAt: time.Unix(0, 0),
	}
	if err := m.durable.Set(ctx, tombstone); err != nil {
		log.Printf("[Cache] Durable tier tombstone failed for %s: %v", tombstone.CacheKey, err)
	}
}

// ClearExpired sweeps expired rows out of the durable tier. Maintenance
// only; runs on a daily schedule, never on the read/write path.
func (m *Manager) ClearExpired(ctx context.Context) {
	deleted, err := m.durable.DeleteExpired(ctx)
	if err != nil {
		log.Printf("[Cache] Expired cache sweep failed: %v", err)
		return
	}
	log.Printf("[Cache] Expired cache sweep removed %d entries", deleted)
}

// GetMany fans out per-key reads concurrently and merges hits into one map.
// Keys that miss or error are simply absent from the result.
func (m *Manager) GetMany(ctx context.Context, t DataType, identifiers []string) map[string]json.RawMessage {
	result := make(map[string]json.RawMessage, len(identifiers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, identifier := range identifiers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if raw, ok := m.GetRaw(ctx, t, id); ok {
				mu.Lock()
				result[id] = raw
				mu.Unlock()
			}
		}(identifier)
	}
	wg.Wait()

	return result
}

// SetMany fans out per-key writes concurrently.
func (m *Manager) SetMany(ctx context.Context, t DataType, entries map[string]any) {
	var wg sync.WaitGroup
	for identifier, data := range entries {
		wg.Add(1)
		go func(id string, d any) {
			defer wg.Done()
			m.Set(ctx, t, id, d)
		}(identifier, data)
	}
	wg.Wait()
}

// TryWarmupLock takes a best-effort distributed lock (SET NX EX) so
// concurrent warm-up runs skip duplicate work. Without a fast tier the lock
// is granted unconditionally; a missed acquisition only skips redundant
// work, never correctness.
func (m *Manager) TryWarmupLock(ctx context.Context, name string, ttl time.Duration) bool {
	if m.fast == nil {
		return true
	}

	ok, err := m.fast.SetNX(ctx, m.namespace+":lock:"+name, "1", ttl)
	if err != nil {
		log.Printf("[Cache] Warmup lock %s failed: %v", name, err)
		return true
	}
	return ok
}
