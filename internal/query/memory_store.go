package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type memoryItem struct {
	key       Key
	entry     Entry
	expiresAt time.Time // zero means never
}

// MemoryStore keeps at most size entries in process, evicting the least
// recently used. Entries expire gcTime after they were last written.
type MemoryStore struct {
	cache  *lru.Cache
	gcTime time.Duration
	// serializes read-modify-write in Invalidate against Set
	mu sync.Mutex
}

// NewMemoryStore creates a MemoryStore. A zero gcTime keeps entries until evicted.
func NewMemoryStore(size int, gcTime time.Duration) (*MemoryStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &MemoryStore{cache: cache, gcTime: gcTime}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (*Entry, error) {
	k := key.String()
	v, ok := s.cache.Get(k)
	if !ok {
		return nil, ErrCacheMiss
	}
	item := v.(memoryItem)
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		s.cache.Remove(k)
		return nil, ErrCacheMiss
	}
	entry := item.entry
	return &entry, nil
}

func (s *MemoryStore) Set(ctx context.Context, key Key, entry Entry) error {
	item := memoryItem{key: key, entry: entry}
	if s.gcTime > 0 {
		item.expiresAt = time.Now().Add(s.gcTime)
	}
	s.mu.Lock()
	s.cache.Add(key.String(), item)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, prefix Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, k := range s.cache.Keys() {
		v, ok := s.cache.Peek(k)
		if !ok {
			continue
		}
		item := v.(memoryItem)
		if !item.key.HasPrefix(prefix) || item.entry.Invalidated {
			continue
		}
		item.entry.Invalidated = true
		s.cache.Add(k, item)
		n++
	}
	return n, nil
}

func (s *MemoryStore) Remove(ctx context.Context, key Key) error {
	s.cache.Remove(key.String())
	return nil
}

// Len returns the number of entries held, expired ones included.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
