package configstore

import (
	"context"
	"sync"
	"time"
)

// CachedStore decorates a Store with per-key TTL caching so every chat
// message does not hit the backing service. Entries can be invalidated
// explicitly when the external store reports a change.
type CachedStore struct {
	inner Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	servers map[string]cacheEntry[ServerConfig]
	users   map[string]cacheEntry[UserConfig]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		servers: make(map[string]cacheEntry[ServerConfig]),
		users:   make(map[string]cacheEntry[UserConfig]),
	}
}

func (s *CachedStore) GetServerConfig(ctx context.Context, guildID string) (ServerConfig, error) {
	s.mu.RLock()
	entry, ok := s.servers[guildID]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.value, nil
	}
	cfg, err := s.inner.GetServerConfig(ctx, guildID)
	if err != nil {
		return ServerConfig{}, err
	}
	s.mu.Lock()
	s.servers[guildID] = cacheEntry[ServerConfig]{value: cfg, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return cfg, nil
}

func (s *CachedStore) GetUserConfig(ctx context.Context, userID string) (UserConfig, error) {
	s.mu.RLock()
	entry, ok := s.users[userID]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.value, nil
	}
	cfg, err := s.inner.GetUserConfig(ctx, userID)
	if err != nil {
		return UserConfig{}, err
	}
	s.mu.Lock()
	s.users[userID] = cacheEntry[UserConfig]{value: cfg, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return cfg, nil
}

// InvalidateServer drops the cached config for one guild.
func (s *CachedStore) InvalidateServer(guildID string) {
	s.mu.Lock()
	delete(s.servers, guildID)
	s.mu.Unlock()
}

// InvalidateUser drops the cached config for one user.
func (s *CachedStore) InvalidateUser(userID string) {
	s.mu.Lock()
	delete(s.users, userID)
	s.mu.Unlock()
}

var _ Store = (*CachedStore)(nil)
