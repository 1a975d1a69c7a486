package configstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	servers map[string]ServerConfig
	users   map[string]UserConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		servers: make(map[string]ServerConfig),
		users:   make(map[string]UserConfig),
	}
}

func (s *MemoryStore) GetServerConfig(_ context.Context, guildID string) (ServerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servers[guildID], nil
}

func (s *MemoryStore) GetUserConfig(_ context.Context, userID string) (UserConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID], nil
}

// PutServerConfig validates and stores a guild configuration.
func (s *MemoryStore) PutServerConfig(guildID string, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.servers[guildID] = cfg
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PutUserConfig(userID string, cfg UserConfig) {
	s.mu.Lock()
	s.users[userID] = cfg
	s.mu.Unlock()
}

var _ Store = (*MemoryStore)(nil)
