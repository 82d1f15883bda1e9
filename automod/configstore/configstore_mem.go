package configstore

import (
	"context"
	"sync"
)

type MemStore struct {
	mu      sync.Mutex
	configs map[string]*GuildConfig
}

func NewMemStore() *MemStore {
	return &MemStore{
		configs: make(map[string]*GuildConfig),
	}
}

func (s *MemStore) GetConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[guildID]
	if !ok {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

func (s *MemStore) Exists(ctx context.Context, guildID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.configs[guildID]
	return ok, nil
}

func (s *MemStore) Insert(ctx context.Context, cfg *GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.GuildID] = cfg
	return nil
}
