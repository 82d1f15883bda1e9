package configstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// GormStore persists guild configs with a small expiring read-through cache in
// front of the database.
type GormStore struct {
	db    *gorm.DB
	cache *expirable.LRU[string, *GuildConfig]
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&GuildConfig{}); err != nil {
		return nil, fmt.Errorf("migrating guild configs: %w", err)
	}
	return &GormStore{
		db:    db,
		cache: expirable.NewLRU[string, *GuildConfig](5_000, nil, 5*time.Minute),
	}, nil
}

func (s *GormStore) GetConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	if cfg, ok := s.cache.Get(guildID); ok {
		return cfg, nil
	}
	var cfg GuildConfig
	err := s.db.WithContext(ctx).First(&cfg, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("reading config for guild %s: %w", guildID, err)
	}
	s.cache.Add(guildID, &cfg)
	return &cfg, nil
}

func (s *GormStore) Exists(ctx context.Context, guildID string) (bool, error) {
	if _, ok := s.cache.Get(guildID); ok {
		return true, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&GuildConfig{}).Where("guild_id = ?", guildID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking config for guild %s: %w", guildID, err)
	}
	return count > 0, nil
}

func (s *GormStore) Insert(ctx context.Context, cfg *GuildConfig) error {
	if err := s.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return fmt.Errorf("inserting config for guild %s: %w", cfg.GuildID, err)
	}
	s.cache.Add(cfg.GuildID, cfg)
	return nil
}
