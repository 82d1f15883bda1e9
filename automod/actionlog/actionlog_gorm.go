package actionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&InfractionRecord{}); err != nil {
		return nil, fmt.Errorf("migrating infraction records: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, rec *InfractionRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var max int64
		err := tx.Model(&InfractionRecord{}).
			Where("guild_id = ?", rec.GuildID).
			Select("COALESCE(MAX(case_number), 0)").
			Scan(&max).Error
		if err != nil {
			return err
		}
		rec.CaseNumber = max + 1
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("appending infraction for guild %s user %s: %w", rec.GuildID, rec.UserID, err)
	}
	return nil
}

func (s *GormStore) QueryRecent(ctx context.Context, guildID, userID, vtype string, since time.Time) ([]InfractionRecord, error) {
	var recs []InfractionRecord
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND type = ? AND created_at >= ?", guildID, userID, vtype, since).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying infractions for guild %s user %s: %w", guildID, userID, err)
	}
	return recs, nil
}

func (s *GormStore) FindByEventRef(ctx context.Context, guildID, eventRef, vtype string) (*InfractionRecord, error) {
	var rec InfractionRecord
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND event_ref = ? AND type = ?", guildID, eventRef, vtype).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up infraction by event ref %s: %w", eventRef, err)
	}
	return &rec, nil
}
