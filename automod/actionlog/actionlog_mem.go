package actionlog

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	mu      sync.Mutex
	records []InfractionRecord
	nextID  uint
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(ctx context.Context, rec *InfractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	var max int64
	for _, r := range s.records {
		if r.GuildID == rec.GuildID && r.CaseNumber > max {
			max = r.CaseNumber
		}
	}
	rec.CaseNumber = max + 1
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemStore) QueryRecent(ctx context.Context, guildID, userID, vtype string, since time.Time) ([]InfractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []InfractionRecord
	for _, r := range s.records {
		if r.GuildID == guildID && r.UserID == userID && r.Type == vtype && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemStore) FindByEventRef(ctx context.Context, guildID, eventRef, vtype string) (*InfractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.GuildID == guildID && r.EventRef == eventRef && r.Type == vtype {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

// All returns a copy of every stored record, for tests.
func (s *MemStore) All() []InfractionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InfractionRecord, len(s.records))
	copy(out, s.records)
	return out
}
