// Package actionlog is the durable, append-only audit trail of applied
// moderation actions. Records are never mutated; the validator reads recent
// history back to compute escalation tiers.
package actionlog

import (
	"context"
	"time"
)

// InfractionRecord is one applied (or attempted) moderation action.
type InfractionRecord struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	GuildID     string `gorm:"index:idx_infractions_guild_user"`
	UserID      string `gorm:"index:idx_infractions_guild_user"`
	Type        string
	ModeratorID string
	Reason      string
	Link        string

	// EventRef anchors the record to the originating event, for replay
	// deduplication.
	EventRef string `gorm:"index"`

	// CaseNumber is a per-guild monotonically increasing counter.
	CaseNumber int64

	// BestEffort marks records whose remediation call failed; the decision is
	// kept for the audit trail regardless.
	BestEffort bool
}

type Store interface {
	// Append persists the record and assigns its per-guild case number.
	Append(ctx context.Context, rec *InfractionRecord) error

	// QueryRecent returns records for (guild, user, type) created at or after
	// `since`, oldest first.
	QueryRecent(ctx context.Context, guildID, userID, vtype string, since time.Time) ([]InfractionRecord, error)

	// FindByEventRef returns the record anchored to the given event, or nil if
	// none exists.
	FindByEventRef(ctx context.Context, guildID, eventRef, vtype string) (*InfractionRecord, error)
}
