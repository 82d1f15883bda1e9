package configstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured indicates no configuration row exists for the guild.
// Callers are expected to fall back to DefaultConfig.
var ErrNotConfigured = errors.New("guild configuration missing")

const DefaultPrefix = "h!"

// AntispamPolicy holds the sliding-window thresholds for a guild.
type AntispamPolicy struct {
	WindowSeconds     int
	MaxMessages       int
	MaxDuplicateRatio float64
	MaxMentions       int
}

func (p AntispamPolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// EscalationStep is one rung of the remediation ladder.
type EscalationStep struct {
	// Action is one of "warn", "mute", "kick", "ban".
	Action string
	// MuteMinutes is the timeout duration for "mute" steps.
	MuteMinutes int
}

// EscalationPolicy maps a user's recent infraction count onto a step.
type EscalationPolicy struct {
	Steps []EscalationStep
	// LookbackDays bounds which prior infractions count toward escalation.
	LookbackDays int
}

func (p EscalationPolicy) Lookback() time.Duration {
	return time.Duration(p.LookbackDays) * 24 * time.Hour
}

// StepFor returns the escalation step for a user with `prior` recent
// infractions of the same type. Monotonically non-decreasing in `prior`.
func (p EscalationPolicy) StepFor(prior int) (EscalationStep, int) {
	if len(p.Steps) == 0 {
		return EscalationStep{Action: "warn"}, 0
	}
	tier := prior
	if tier >= len(p.Steps) {
		tier = len(p.Steps) - 1
	}
	return p.Steps[tier], tier
}

type GuildConfig struct {
	GuildID string `gorm:"primaryKey;column:guild_id"`

	Prefix             string
	WhitelistedInvites []string `gorm:"serializer:json"`

	Antispam   AntispamPolicy   `gorm:"serializer:json"`
	Escalation EscalationPolicy `gorm:"serializer:json"`

	// AuditOnEnforceFailure keeps writing infraction records even when the
	// remediation call fails (flagged best-effort). Favors auditability over
	// enforcement atomicity.
	AuditOnEnforceFailure bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InviteWhitelisted reports whether the target guild is on the allow-list.
func (c *GuildConfig) InviteWhitelisted(guildID string) bool {
	for _, id := range c.WhitelistedInvites {
		if id == guildID {
			return true
		}
	}
	return false
}

// DefaultConfig is inserted for any guild observed without a stored config.
func DefaultConfig(guildID string) *GuildConfig {
	return &GuildConfig{
		GuildID: guildID,
		Prefix:  DefaultPrefix,
		Antispam: AntispamPolicy{
			WindowSeconds:     10,
			MaxMessages:       5,
			MaxDuplicateRatio: 0.75,
			MaxMentions:       8,
		},
		Escalation: EscalationPolicy{
			Steps: []EscalationStep{
				{Action: "warn"},
				{Action: "mute", MuteMinutes: 10},
				{Action: "mute", MuteMinutes: 60},
				{Action: "kick"},
				{Action: "ban"},
			},
			LookbackDays: 30,
		},
		AuditOnEnforceFailure: true,
	}
}

type Store interface {
	GetConfig(ctx context.Context, guildID string) (*GuildConfig, error)
	Exists(ctx context.Context, guildID string) (bool, error)
	Insert(ctx context.Context, cfg *GuildConfig) error
}

// Prefix is a read-through helper which never fails: a missing or unreadable
// config yields the default prefix.
func Prefix(ctx context.Context, s Store, guildID string) string {
	cfg, err := s.GetConfig(ctx, guildID)
	if err != nil {
		return DefaultPrefix
	}
	return cfg.Prefix
}
