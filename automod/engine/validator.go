package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/xezzz/Harpoon/automod/actionlog"
	"github.com/xezzz/Harpoon/automod/cache"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

// AppliedAction describes the outcome of validating one violation candidate.
type AppliedAction struct {
	Tier       int
	Action     string
	CaseNumber int64
	// BestEffort is set when the remediation call failed but the infraction
	// was recorded anyway.
	BestEffort bool

	Skipped    bool
	SkipReason string
}

// ActionValidator converts a violation candidate plus the user's infraction
// history into a concrete moderation action, applied at most once per
// candidate.
//
// Callers must ensure at most one FigureItOut invocation per (guild, user) is
// in flight at a time (see HandlingGuard). The validator does not lock; it
// only detects contract violations and reports them loudly.
type ActionValidator struct {
	Logger  *slog.Logger
	Client  discord.Client
	Actions actionlog.Store
	Cache   *cache.Index

	// handled remembers recently applied candidates so duplicate deliveries
	// for the same event short-circuit without a store round-trip.
	handled  *expirable.LRU[string, time.Time]
	inflight *xsync.MapOf[string, struct{}]
}

func NewActionValidator(logger *slog.Logger, client discord.Client, actions actionlog.Store, idx *cache.Index) *ActionValidator {
	return &ActionValidator{
		Logger:   logger,
		Client:   client,
		Actions:  actions,
		Cache:    idx,
		handled:  expirable.NewLRU[string, time.Time](10_000, nil, time.Hour),
		inflight: xsync.NewMapOf[string, struct{}](),
	}
}

// FigureItOut decides and applies the remediation for one violation
// candidate: escalation tier from recent same-type history, one remediation
// call, then one infraction record, in that order. Immune subjects (the bot
// itself, moderators) yield a no-op result, not an error.
func (v *ActionValidator) FigureItOut(ctx context.Context, cand Violation, cfg *configstore.GuildConfig) (*AppliedAction, error) {
	subject := guardKey(cand.GuildID, cand.UserID)
	if _, loaded := v.inflight.LoadOrStore(subject, struct{}{}); loaded {
		guardViolationCount.Inc()
		return nil, fmt.Errorf("validating %s for %s: %w", cand.Type, subject, ErrGuardViolation)
	}
	defer v.inflight.Delete(subject)

	logger := v.Logger.With("guild", cand.GuildID, "user", cand.UserID, "type", cand.Type)

	if cand.UserID == v.Client.BotUserID() || v.Cache.IsModerator(cand.GuildID, cand.UserID) {
		return &AppliedAction{Skipped: true, SkipReason: "immune"}, nil
	}

	// at-most-once per candidate, surviving crash-recovery replay
	dedupeKey := cand.GuildID + "/" + cand.EventRef + "/" + cand.Type
	if _, ok := v.handled.Get(dedupeKey); ok {
		return &AppliedAction{Skipped: true, SkipReason: "duplicate"}, nil
	}
	prior, err := v.Actions.FindByEventRef(ctx, cand.GuildID, cand.EventRef, cand.Type)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		v.handled.Add(dedupeKey, time.Now())
		return &AppliedAction{Skipped: true, SkipReason: "duplicate"}, nil
	}

	since := time.Now().Add(-cfg.Escalation.Lookback())
	recent, err := v.Actions.QueryRecent(ctx, cand.GuildID, cand.UserID, cand.Type, since)
	if err != nil {
		return nil, err
	}
	step, tier := cfg.Escalation.StepFor(len(recent))

	enforceErr := v.apply(ctx, cand, step)
	if enforceErr != nil {
		reportError(logger, enforceErr, "remediation call failed")
		if !cfg.AuditOnEnforceFailure {
			return nil, enforceErr
		}
	}

	rec := &actionlog.InfractionRecord{
		GuildID:     cand.GuildID,
		UserID:      cand.UserID,
		Type:        cand.Type,
		ModeratorID: cand.ModeratorID,
		Reason:      cand.Reason,
		Link:        cand.Link,
		EventRef:    cand.EventRef,
		BestEffort:  enforceErr != nil,
	}
	if err := v.Actions.Append(ctx, rec); err != nil {
		return nil, err
	}
	v.handled.Add(dedupeKey, time.Now())

	actionAppliedCount.WithLabelValues(step.Action).Inc()
	logger.Info("applied moderation action",
		"action", step.Action, "tier", tier, "case", rec.CaseNumber, "best_effort", rec.BestEffort)

	return &AppliedAction{
		Tier:       tier,
		Action:     step.Action,
		CaseNumber: rec.CaseNumber,
		BestEffort: rec.BestEffort,
	}, nil
}

func (v *ActionValidator) apply(ctx context.Context, cand Violation, step configstore.EscalationStep) error {
	switch step.Action {
	case "warn":
		// warnings are record-only; no transport call
		return nil
	case "mute":
		return v.Client.Timeout(ctx, cand.GuildID, cand.UserID, time.Duration(step.MuteMinutes)*time.Minute, cand.Reason)
	case "kick":
		return v.Client.Kick(ctx, cand.GuildID, cand.UserID, cand.Reason)
	case "ban":
		return v.Client.Ban(ctx, cand.GuildID, cand.UserID, cand.Reason)
	default:
		return fmt.Errorf("unknown escalation action %q", step.Action)
	}
}
