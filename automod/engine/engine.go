// Package engine is the runtime of the moderation core: it executes detectors
// against inbound message events, tracks spam state, and converts violation
// signals into escalated, at-most-once moderation actions.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xezzz/Harpoon/automod/cache"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/automod/ignore"
	"github.com/xezzz/Harpoon/automod/spam"
	"github.com/xezzz/Harpoon/discord"
)

const ignoreCategoryMessageDelete = "message_delete"

type Engine struct {
	Logger    *slog.Logger
	Client    discord.Client
	Config    configstore.Store
	Ignore    ignore.Registry
	Spam      *spam.Checker
	Cache     *cache.Index
	Rules     RuleSet
	Guard     *HandlingGuard
	Validator *ActionValidator
}

// ProcessMessage runs the full decision loop for one inbound message: immunity
// short-circuit, detectors, spam evaluation, then persistence of collected
// effects.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *Message) error {
	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod event execution exception", "err", r, "guild", msg.Ref.GuildID, "message", msg.Ref.MessageID)
		}
	}()
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("message").Inc()

	if eng.isImmune(msg) {
		return nil
	}

	cfg, err := eng.Config.GetConfig(ctx, msg.Ref.GuildID)
	if err != nil {
		if !errors.Is(err, configstore.ErrNotConfigured) {
			reportError(eng.Logger, err, "reading guild config")
		}
		cfg = configstore.DefaultConfig(msg.Ref.GuildID)
	}

	c := NewMessageContext(ctx, eng, msg, cfg)
	eng.Rules.CallMessageRules(c)

	if eng.Spam != nil {
		pol := spam.Policy{
			Window:            cfg.Antispam.Window(),
			MaxMessages:       cfg.Antispam.MaxMessages,
			MaxDuplicateRatio: cfg.Antispam.MaxDuplicateRatio,
			MaxMentions:       cfg.Antispam.MaxMentions,
		}
		if abusing, reason := eng.Spam.RecordAndEvaluate(msg.Ref.GuildID, msg.AuthorID, msg.Content, msg.MentionCount, pol); abusing {
			c.AddViolation(ViolationSpam, "Spamming messages ("+reason+")", "")
		}
	}

	return eng.persistEffects(c)
}

// ProcessMessageDelete consumes the suppression entry for deletions the bot
// itself caused; suppressed events never re-enter the pipeline.
func (eng *Engine) ProcessMessageDelete(ctx context.Context, ref discord.MessageRef) error {
	eventProcessCount.WithLabelValues("message_delete").Inc()
	consumed, err := eng.Ignore.CheckAndConsume(ctx, ignoreCategoryMessageDelete, ref.MessageID)
	if err != nil {
		return err
	}
	if consumed {
		suppressedEventCount.Inc()
		eng.Logger.Debug("suppressed self-generated deletion", "message", ref.MessageID)
	}
	return nil
}

// isImmune filters out the bot's own messages, other bots, and moderators.
func (eng *Engine) isImmune(msg *Message) bool {
	if msg.AuthorBot || msg.AuthorID == eng.Client.BotUserID() {
		return true
	}
	if msg.AuthorModerator {
		return true
	}
	return eng.Cache.IsModerator(msg.Ref.GuildID, msg.AuthorID)
}

// persistEffects applies everything the rules and the spam checker collected:
// the ignore entry is registered before the deletion is issued, and each
// violation runs as one guarded validation cycle per subject.
func (eng *Engine) persistEffects(c *MessageContext) error {
	eff := c.effects

	if eff.DeleteMessage {
		if err := eng.Ignore.Add(c.Ctx, ignoreCategoryMessageDelete, c.Msg.Ref.MessageID); err != nil {
			reportError(c.Logger, err, "registering ignore entry")
		}
		if err := eng.Client.DeleteMessage(c.Ctx, c.Msg.Ref); err != nil && !errors.Is(err, discord.ErrNotFound) {
			reportError(c.Logger, err, "deleting message")
		}
	}

	for _, v := range eff.Violations {
		violationCount.WithLabelValues(v.Type).Inc()
		if !eng.Guard.TryAcquire(v.GuildID, v.UserID) {
			guardContentionCount.Inc()
			continue
		}
		eng.handleViolation(c, v)
	}
	return nil
}

// handleViolation runs one remediation cycle; the guard is released on every
// exit path.
func (eng *Engine) handleViolation(c *MessageContext, v Violation) {
	defer eng.Guard.Release(v.GuildID, v.UserID)

	res, err := eng.Validator.FigureItOut(c.Ctx, v, c.Config)
	if err != nil {
		reportError(c.Logger, err, "action validation failed")
		return
	}
	if res.Skipped {
		c.Logger.Debug("violation skipped", "type", v.Type, "reason", res.SkipReason)
		return
	}
	if v.Type == ViolationSpam && eng.Spam != nil {
		// the user is no longer tracked as a suspect once handled
		eng.Spam.Forget(v.GuildID, v.UserID)
	}
}
