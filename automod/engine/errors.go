package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

// Kind classifies failures into the handling buckets the pipeline knows about.
type Kind int

const (
	// KindTransient covers transport and store hiccups: logged, retried or
	// dropped, never fatal to the process.
	KindTransient Kind = iota
	// KindNotFound is terminal for the current event (stale message, expired
	// invite) and triggers the "invalid" remediation path.
	KindNotFound
	// KindPolicyConfig means guild configuration was missing or unreadable;
	// callers fall back to safe defaults.
	KindPolicyConfig
	// KindGuard means the caller broke the one-in-flight-per-subject
	// contract. A programming error, reported loudly.
	KindGuard
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPolicyConfig:
		return "policy_config"
	case KindGuard:
		return "guard_violation"
	default:
		return "transient"
	}
}

// ErrGuardViolation is returned when the validator detects two concurrent
// invocations for the same (guild, user).
var ErrGuardViolation = errors.New("concurrent action validation for the same subject")

// Classify maps an error onto its handling kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrGuardViolation):
		return KindGuard
	case errors.Is(err, discord.ErrNotFound):
		return KindNotFound
	case errors.Is(err, configstore.ErrNotConfigured):
		return KindPolicyConfig
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return KindTransient
	}
}

// kindLevels is the single dispatch table mapping error kind to log severity.
var kindLevels = map[Kind]slog.Level{
	KindTransient:    slog.LevelWarn,
	KindNotFound:     slog.LevelDebug,
	KindPolicyConfig: slog.LevelWarn,
	KindGuard:        slog.LevelError,
}

// reportError logs the error per its kind and counts it.
func reportError(logger *slog.Logger, err error, msg string) {
	kind := Classify(err)
	logger.Log(context.Background(), kindLevels[kind], msg, "err", err, "kind", kind.String())
	pipelineErrorCount.WithLabelValues(kind.String()).Inc()
}
