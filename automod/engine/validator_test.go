package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xezzz/Harpoon/automod/actionlog"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

func fixtureCandidate(eventRef string) Violation {
	return Violation{
		EventRef:    eventRef,
		GuildID:     "g1",
		UserID:      "u1",
		Type:        ViolationSpam,
		ModeratorID: "bot1",
		Reason:      "Spamming messages (message_rate)",
	}
}

func TestValidatorEscalation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	v := eng.Validator
	cfg := configstore.DefaultConfig("g1")

	// tier 0 with no history: warn, record-only
	res, err := v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	require.NoError(t, err)
	assert.False(res.Skipped)
	assert.Equal(0, res.Tier)
	assert.Equal("warn", res.Action)
	assert.Equal(int64(1), res.CaseNumber)
	timeouts, kicks, bans := client.CallCounts()
	assert.Zero(timeouts + kicks + bans)

	// one prior record: mute
	res, err = v.FigureItOut(ctx, fixtureCandidate("m2"), cfg)
	require.NoError(t, err)
	assert.Equal(1, res.Tier)
	assert.Equal("mute", res.Action)
	require.Len(t, client.Timeouts, 1)
	assert.Equal(10*time.Minute, client.Timeouts[0].Duration)

	// walk the rest of the ladder
	for i, want := range []struct {
		action string
		tier   int
	}{
		{"mute", 2},
		{"kick", 3},
		{"ban", 4},
		{"ban", 4}, // past the last step the ladder stays capped
	} {
		res, err = v.FigureItOut(ctx, fixtureCandidate(fmt.Sprintf("m%d", i+3)), cfg)
		require.NoError(t, err)
		assert.Equal(want.tier, res.Tier)
		assert.Equal(want.action, res.Action)
	}
	assert.Len(client.Kicks, 1)
	assert.Len(client.Bans, 2)
}

func TestValidatorLookbackWindow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()
	v := eng.Validator
	cfg := configstore.DefaultConfig("g1")

	// records older than the lookback window do not count toward the tier
	store := v.Actions.(*actionlog.MemStore)
	require.NoError(t, store.Append(ctx, &actionlog.InfractionRecord{
		GuildID:   "g1",
		UserID:    "u1",
		Type:      ViolationSpam,
		EventRef:  "ancient",
		CreatedAt: time.Now().Add(-cfg.Escalation.Lookback() - time.Hour),
	}))

	res, err := v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	require.NoError(t, err)
	assert.Equal(0, res.Tier)
	assert.Equal("warn", res.Action)
}

func TestValidatorDuplicateEventRef(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()
	v := eng.Validator
	cfg := configstore.DefaultConfig("g1")

	res, err := v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	require.NoError(t, err)
	assert.False(res.Skipped)

	// redelivery of the same event is a no-op
	res, err = v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	require.NoError(t, err)
	assert.True(res.Skipped)
	assert.Equal("duplicate", res.SkipReason)

	// a fresh validator sharing the store still dedupes: the check is durable,
	// not just the in-memory layer
	v2 := NewActionValidator(eng.Logger, eng.Client, v.Actions, eng.Cache)
	res, err = v2.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	require.NoError(t, err)
	assert.True(res.Skipped)
	assert.Equal("duplicate", res.SkipReason)

	assert.Len(v.Actions.(*actionlog.MemStore).All(), 1)
}

func TestValidatorImmuneSubjects(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()
	v := eng.Validator
	cfg := configstore.DefaultConfig("g1")

	for _, userID := range []string{"bot1", "mod1"} {
		cand := fixtureCandidate("m1")
		cand.UserID = userID
		res, err := v.FigureItOut(ctx, cand, cfg)
		require.NoError(t, err)
		assert.True(res.Skipped)
		assert.Equal("immune", res.SkipReason)
	}
	assert.Empty(v.Actions.(*actionlog.MemStore).All())
}

func TestValidatorBestEffortAudit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	v := eng.Validator
	client.TimeoutErr = discord.ErrNotFound

	cfg := configstore.DefaultConfig("g1")
	cfg.Escalation.Steps = []configstore.EscalationStep{{Action: "mute", MuteMinutes: 10}}

	res, err := v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	require.NoError(t, err)
	assert.True(res.BestEffort)
	recs := v.Actions.(*actionlog.MemStore).All()
	require.Len(t, recs, 1)
	assert.True(recs[0].BestEffort)
}

func TestValidatorStrictEnforceFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	v := eng.Validator
	client.TimeoutErr = discord.ErrNotFound

	cfg := configstore.DefaultConfig("g1")
	cfg.Escalation.Steps = []configstore.EscalationStep{{Action: "mute", MuteMinutes: 10}}
	cfg.AuditOnEnforceFailure = false

	_, err := v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	assert.Error(err)
	assert.Empty(v.Actions.(*actionlog.MemStore).All())
}

func TestValidatorGuardViolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()
	v := eng.Validator
	cfg := configstore.DefaultConfig("g1")

	// simulate a caller breaking the single-flight contract
	v.inflight.Store(guardKey("g1", "u1"), struct{}{})
	_, err := v.FigureItOut(ctx, fixtureCandidate("m1"), cfg)
	assert.ErrorIs(err, ErrGuardViolation)
}
