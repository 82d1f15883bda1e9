package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xezzz/Harpoon/automod/actionlog"
)

func memActions(eng *Engine) *actionlog.MemStore {
	return eng.Validator.Actions.(*actionlog.MemStore)
}

func TestProcessMessageSpamEscalation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()

	// the default policy allows 5 messages per window; the 6th trips the rate
	// check. Contents are distinct so only the rate detector fires.
	for i := 0; i < 6; i++ {
		msg := TestMessage(fmt.Sprintf("m%d", i), "u1", fmt.Sprintf("hello %d", i))
		require.NoError(t, eng.ProcessMessage(ctx, msg))
	}

	recs := memActions(eng).All()
	require.Len(t, recs, 1)
	assert.Equal(ViolationSpam, recs[0].Type)
	assert.Equal("u1", recs[0].UserID)
	assert.Equal("m5", recs[0].EventRef)

	// tier 0 is a warning: record-only, no transport call
	timeouts, kicks, bans := client.CallCounts()
	assert.Zero(timeouts + kicks + bans)

	// the guard was released once the cycle finished
	assert.False(eng.Guard.Held("g1", "u1"))

	// a second burst escalates to the next tier (the spam window was reset on
	// the first action, so it takes a full burst to trip again)
	for i := 6; i < 12; i++ {
		msg := TestMessage(fmt.Sprintf("m%d", i), "u1", fmt.Sprintf("hello %d", i))
		require.NoError(t, eng.ProcessMessage(ctx, msg))
	}
	recs = memActions(eng).All()
	require.Len(t, recs, 2)
	require.Len(t, client.Timeouts, 1)
	assert.Equal(10*time.Minute, client.Timeouts[0].Duration)
	assert.Equal("u1", client.Timeouts[0].UserID)
}

func TestProcessMessageImmuneAuthors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	// cached moderators, bot authors, and the bot itself never enter the
	// pipeline, however fast they post
	for i := 0; i < 12; i++ {
		require.NoError(t, eng.ProcessMessage(ctx, TestMessage(fmt.Sprintf("a%d", i), "mod1", "spam spam")))
		require.NoError(t, eng.ProcessMessage(ctx, TestMessage(fmt.Sprintf("b%d", i), "bot1", "spam spam")))

		other := TestMessage(fmt.Sprintf("c%d", i), "u2", "spam spam")
		other.AuthorBot = true
		require.NoError(t, eng.ProcessMessage(ctx, other))
	}
	assert.Empty(memActions(eng).All())
}

func TestProcessMessageRuleDeletion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	eng.Rules = RuleSet{MessageRules: []MessageRuleFunc{
		func(c *MessageContext) error {
			c.MarkForDeletion()
			return nil
		},
	}}

	msg := TestMessage("m1", "u1", "bad content")
	require.NoError(t, eng.ProcessMessage(ctx, msg))

	require.Len(t, client.Deleted, 1)
	assert.Equal("m1", client.Deleted[0].MessageID)

	// the suppression entry was registered, so the echoed deletion event is
	// swallowed instead of re-entering the pipeline
	consumed, err := eng.Ignore.CheckAndConsume(ctx, ignoreCategoryMessageDelete, "m1")
	assert.NoError(err)
	assert.True(consumed)
}

func TestProcessMessageRuleIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := EngineTestFixture()
	eng.Rules = RuleSet{MessageRules: []MessageRuleFunc{
		func(c *MessageContext) error {
			return errors.New("detector blew up")
		},
		func(c *MessageContext) error {
			c.MarkForDeletion()
			return nil
		},
	}}

	require.NoError(t, eng.ProcessMessage(ctx, TestMessage("m1", "u1", "x")))
	assert.Len(client.Deleted, 1)
}

func TestProcessMessagePanicRecovery(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()
	eng.Rules = RuleSet{MessageRules: []MessageRuleFunc{
		func(c *MessageContext) error {
			panic("rule exploded")
		},
	}}

	assert.NotPanics(func() {
		_ = eng.ProcessMessage(ctx, TestMessage("m1", "u1", "x"))
	})
}

func TestProcessMessageDeleteSuppression(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	require.NoError(t, eng.Ignore.Add(ctx, ignoreCategoryMessageDelete, "m1"))
	require.NoError(t, eng.ProcessMessageDelete(ctx, TestMessage("m1", "u1", "").Ref))

	// the entry is consumed exactly once
	consumed, err := eng.Ignore.CheckAndConsume(ctx, ignoreCategoryMessageDelete, "m1")
	assert.NoError(err)
	assert.False(consumed)

	// deletions the bot did not cause pass straight through
	require.NoError(t, eng.ProcessMessageDelete(ctx, TestMessage("m2", "u1", "").Ref))
}
