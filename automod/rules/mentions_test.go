package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xezzz/Harpoon/automod/engine"
)

func TestMentionSpamRule(t *testing.T) {
	cases := []struct {
		name     string
		mentions int
		max      int
		want     bool
	}{
		{"under the limit", 3, 8, false},
		{"exactly at the limit", 8, 8, false},
		{"over the limit", 9, 8, true},
		{"disabled policy", 50, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			eng, _ := engine.EngineTestFixture()

			msg := engine.TestMessage("m1", "u1", "hey everyone")
			msg.MentionCount = tc.mentions
			cfg := mustConfig(t, eng, "g1")
			cfg.Antispam.MaxMentions = tc.max

			c := engine.NewMessageContext(context.Background(), eng, msg, cfg)
			require.NoError(t, MentionSpamRule(c))

			eff := engine.ExtractEffects(c)
			assert.Equal(tc.want, eff.DeleteMessage)
			if tc.want {
				require.Len(t, eff.Violations, 1)
				assert.Equal(engine.ViolationMentions, eff.Violations[0].Type)
			} else {
				assert.Empty(eff.Violations)
			}
		})
	}
}
