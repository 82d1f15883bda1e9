package rules

import (
	"fmt"

	"github.com/xezzz/Harpoon/automod/engine"
)

var _ engine.MessageRuleFunc = MentionSpamRule

// MentionSpamRule flags single messages which mention an unusually large
// number of users, per the guild's antispam policy.
func MentionSpamRule(c *engine.MessageContext) error {
	max := c.Config.Antispam.MaxMentions
	if max <= 0 || c.Msg.MentionCount <= max {
		return nil
	}
	c.MarkForDeletion()
	c.AddViolation(engine.ViolationMentions,
		fmt.Sprintf("Mass mentioning users (%d in one message)", c.Msg.MentionCount), "")
	return nil
}
