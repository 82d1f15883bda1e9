package rules

import (
	"github.com/xezzz/Harpoon/automod/engine"
)

func DefaultRules() engine.RuleSet {
	return engine.RuleSet{
		MessageRules: []engine.MessageRuleFunc{
			InviteRule,
			MentionSpamRule,
		},
	}
}
