package engine

type MessageRuleFunc = func(c *MessageContext) error

// RuleSet holds the configured detectors and dispatches events to them.
type RuleSet struct {
	MessageRules []MessageRuleFunc
}

// CallMessageRules executes all message rules. One detector's failure is
// isolated: it is reported per its error kind and the remaining rules still
// run.
func (r *RuleSet) CallMessageRules(c *MessageContext) {
	for _, f := range r.MessageRules {
		if err := f(c); err != nil {
			reportError(c.Logger, err, "message rule failed")
		}
	}
}
