package rules

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/xezzz/Harpoon/automod/engine"
	"github.com/xezzz/Harpoon/discord"
)

var _ engine.MessageRuleFunc = InviteRule

// matches invite links, including the obfuscated "discord dot gg" spellings
var inviteRegex = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:discord(?:\.| | ?\[?\(?"?'?dot'?"?\)?\]? ?)?(?:gg|io|me|li)|discord(?:app)?\.com/invite)/+([\w-]+)`)

// InviteRule censors invite links pointing outside the guild. An invite that
// resolves to this guild or to a whitelisted target passes; anything else, or
// a code that no longer resolves, gets the message removed and a violation
// filed.
func InviteRule(c *engine.MessageContext) error {
	decoded, err := url.QueryUnescape(c.Msg.Content)
	if err != nil {
		decoded = c.Msg.Content
	}
	for _, m := range inviteRegex.FindAllStringSubmatch(decoded, -1) {
		code := m[1]
		inv, err := c.ResolveInvite(code)
		if err != nil {
			if errors.Is(err, discord.ErrNotFound) {
				c.MarkForDeletion()
				c.AddViolation(engine.ViolationInvite, fmt.Sprintf("Unresolvable invite: %s", code), code)
				return nil
			}
			return fmt.Errorf("resolving invite %q: %w", code, err)
		}
		if inv.GuildID == "" {
			c.MarkForDeletion()
			c.AddViolation(engine.ViolationInvite, fmt.Sprintf("Unresolvable invite: %s", code), code)
			return nil
		}
		if inv.GuildID == c.Msg.Ref.GuildID || c.InAllowList(inv.GuildID) {
			continue
		}
		c.MarkForDeletion()
		c.AddViolation(engine.ViolationInvite, fmt.Sprintf("Advertising (sending invite): %s", code), code)
		return nil
	}
	return nil
}
