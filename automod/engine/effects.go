package engine

// Violation type codes emitted by detectors.
const (
	ViolationSpam     = "spam_detection"
	ViolationInvite   = "invite_censor"
	ViolationMentions = "mention_spam"
)

// Violation is a detector's output signaling a possible policy breach, not yet
// acted upon. Consumed exactly once by the action validator.
type Violation struct {
	// EventRef anchors the violation to its originating event (message ID),
	// for at-most-once application.
	EventRef string
	GuildID  string
	UserID   string
	Type     string
	// ModeratorID is the acting account, ie the bot itself for automated
	// detections.
	ModeratorID string
	Reason      string
	// Link carries structured metadata, eg the offending invite code.
	Link string
}

// Effects is the mutable container for side effects collected during rule
// execution; the engine persists them after all rules have run.
type Effects struct {
	// DeleteMessage requests removal of the triggering message. The engine
	// registers the ignore entry before issuing the delete.
	DeleteMessage bool
	// Violations are handed to the action validator, one guarded cycle per
	// subject user.
	Violations []Violation
}
