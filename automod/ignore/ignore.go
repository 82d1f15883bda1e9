// Package ignore is a suppression set preventing the pipeline from reacting to
// events the bot itself generated (for example its own message deletions).
// A component about to cause a side-effecting event registers it here first;
// the event handler then consumes the entry exactly once.
package ignore

import "context"

type Registry interface {
	// Add marks the next occurrence of (category, id) as self-generated.
	// Idempotent; repeated adds only refresh the expiry.
	Add(ctx context.Context, category, id string) error

	// CheckAndConsume atomically tests membership and removes the entry,
	// reporting whether suppression applied. Exactly one of any set of
	// concurrent callers observes true.
	CheckAndConsume(ctx context.Context, category, id string) (bool, error)
}

func entryKey(category, id string) string {
	return category + "/" + id
}
