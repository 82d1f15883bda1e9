package discord

import (
	"context"
	"sync"
	"time"
)

// ActionCall records one remediation call made against the mock client.
type ActionCall struct {
	GuildID  string
	UserID   string
	Reason   string
	Duration time.Duration
}

// MockClient is a scriptable in-memory Client. Intentionally exported, for use
// in tests across packages.
type MockClient struct {
	mu sync.Mutex

	BotID string

	// Members maps guild ID to the membership returned by ChunkMembers.
	Members map[string][]Member
	// ChunkErrs maps guild ID to an error returned (once) by ChunkMembers.
	ChunkErrs map[string]error
	// ChunkDelay is applied before every ChunkMembers call returns.
	ChunkDelay time.Duration
	// Invites maps invite code to target guild ID; unknown codes resolve to
	// ErrNotFound.
	Invites map[string]string

	TimeoutErr error
	KickErr    error
	BanErr     error
	DeleteErr  error

	Chunked  []string
	Deleted  []MessageRef
	Timeouts []ActionCall
	Kicks    []ActionCall
	Bans     []ActionCall
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) BotUserID() string {
	return m.BotID
}

func (m *MockClient) ChunkMembers(ctx context.Context, guildID string) ([]Member, error) {
	if m.ChunkDelay > 0 {
		select {
		case <-time.After(m.ChunkDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ChunkErrs[guildID]; ok {
		delete(m.ChunkErrs, guildID)
		return nil, err
	}
	m.Chunked = append(m.Chunked, guildID)
	return m.Members[guildID], nil
}

func (m *MockClient) DeleteMessage(ctx context.Context, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, ref)
	return nil
}

func (m *MockClient) ResolveInvite(ctx context.Context, code string) (*Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gid, ok := m.Invites[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &Invite{Code: code, GuildID: gid}, nil
}

func (m *MockClient) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TimeoutErr != nil {
		return m.TimeoutErr
	}
	m.Timeouts = append(m.Timeouts, ActionCall{GuildID: guildID, UserID: userID, Reason: reason, Duration: duration})
	return nil
}

func (m *MockClient) Kick(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.KickErr != nil {
		return m.KickErr
	}
	m.Kicks = append(m.Kicks, ActionCall{GuildID: guildID, UserID: userID, Reason: reason})
	return nil
}

func (m *MockClient) Ban(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BanErr != nil {
		return m.BanErr
	}
	m.Bans = append(m.Bans, ActionCall{GuildID: guildID, UserID: userID, Reason: reason})
	return nil
}

// CallCounts returns how many remediation calls of each kind were made.
func (m *MockClient) CallCounts() (timeouts, kicks, bans int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Timeouts), len(m.Kicks), len(m.Bans)
}
