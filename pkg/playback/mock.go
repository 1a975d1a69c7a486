package playback

import (
	"context"
	"sync"
)

// Call records one connector invocation for inspection in tests.
type Call struct {
	Op             string
	GuildID        string
	VoiceChannelID string
	FilePath       string
}

// MockConnector captures calls and optionally fails them.
type MockConnector struct {
	mu    sync.Mutex
	calls []Call
	err   error
}

func NewMockConnector() *MockConnector {
	return &MockConnector{}
}

// Fail makes every subsequent call return err.
func (m *MockConnector) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockConnector) Join(_ context.Context, guildID, voiceChannelID string) error {
	return m.record(Call{Op: "join", GuildID: guildID, VoiceChannelID: voiceChannelID})
}

func (m *MockConnector) Leave(_ context.Context, guildID string) error {
	return m.record(Call{Op: "leave", GuildID: guildID})
}

func (m *MockConnector) Enqueue(_ context.Context, guildID, filePath string) error {
	return m.record(Call{Op: "enqueue", GuildID: guildID, FilePath: filePath})
}

func (m *MockConnector) record(call Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

// Calls returns a copy of recorded calls.
func (m *MockConnector) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsByOp filters recorded calls by operation name.
func (m *MockConnector) CallsByOp(op string) []Call {
	var out []Call
	for _, call := range m.Calls() {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

var _ Connector = (*MockConnector)(nil)
