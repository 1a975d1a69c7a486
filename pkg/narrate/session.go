// Package narrate implements the voice-session lifecycle and the
// message-to-speech pipeline: the per-guild session registry, dictionary
// transform, speaker attribution, and the orchestrator tying them to a
// synthesis provider and playback connector.
package narrate

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadySetUp is returned when a guild already has an active session.
	ErrAlreadySetUp = errors.New("session already set up")
	// ErrNotSetUp is returned when a guild has no active session.
	ErrNotSetUp = errors.New("session not set up")
)

// LastMessage remembers who spoke last in a session, driving speaker-change
// narration.
type LastMessage struct {
	AuthorID        string
	Content         string
	AttachmentCount int
}

// Session binds a guild to an active voice connection plus narration state.
// Its existence in the registry implies the guild's voice connection is live.
type Session struct {
	GuildID        string
	TextChannelID  string
	VoiceChannelID string
	Last           *LastMessage
	CreatedAt      time.Time
}

func (s Session) clone() Session {
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

// Registry is the single source of truth for active sessions. The outer lock
// guards only map membership; each guild's slot carries its own mutex, so
// operations on different guilds never serialize against each other and no
// lock is ever held across network I/O.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*slot
	now   func() time.Time
}

type slot struct {
	mu      sync.Mutex
	session Session
}

func NewRegistry() *Registry {
	return &Registry{
		slots: make(map[string]*slot),
		now:   time.Now,
	}
}

// Create atomically inserts a session for the guild. If one already exists,
// it fails without mutation.
func (r *Registry) Create(guildID, textChannelID, voiceChannelID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.slots[guildID]; exists {
		return Session{}, ErrAlreadySetUp
	}
	session := Session{
		GuildID:        guildID,
		TextChannelID:  textChannelID,
		VoiceChannelID: voiceChannelID,
		CreatedAt:      r.now(),
	}
	r.slots[guildID] = &slot{session: session}
	return session, nil
}

// Remove atomically deletes the guild's session and returns its final state.
func (r *Registry) Remove(guildID string) (Session, error) {
	r.mu.Lock()
	sl, exists := r.slots[guildID]
	if !exists {
		r.mu.Unlock()
		return Session{}, ErrNotSetUp
	}
	delete(r.slots, guildID)
	r.mu.Unlock()

	sl.mu.Lock()
	session := sl.session.clone()
	sl.mu.Unlock()
	return session, nil
}

// Lookup returns a copy of the guild's session, if any.
func (r *Registry) Lookup(guildID string) (Session, bool) {
	r.mu.RLock()
	sl, exists := r.slots[guildID]
	r.mu.RUnlock()
	if !exists {
		return Session{}, false
	}
	sl.mu.Lock()
	session := sl.session.clone()
	sl.mu.Unlock()
	return session, true
}

// Mutate applies fn to the guild's session under its slot lock. fn receives
// and returns a value copy; the returned session replaces the stored one.
func (r *Registry) Mutate(guildID string, fn func(Session) Session) error {
	r.mu.RLock()
	sl, exists := r.slots[guildID]
	r.mu.RUnlock()
	if !exists {
		return ErrNotSetUp
	}
	sl.mu.Lock()
	sl.session = fn(sl.session.clone())
	sl.mu.Unlock()
	return nil
}

// Len reports how many sessions are active.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}
