// Package convo tracks per-user multi-step conversational flows: broadcast composition
// and Hydrax credential rotation. Each user has at most one active flow; starting a new
// flow replaces any prior one. State is memory-only and lost on restart.
package convo

import (
	"errors"
	"sync"
)

// ErrStateMismatch is returned when an event does not match the shape the user's
// active flow expects (or no flow is active). Callers treat it as "not consumed"
// and fall through to regular command dispatch.
var ErrStateMismatch = errors.New("convo: event does not match active flow")

// Broadcast composition steps.
type BroadcastStep int

const (
	// BroadcastAwaitingContent accepts the next free-text message as an announcement part.
	BroadcastAwaitingContent BroadcastStep = iota
	// BroadcastAwaitingMoreOrDone awaits the add-more yes/no choice.
	BroadcastAwaitingMoreOrDone
	// BroadcastAwaitingSendConfirmation awaits the final send yes/no choice.
	BroadcastAwaitingSendConfirmation
)

// Credential rotation steps.
type CredentialStep int

const (
	// CredentialAwaitingValue accepts the next free-text message verbatim as the candidate.
	CredentialAwaitingValue CredentialStep = iota
	// CredentialAwaitingConfirmation awaits the confirm yes/no choice.
	CredentialAwaitingConfirmation
)

// State is a tagged union: exactly one of Broadcast or Credential is non-nil while
// the state is live. Invalid combinations (parts without a step, etc.) cannot be
// represented.
type State struct {
	Broadcast  *BroadcastState
	Credential *CredentialState
}

// BroadcastState accumulates announcement parts while the owner composes a broadcast.
type BroadcastState struct {
	Parts []string
	Step  BroadcastStep
}

// CredentialState holds the candidate credential awaiting confirmation.
type CredentialState struct {
	Pending string
	Step    CredentialStep
}

const shardCount = 16

type shard struct {
	mu     sync.Mutex
	states map[int64]*State
}

// Manager owns the shared user-id -> flow mapping. Access is synchronized per shard so
// concurrent events for different users don't contend, and a single user's two-phase
// read-modify-write of their own flow can't interleave with itself.
type Manager struct {
	shards [shardCount]shard
}

func NewManager() *Manager {
	m := &Manager{}
	for i := range m.shards {
		m.shards[i].states = make(map[int64]*State)
	}
	return m
}

func (m *Manager) shardFor(userID int64) *shard {
	return &m.shards[uint64(userID)%shardCount]
}

// BeginBroadcast starts a broadcast composition flow for userID, replacing any active
// flow. It reports whether a prior flow was discarded so the caller can warn.
func (m *Manager) BeginBroadcast(userID int64) (replaced bool) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced = s.states[userID]
	s.states[userID] = &State{Broadcast: &BroadcastState{Step: BroadcastAwaitingContent}}
	return replaced
}

// BeginCredential starts a credential rotation flow for userID, replacing any active flow.
func (m *Manager) BeginCredential(userID int64) (replaced bool) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced = s.states[userID]
	s.states[userID] = &State{Credential: &CredentialState{Step: CredentialAwaitingValue}}
	return replaced
}

// Clear destroys userID's active flow. It is idempotent; clearing an absent flow is a
// no-op that reports false.
func (m *Manager) Clear(userID int64) bool {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[userID]
	delete(s.states, userID)
	return ok
}

// Active reports whether userID has a flow in progress.
func (m *Manager) Active(userID int64) bool {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[userID]
	return ok
}

// ExpectsText reports whether userID's active flow will consume the next free-text
// message. The router checks this before treating a text as a command.
func (m *Manager) ExpectsText(userID int64) bool {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		return false
	}
	switch {
	case st.Broadcast != nil:
		return st.Broadcast.Step == BroadcastAwaitingContent
	case st.Credential != nil:
		return st.Credential.Step == CredentialAwaitingValue
	}
	return false
}

// AppendBroadcastPart consumes a free-text message as the next announcement part and
// advances to the add-more question.
func (m *Manager) AppendBroadcastPart(userID int64, text string) error {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok || st.Broadcast == nil || st.Broadcast.Step != BroadcastAwaitingContent {
		return ErrStateMismatch
	}
	st.Broadcast.Parts = append(st.Broadcast.Parts, text)
	st.Broadcast.Step = BroadcastAwaitingMoreOrDone
	return nil
}

// ChooseMore consumes the add-more choice. Choosing more loops back to content input
// and returns nil parts; declining advances to send confirmation and returns a copy of
// the accumulated parts for the preview.
func (m *Manager) ChooseMore(userID int64, more bool) ([]string, error) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok || st.Broadcast == nil || st.Broadcast.Step != BroadcastAwaitingMoreOrDone {
		return nil, ErrStateMismatch
	}
	if more {
		st.Broadcast.Step = BroadcastAwaitingContent
		return nil, nil
	}
	st.Broadcast.Step = BroadcastAwaitingSendConfirmation
	parts := make([]string, len(st.Broadcast.Parts))
	copy(parts, st.Broadcast.Parts)
	return parts, nil
}

// ConfirmSend consumes the final send choice and destroys the flow. When send is true
// the accumulated parts are returned for delivery; otherwise nil.
func (m *Manager) ConfirmSend(userID int64, send bool) ([]string, error) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok || st.Broadcast == nil || st.Broadcast.Step != BroadcastAwaitingSendConfirmation {
		return nil, ErrStateMismatch
	}
	delete(s.states, userID)
	if !send {
		return nil, nil
	}
	return st.Broadcast.Parts, nil
}

// CaptureCredential consumes a free-text message verbatim as the candidate credential
// and advances to confirmation. The value is not validated for format.
func (m *Manager) CaptureCredential(userID int64, value string) error {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok || st.Credential == nil || st.Credential.Step != CredentialAwaitingValue {
		return ErrStateMismatch
	}
	st.Credential.Pending = value
	st.Credential.Step = CredentialAwaitingConfirmation
	return nil
}

// ResolveCredential consumes the confirm choice and destroys the flow. When accepted,
// the pending credential is returned for persistence; otherwise empty.
func (m *Manager) ResolveCredential(userID int64, accept bool) (string, error) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok || st.Credential == nil || st.Credential.Step != CredentialAwaitingConfirmation {
		return "", ErrStateMismatch
	}
	delete(s.states, userID)
	if !accept {
		return "", nil
	}
	return st.Credential.Pending, nil
}
