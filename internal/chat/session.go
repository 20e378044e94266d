package chat

import (
	"context"
	"sync"
)

// Asker answers a question against a context.
type Asker interface {
	Ask(ctx context.Context, contextText, question string) (Answer, error)
}

// Session pairs a fixed comparison context with the questions asked
// against it.
type Session struct {
	asker   Asker
	context string

	mu      sync.Mutex
	history []Answer
}

// NewSession starts a session over contextText.
func NewSession(asker Asker, contextText string) *Session {
	return &Session{asker: asker, context: contextText}
}

// Ask forwards to the assistant and records successful answers.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	ans, err := s.asker.Ask(ctx, s.context, question)
	if err != nil {
		return Answer{}, err
	}
	s.mu.Lock()
	s.history = append(s.history, ans)
	s.mu.Unlock()
	return ans, nil
}

// History returns answers oldest first.
func (s *Session) History() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Answer, len(s.history))
	copy(out, s.history)
	return out
}

// Clear drops the history.
func (s *Session) Clear() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Context returns the comparison context the session answers from.
func (s *Session) Context() string {
	return s.context
}
