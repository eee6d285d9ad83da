// Package session holds per-conversation turn history and renders it into
// the prompt sent to the language model.
package session

import (
	"context"
	"strings"
	"sync"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Generator produces the assistant reply for a rendered prompt.
type Generator func(ctx context.Context, prompt string) (string, error)

// Session is the ordered history of one conversation. Converse holds the
// session lock for the whole append-render-generate cycle, so concurrent
// turns on the same session never interleave.
type Session struct {
	id       string
	maxChars int

	mu    sync.Mutex
	turns []Turn
}

// New returns an empty session. maxChars <= 0 keeps the full history.
func New(id string, maxChars int) *Session {
	return &Session{id: id, maxChars: maxChars}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Append adds a turn to the end of the history.
func (s *Session) Append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// Turns returns a copy of the history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Render builds the prompt for the current history.
func (s *Session) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Render(s.turns)
}

// Converse runs one exchange: it appends the user turn, trims the oldest
// turns while the prompt exceeds maxChars, renders, and calls gen. On
// failure the history is restored to exactly what it was before the call.
// On success the trimmed reply is appended as the assistant turn.
func (s *Session) Converse(ctx context.Context, userText string, gen Generator) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.turns
	turns := make([]Turn, len(before), len(before)+2)
	copy(turns, before)
	turns = append(turns, Turn{Role: RoleUser, Text: userText})
	turns = s.evict(turns)

	reply, err := gen(ctx, Render(turns))
	if err != nil {
		s.turns = before
		return "", err
	}

	reply = strings.TrimSpace(reply)
	s.turns = append(turns, Turn{Role: RoleAssistant, Text: reply})
	return reply, nil
}

// evict drops turns from the front until the prompt fits, keeping at least
// the newest turn.
func (s *Session) evict(turns []Turn) []Turn {
	if s.maxChars <= 0 {
		return turns
	}
	for len(turns) > 1 && renderedLen(turns) > s.maxChars {
		turns = turns[1:]
	}
	return turns
}

// Render formats turns as the model prompt. A user turn reads
// "User: {text}\nAssistant:" and an assistant turn is its raw text; turns
// are joined with newlines.
func Render(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeTurn(&b, t)
	}
	return b.String()
}

func writeTurn(b *strings.Builder, t Turn) {
	if t.Role == RoleUser {
		b.WriteString("User: ")
		b.WriteString(t.Text)
		b.WriteString("\nAssistant:")
		return
	}
	b.WriteString(t.Text)
}

func renderedLen(turns []Turn) int {
	n := 0
	for i, t := range turns {
		if i > 0 {
			n++
		}
		if t.Role == RoleUser {
			n += len("User: ") + len(t.Text) + len("\nAssistant:")
		} else {
			n += len(t.Text)
		}
	}
	return n
}
