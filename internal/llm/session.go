package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// historyWindow is how many of the most recent entries are considered for a request
const historyWindow = 20

const previewLength = 100

// Turn is one recorded turn of a Session
type Turn struct {
	Timestamp time.Time
	Role      Role
	Content   string
}

// Session is a conversation with a single Invoker. Failed calls are recorded as
// system entries so they show up in the history but are never sent back to the model.
type Session struct {
	invoker Invoker
	system  string
	entries []Turn
	now     func() time.Time
}

// NewSession starts an empty conversation
func NewSession(invoker Invoker, system string) *Session {
	return &Session{
		invoker: invoker,
		system:  system,
		now:     time.Now,
	}
}

// SetSystem replaces the system prompt used for subsequent requests
func (s *Session) SetSystem(system string) {
	s.system = system
}

// Send records text as a user turn, asks the model and records its reply.
// image, if non-nil, is attached to this turn only.
func (s *Session) Send(ctx context.Context, text string, image *Image) (string, error) {
	s.add(RoleUser, text)

	req := Request{
		System:   s.system,
		Messages: s.window(),
		Image:    image,
	}

	reply, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		s.add(RoleSystem, fmt.Sprintf("error: %s", UserMessage(err)))
		return "", err
	}

	s.add(RoleAssistant, reply)
	return reply, nil
}

// History returns a copy of every recorded entry
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear forgets the conversation
func (s *Session) Clear() {
	s.entries = nil
}

// FormatHistory renders the history for display. Long contents are truncated.
func (s *Session) FormatHistory() string {
	if len(s.entries) == 0 {
		return "No history yet."
	}

	var b strings.Builder
	b.WriteString("=== Conversation history ===\n")
	for i, e := range s.entries {
		content := e.Content
		if r := []rune(content); len(r) > previewLength {
			content = string(r[:previewLength]) + "..."
		}
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, e.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "role: %s\n", e.Role)
		fmt.Fprintf(&b, "content: %s\n", content)
		b.WriteString(strings.Repeat("-", 40) + "\n")
	}
	return b.String()
}

func (s *Session) add(role Role, content string) {
	s.entries = append(s.entries, Turn{Timestamp: s.now(), Role: role, Content: content})
}

// window returns the user and assistant turns among the most recent entries.
// Leading assistant turns are dropped so the conversation starts with the user.
func (s *Session) window() []Message {
	recent := s.entries
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	msgs := make([]Message, 0, len(recent))
	for _, e := range recent {
		if e.Role == RoleSystem {
			continue
		}
		if len(msgs) == 0 && e.Role != RoleUser {
			continue
		}
		msgs = append(msgs, Message{Role: e.Role, Content: e.Content})
	}
	return msgs
}
