// Package session holds the in-memory conversation model: messages, their
// cited sources, and the append-only store backing one conversation view.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ScoreType distinguishes which scoring pass produced a source's score.
// Display-only; it changes the label, never the value.
type ScoreType string

const (
	ScoreRerank    ScoreType = "rerank"
	ScoreRelevance ScoreType = "relevance"
)

func (t ScoreType) Label() string {
	if t == ScoreRerank {
		return "Rerank"
	}
	return "Relevance"
}

// Source is one cited evidence chunk attached to a bot answer. Sources are
// immutable once attached and belong to exactly one message.
type Source struct {
	Title          string
	URL            string
	Score          float64
	ScoreType      ScoreType
	ContentPreview string
}

// Message is a single conversation turn.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Sources   []Source
	Err       bool
	CreatedAt time.Time

	// SourcesExpanded is view state, meaningful only when Sources is
	// non-empty. Toggled through Store.ToggleSources.
	SourcesExpanded bool
}

func (m Message) HasSources() bool {
	return len(m.Sources) > 0
}

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func NewBotMessage(content string, sources []Source) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleBot,
		Content:   content,
		Sources:   sources,
		CreatedAt: time.Now(),
	}
}

func NewErrorMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleBot,
		Content:   content,
		Err:       true,
		CreatedAt: time.Now(),
	}
}

var (
	ErrNoSuchMessage = errors.New("no message with that id")
	ErrNoSources     = errors.New("message has no sources")
)

// Store is the append-only ordered log of messages for one conversation.
// It lives for the duration of the view and is never persisted. All methods
// must be called from the owning event loop; the store does no locking of
// its own.
type Store struct {
	messages []Message
}

func NewStore() *Store {
	return &Store{}
}

// Append adds a message to the end of the log. Insertion order is
// conversation order; entries are never reordered.
func (s *Store) Append(m Message) {
	s.messages = append(s.messages, m)
}

func (s *Store) Len() int {
	return len(s.messages)
}

// Message returns the message with the given id, if present.
func (s *Store) Message(id string) (Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Last returns the most recently appended message.
func (s *Store) Last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// ToggleSources flips the source-list visibility of the addressed message.
// Addressing a missing message or one without sources is a reported logic
// error and leaves the log untouched.
func (s *Store) ToggleSources(id string) error {
	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if !s.messages[i].HasSources() {
			return ErrNoSources
		}
		s.messages[i].SourcesExpanded = !s.messages[i].SourcesExpanded
		return nil
	}
	return ErrNoSuchMessage
}

// Snapshot returns a copy of the ordered log for rendering. Mutating the
// returned slice does not affect the store.
func (s *Store) Snapshot() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	for i := range out {
		if len(out[i].Sources) == 0 {
			continue
		}
		srcs := make([]Source, len(out[i].Sources))
		copy(srcs, out[i].Sources)
		out[i].Sources = srcs
	}
	return out
}
