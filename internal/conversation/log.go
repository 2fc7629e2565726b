// Package conversation holds the ordered turn log shown to display consumers.
package conversation

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxSuggestions caps the follow-up suggestions carried by one turn.
const MaxSuggestions = 3

// Turn is one entry in the conversation log.
type Turn struct {
	Role        Role      `json:"role"`
	Text        string    `json:"text"`
	Suggestions []string  `json:"suggestions,omitempty"`
	At          time.Time `json:"at"`
}

// UserTurn builds a user turn stamped with the current time.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, At: time.Now()}
}

// AssistantTurn builds an assistant turn. Suggestions beyond MaxSuggestions
// are dropped.
func AssistantTurn(text string, suggestions []string) Turn {
	return Turn{Role: RoleAssistant, Text: text, Suggestions: capSuggestions(suggestions), At: time.Now()}
}

func capSuggestions(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	if len(s) > MaxSuggestions {
		s = s[:MaxSuggestions]
	}
	return append([]string(nil), s...)
}

func (t Turn) clone() Turn {
	t.Suggestions = capSuggestions(t.Suggestions)
	return t
}

// Log is an append-only, ordered sequence of turns. The only way to remove
// turns is Reset. Safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewLog returns a log holding a single assistant greeting.
func NewLog(greeting string) *Log {
	l := &Log{}
	l.Reset(greeting)
	return l
}

// Append adds t to the end of the log.
func (l *Log) Append(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	l.mu.Lock()
	l.turns = append(l.turns, t.clone())
	l.mu.Unlock()
}

// Turns returns a copy of every turn in order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyTurns(l.turns)
}

// Window returns a copy of the last n turns. n <= 0 means all of them.
func (l *Log) Window(n int) []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n >= len(l.turns) {
		return copyTurns(l.turns)
	}
	return copyTurns(l.turns[len(l.turns)-n:])
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Last returns the newest turn, or false when the log is empty.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1].clone(), true
}

// Reset drops every turn and starts over with one assistant greeting.
// An empty greeting leaves the log empty.
func (l *Log) Reset(greeting string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = l.turns[:0:0]
	if greeting != "" {
		l.turns = append(l.turns, AssistantTurn(greeting, nil))
	}
}

func copyTurns(src []Turn) []Turn {
	out := make([]Turn, len(src))
	for i, t := range src {
		out[i] = t.clone()
	}
	return out
}
