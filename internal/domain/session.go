// Package domain contains core domain types for the helpdesk assistant.
package domain

import (
	"time"
)

// Stage identifies the current step of the guided conversation.
type Stage string

const (
	// StageAskName collects the user's name.
	StageAskName Stage = "ask_name"
	// StageAskEmail collects the user's email address.
	StageAskEmail Stage = "ask_email"
	// StageAskIssue collects the issue description and produces a suggested fix.
	StageAskIssue Stage = "ask_issue"
	// StageConfirmSolution checks whether the suggestion resolved the issue and files a ticket.
	StageConfirmSolution Stage = "confirm_solution"
	// StageTicketCreated closes out the conversation or loops back for a new issue.
	StageTicketCreated Stage = "ticket_created"
)

// Message roles as they appear on the wire and in completion requests.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Greeting is the assistant message seeded into every new session's history.
const Greeting = "Hello! I'm a virtual IT assistant. To start, what is your name?"

// Message is a single conversation entry. Immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Profile holds the identifying and diagnostic details collected stage by stage.
type Profile struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Issue        string `json:"issue,omitempty"`
	IssueSummary string `json:"issue_summary,omitempty"`
}

// Session is the per-conversation state keyed by an externally supplied ID.
type Session struct {
	ID            string    `json:"session_id"`
	Stage         Stage     `json:"stage"`
	History       []Message `json:"history"`
	User          Profile   `json:"user"`
	TicketCreated bool      `json:"ticket_created"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSession creates a fresh session seeded with the greeting so the first
// real user message is not spent on an empty introduction turn.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Stage:     StageAskName,
		History:   []Message{{Role: RoleAssistant, Content: Greeting}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendUser appends a user message to the history.
func (s *Session) AppendUser(content string) {
	s.History = append(s.History, Message{Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant message to the history.
func (s *Session) AppendAssistant(content string) {
	s.History = append(s.History, Message{Role: RoleAssistant, Content: content})
}

// Clone returns a deep copy so repository callers cannot alias stored state.
func (s *Session) Clone() *Session {
	cp := *s
	cp.History = make([]Message, len(s.History))
	copy(cp.History, s.History)
	return &cp
}
