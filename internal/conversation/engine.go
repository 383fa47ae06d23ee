// Package conversation implements the stage-based dialogue engine: per-turn
// orchestration, the stage handler table and the intent classifier.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/helpdesk/internal/ai"
	"github.com/ashureev/helpdesk/internal/domain"
	"github.com/ashureev/helpdesk/internal/store"
	"github.com/ashureev/helpdesk/internal/ticket"
)

// ErrMissingSessionID is returned when a turn arrives without a session ID.
// No session is created or mutated in that case.
var ErrMissingSessionID = errors.New("missing session ID")

// Engine orchestrates one conversation turn: load-or-create the session,
// run the current stage's handler, persist and return the reply.
type Engine struct {
	repo       store.Repository
	completer  ai.Completer
	tickets    ticket.Creator
	classifier *Classifier
	log        Logger
	handlers   map[domain.Stage]handlerFunc

	// sessionLocks serializes turns racing on the same session ID so two
	// concurrent requests cannot interleave load-mutate-save cycles.
	sessionLocks sync.Map // sessionID -> *sync.Mutex
}

// NewEngine creates a conversation engine. A nil logger disables turn logging.
func NewEngine(repo store.Repository, completer ai.Completer, tickets ticket.Creator, log Logger) *Engine {
	if log == nil {
		log = noopLogger{}
	}
	e := &Engine{
		repo:       repo,
		completer:  completer,
		tickets:    tickets,
		classifier: NewClassifier(completer),
		log:        log,
	}
	e.handlers = e.stageHandlers()
	return e
}

// HandleTurn processes one inbound turn and returns the assistant reply plus
// the full conversation transcript. hasMessage distinguishes an absent message
// (valid only on a session's very first contact) from an empty one; an absent
// message is not appended to history but the stage handler still runs with an
// empty value.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, message string, hasMessage bool) (string, []domain.Message, error) {
	if sessionID == "" {
		return "", nil, ErrMissingSessionID
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	session, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		session = domain.NewSession(sessionID)
	}

	if hasMessage {
		session.AppendUser(message)
		e.logTurn(session, domain.RoleUser, message)
	}

	handler, ok := e.handlers[session.Stage]
	if !ok {
		// Unknown stages can only come from a corrupted record; reset rather
		// than wedge the session forever.
		slog.Warn("Session carried an unknown stage, resetting", "session_id", sessionID, "stage", session.Stage)
		session.Stage = domain.StageAskName
		handler = e.handlers[domain.StageAskName]
	}

	stageBefore := session.Stage
	reply := handler(ctx, session, message)
	session.AppendAssistant(reply)
	e.logTurn(session, domain.RoleAssistant, reply)

	if err := e.repo.SaveSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("Turn processed",
		"session_id", sessionID,
		"stage_before", stageBefore,
		"stage_after", session.Stage,
		"history_len", len(session.History),
	)

	return reply, session.History, nil
}

// Lookup returns the stored session for read-only use, or (nil, nil) when
// the ID has never been seen.
func (e *Engine) Lookup(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	session, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (e *Engine) lockSession(sessionID string) func() {
	muAny, _ := e.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) logTurn(session *domain.Session, role, content string) {
	e.log.Log(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: session.ID,
		Stage:     string(session.Stage),
		Role:      role,
		Content:   content,
	})
}
