package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/helpdesk/internal/domain"
	"github.com/ashureev/helpdesk/internal/ticket"
)

// Generation system prompts used by the ask-issue stage.
const (
	solutionPrompt = "You are an expert IT helpdesk agent. Analyze the user's issue and provide a clear, step-by-step solution. Do not ask for more information, just provide the best possible solution based on the problem described."
	summaryPrompt  = "You are an expert summarizer. Read the following IT issue and summarize it into a single, concise sentence (less than 15 words) that would be suitable for a ticket title."
)

// fallbackTicketTitle is used when issue summarization produced nothing usable.
const fallbackTicketTitle = "User issue - summary failed"

// handlerFunc advances a session by exactly one stage transition and returns
// the assistant reply for this turn. Handlers are total: they only depend on
// the session state and the incoming message, plus gateway output.
type handlerFunc func(ctx context.Context, session *domain.Session, message string) string

func (e *Engine) stageHandlers() map[domain.Stage]handlerFunc {
	return map[domain.Stage]handlerFunc{
		domain.StageAskName:         e.handleAskName,
		domain.StageAskEmail:        e.handleAskEmail,
		domain.StageAskIssue:        e.handleAskIssue,
		domain.StageConfirmSolution: e.handleConfirmSolution,
		domain.StageTicketCreated:   e.handleTicketCreated,
	}
}

func (e *Engine) handleAskName(_ context.Context, session *domain.Session, message string) string {
	session.User.Name = strings.TrimSpace(message)
	session.Stage = domain.StageAskEmail
	return fmt.Sprintf("Thanks, %s! Could you please provide your email?", session.User.Name)
}

func (e *Engine) handleAskEmail(_ context.Context, session *domain.Session, message string) string {
	session.User.Email = strings.TrimSpace(message)
	session.Stage = domain.StageAskIssue
	return "Great! Now, please describe your issue in detail."
}

func (e *Engine) handleAskIssue(ctx context.Context, session *domain.Session, message string) string {
	session.User.Issue = strings.TrimSpace(message)
	session.Stage = domain.StageConfirmSolution

	solution := e.completer.Complete(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: solutionPrompt},
		{Role: domain.RoleUser, Content: session.User.Issue},
	})

	// The summary has no data dependency on the solution; it is still issued
	// sequentially to keep gateway load and observed ordering unchanged.
	session.User.IssueSummary = e.completer.Complete(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: summaryPrompt},
		{Role: domain.RoleUser, Content: session.User.Issue},
	})

	return solution + "\n\nPlease let me know if this solves your issue."
}

func (e *Engine) handleConfirmSolution(ctx context.Context, session *domain.Session, message string) string {
	var reply string
	if e.classifier.ProblemSolved(ctx, message) {
		reply = "Excellent! I'm glad that solved it. I'll create a ticket to document this for our records."
	} else {
		reply = "I'm sorry to hear that didn't work. I will escalate this to a technician by creating a support ticket."
	}

	// Ticket creation is unconditional in this stage: a resolved issue is
	// documented, an unresolved one is escalated. Both paths file a ticket.
	title := session.User.IssueSummary
	if strings.TrimSpace(title) == "" {
		title = fallbackTicketTitle
	}
	description := fmt.Sprintf(
		"Issue reported by: %s (%s)\n\n---\n\nUSER'S DESCRIPTION:\n%s",
		session.User.Name, session.User.Email, session.User.Issue,
	)

	number := e.tickets.Create(ctx, title, description)
	if ticket.IsFailure(number) {
		reply += "\n\nUnfortunately, there was an error creating the ticket. Please contact IT support directly."
	} else {
		reply += fmt.Sprintf("\n\nYour ticket number is: **%s**.", number)
		session.TicketCreated = true
	}

	session.Stage = domain.StageTicketCreated
	return reply + "\n\nIs there anything else I can help you with today?"
}

func (e *Engine) handleTicketCreated(ctx context.Context, session *domain.Session, message string) string {
	if e.classifier.NewIssue(ctx, message) {
		session.Stage = domain.StageAskIssue
		session.User.Issue = ""
		session.User.IssueSummary = ""
		return "Okay, please describe your new issue."
	}
	return "Thank you for using the IT helpdesk. Have a great day!"
}
