package conversation

import (
	"context"
	"strings"

	"github.com/ashureev/helpdesk/internal/ai"
	"github.com/ashureev/helpdesk/internal/domain"
)

// Classification system prompts. The model is instructed to answer with a
// bare YES or NO; the parsing below tolerates anything else.
const (
	problemSolvedPrompt = "Analyze the user's message. Did they indicate their problem was solved? Respond with only 'YES' or 'NO'."
	newIssuePrompt      = "Analyze the user's message. Are they indicating they have a new, different issue? Respond with only 'YES' or 'NO'."
)

// Classifier answers yes/no questions about a user message through the
// completion gateway.
//
// Parsing policy: the gateway's reply counts as "yes" if and only if it
// contains the literal substring "YES" anywhere. Everything else, including
// garbled output and the gateway's own fallback text, counts as "no". The
// policy is intentionally loose; do not tighten it without changing the
// conversation contract.
type Classifier struct {
	completer ai.Completer
}

// NewClassifier creates a classifier backed by the given completer.
func NewClassifier(completer ai.Completer) *Classifier {
	return &Classifier{completer: completer}
}

// ProblemSolved reports whether the message indicates the problem was solved.
func (c *Classifier) ProblemSolved(ctx context.Context, message string) bool {
	return c.classify(ctx, problemSolvedPrompt, message)
}

// NewIssue reports whether the message describes a new, different issue.
func (c *Classifier) NewIssue(ctx context.Context, message string) bool {
	return c.classify(ctx, newIssuePrompt, message)
}

func (c *Classifier) classify(ctx context.Context, systemPrompt, message string) bool {
	reply := c.completer.Complete(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: message},
	})
	return strings.Contains(reply, "YES")
}
