package conversation

import (
	"context"
	"testing"

	"github.com/ashureev/helpdesk/internal/ai"
	"github.com/ashureev/helpdesk/internal/domain"
)

type fixedCompleter struct {
	reply  string
	lastIn []domain.Message
}

func (f *fixedCompleter) Complete(_ context.Context, messages []domain.Message) string {
	f.lastIn = messages
	return f.reply
}

func TestClassifierYesSubstringPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"bare yes", "YES", true},
		{"yes embedded in prose", "Absolutely, YES it was solved.", true},
		{"lowercase does not count", "yes", false},
		{"bare no", "NO", false},
		{"apologetic fallback counts as no", ai.FallbackErrorReply, false},
		{"empty reply counts as no", "", false},
		{"garbled output counts as no", "Y E S maybe?", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			classifier := NewClassifier(&fixedCompleter{reply: tt.reply})
			if got := classifier.ProblemSolved(context.Background(), "whatever"); got != tt.want {
				t.Errorf("ProblemSolved with reply %q = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestClassifierSendsSystemAndUserMessages(t *testing.T) {
	t.Parallel()

	completer := &fixedCompleter{reply: "NO"}
	classifier := NewClassifier(completer)
	classifier.NewIssue(context.Background(), "my printer broke now")

	if len(completer.lastIn) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(completer.lastIn))
	}
	if completer.lastIn[0].Role != domain.RoleSystem || completer.lastIn[0].Content != newIssuePrompt {
		t.Errorf("Unexpected system message: %+v", completer.lastIn[0])
	}
	if completer.lastIn[1].Role != domain.RoleUser || completer.lastIn[1].Content != "my printer broke now" {
		t.Errorf("Unexpected user message: %+v", completer.lastIn[1])
	}
}
