package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"TrendPress/internal/domain"
)

func testWorkspace() domain.Workspace {
	return domain.Workspace{
		ID:              "ws-1",
		Subject:         "electric vehicles",
		MinLikes:        300,
		MaxPostAgeHours: 48,
	}
}

func makePost(threadID string, likes int, content string, observedAt time.Time) domain.Post {
	return domain.Post{
		WorkspaceID: "ws-1",
		Account:     "acct",
		ThreadID:    threadID,
		Content:     content,
		Likes:       likes,
		ObservedAt:  observedAt,
	}
}

func TestEvaluateRulesAccepts(t *testing.T) {
	t.Parallel()

	now := time.Now()
	post := makePost("t-1", 450, strings.Repeat("word ", 80), now.Add(-2*time.Hour))

	decision := EvaluateRules(post, testWorkspace(), now)
	if !decision.Accepted {
		t.Fatalf("expected accept, got reject: %s", decision.Reason)
	}
}

func TestEvaluateRulesLowEngagement(t *testing.T) {
	t.Parallel()

	now := time.Now()
	post := makePost("t-2", 120, strings.Repeat("word ", 80), now.Add(-2*time.Hour))

	decision := EvaluateRules(post, testWorkspace(), now)
	if decision.Accepted {
		t.Fatal("expected reject")
	}
	if decision.Reason != ReasonLowEngagement {
		t.Fatalf("unexpected reason: %s", decision.Reason)
	}
}

func TestEvaluateRulesShortContent(t *testing.T) {
	t.Parallel()

	now := time.Now()
	post := makePost("t-3", 500, "too short", now.Add(-time.Hour))

	decision := EvaluateRules(post, testWorkspace(), now)
	if decision.Reason != ReasonShortContent {
		t.Fatalf("unexpected reason: %s", decision.Reason)
	}
}

func TestEvaluateRulesTooOld(t *testing.T) {
	t.Parallel()

	now := time.Now()
	post := makePost("t-4", 500, strings.Repeat("word ", 20), now.Add(-72*time.Hour))

	decision := EvaluateRules(post, testWorkspace(), now)
	if decision.Reason != ReasonTooOld {
		t.Fatalf("unexpected reason: %s", decision.Reason)
	}
}

func TestEvaluateRulesUnboundedAge(t *testing.T) {
	t.Parallel()

	ws := testWorkspace()
	ws.MaxPostAgeHours = 0

	now := time.Now()
	post := makePost("t-5", 500, strings.Repeat("word ", 20), now.Add(-30*24*time.Hour))

	decision := EvaluateRules(post, ws, now)
	if !decision.Accepted {
		t.Fatalf("expected accept with unbounded age, got %s", decision.Reason)
	}
}

type completerFunc func(ctx context.Context, prompt, input string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt, input string) (string, error) {
	return f(ctx, prompt, input)
}

func TestFilterRejectsExplicitIrrelevant(t *testing.T) {
	t.Parallel()

	ws := testWorkspace()
	ws.RelevancePrompt = "judge relevance"

	filter := NewFilter(completerFunc(func(ctx context.Context, prompt, input string) (string, error) {
		return `{"relevant": false, "reason": "about cooking"}`, nil
	}), nil)

	now := time.Now()
	post := makePost("t-6", 500, strings.Repeat("word ", 20), now.Add(-time.Hour))

	decision := filter.Evaluate(context.Background(), post, ws, now)
	if decision.Accepted {
		t.Fatal("expected off-topic reject")
	}
	if decision.Reason != ReasonOffTopic {
		t.Fatalf("unexpected reason: %s", decision.Reason)
	}
}

func TestFilterFailsOpenOnCompleterError(t *testing.T) {
	t.Parallel()

	ws := testWorkspace()
	ws.RelevancePrompt = "judge relevance"

	filter := NewFilter(completerFunc(func(ctx context.Context, prompt, input string) (string, error) {
		return "", fmt.Errorf("rate limited")
	}), nil)

	now := time.Now()
	post := makePost("t-7", 500, strings.Repeat("word ", 20), now.Add(-time.Hour))

	decision := filter.Evaluate(context.Background(), post, ws, now)
	if !decision.Accepted {
		t.Fatalf("expected fail-open accept, got %s", decision.Reason)
	}
}

func TestFilterFailsOpenOnUnreadableAnswer(t *testing.T) {
	t.Parallel()

	ws := testWorkspace()
	ws.RelevancePrompt = "judge relevance"

	filter := NewFilter(completerFunc(func(ctx context.Context, prompt, input string) (string, error) {
		return "I am not sure what you mean.", nil
	}), nil)

	now := time.Now()
	post := makePost("t-8", 500, strings.Repeat("word ", 20), now.Add(-time.Hour))

	decision := filter.Evaluate(context.Background(), post, ws, now)
	if !decision.Accepted {
		t.Fatalf("expected fail-open accept, got %s", decision.Reason)
	}
}

func TestFilterCodeFencedVerdict(t *testing.T) {
	t.Parallel()

	ws := testWorkspace()
	ws.RelevancePrompt = "judge relevance"

	filter := NewFilter(completerFunc(func(ctx context.Context, prompt, input string) (string, error) {
		return "```json\n{\"relevant\": false}\n```", nil
	}), nil)

	now := time.Now()
	post := makePost("t-9", 500, strings.Repeat("word ", 20), now.Add(-time.Hour))

	decision := filter.Evaluate(context.Background(), post, ws, now)
	if decision.Reason != ReasonOffTopic {
		t.Fatalf("unexpected reason: %s", decision.Reason)
	}
}

func TestFilterNilCompleterSkipsRelevance(t *testing.T) {
	t.Parallel()

	ws := testWorkspace()
	ws.RelevancePrompt = "judge relevance"

	filter := NewFilter(nil, nil)

	now := time.Now()
	post := makePost("t-10", 500, strings.Repeat("word ", 20), now.Add(-time.Hour))

	decision := filter.Evaluate(context.Background(), post, ws, now)
	if !decision.Accepted {
		t.Fatalf("expected accept without completer, got %s", decision.Reason)
	}
}
