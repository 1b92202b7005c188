package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

const minContentWords = 5

// Admission reject reasons, in rule order.
const (
	ReasonLowEngagement = "low engagement"
	ReasonShortContent  = "short content"
	ReasonTooOld        = "post too old"
	ReasonOffTopic      = "off topic"
)

// Decision is the outcome of admission filtering.
type Decision struct {
	Accepted bool
	Reason   string
}

func accept() Decision              { return Decision{Accepted: true} }
func reject(reason string) Decision { return Decision{Reason: reason} }

// EvaluateRules applies the deterministic admission rules in order,
// short-circuiting on the first failure. Pure function of (post,
// workspace, now); the optional relevance judgment lives on Filter.
func EvaluateRules(post domain.Post, ws domain.Workspace, now time.Time) Decision {
	if post.Likes < ws.EngagementFloor() {
		return reject(ReasonLowEngagement)
	}

	if WordCount(post.Content) < minContentWords {
		return reject(ReasonShortContent)
	}

	if maxAge := ws.MaxPostAge(); maxAge > 0 && post.Age(now) > maxAge {
		return reject(ReasonTooOld)
	}

	return accept()
}

// Filter runs the full admission contract including the optional
// language-model relevance check.
type Filter struct {
	completer ports.Completer
	logger    *slog.Logger
}

// NewFilter builds the admission filter. A nil completer disables the
// relevance rule.
func NewFilter(completer ports.Completer, logger *slog.Logger) *Filter {
	return &Filter{completer: completer, logger: logger}
}

type relevanceVerdict struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
}

// Evaluate decides admission for one post. The relevance check fails open:
// a collaborator error or an unreadable answer never rejects; only an
// explicit negative judgment does.
func (f *Filter) Evaluate(ctx context.Context, post domain.Post, ws domain.Workspace, now time.Time) Decision {
	decision := EvaluateRules(post, ws, now)
	if !decision.Accepted {
		return decision
	}

	if f == nil || f.completer == nil || ws.RelevancePrompt == "" {
		return decision
	}

	input := fmt.Sprintf("Subject: %s\n\nPost:\n%s", ws.Subject, PlainText(post.Content))
	answer, err := f.completer.Complete(ctx, ws.RelevancePrompt, input)
	if err != nil {
		f.debug("relevance check unavailable, admitting", "thread_id", post.ThreadID, "error", err)
		return decision
	}

	if explicitlyIrrelevant(answer) {
		return reject(ReasonOffTopic)
	}

	return decision
}

func explicitlyIrrelevant(answer string) bool {
	var verdict relevanceVerdict
	if err := json.Unmarshal([]byte(cleanJSON(answer)), &verdict); err == nil {
		return !verdict.Relevant
	}

	normalized := strings.ToLower(strings.TrimSpace(answer))
	return normalized == "no" || strings.Contains(normalized, "irrelevant")
}

func cleanJSON(answer string) string {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	return strings.TrimSpace(answer)
}

func (f *Filter) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
