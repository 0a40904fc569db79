package workflow

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/state"
)

// DefaultClarificationBound is how many clarification-style replies a
// single question tolerates before the engine records a bypass and
// moves on.
const DefaultClarificationBound = 3

// BypassedAnswer is the sentinel stored when a question is abandoned
// after the clarification bound is exhausted.
const BypassedAnswer = "[BYPASSED]"

var questionWords = map[string]bool{
	"what": true, "why": true, "how": true, "when": true, "where": true,
	"who": true, "which": true, "can": true, "could": true, "would": true,
	"should": true, "is": true, "are": true, "do": true, "does": true,
	"did": true,
}

var clarifyPhrases = []*regexp.Regexp{
	regexp.MustCompile(`what do(es)? (this|that|it) mean`),
	regexp.MustCompile(`i don'?t understand`),
	regexp.MustCompile(`can you (explain|clarify)`),
	regexp.MustCompile(`not sure what`),
	regexp.MustCompile(`please explain`),
	regexp.MustCompile(`^huh\b`),
	regexp.MustCompile(`unclear`),
	regexp.MustCompile(`confused`),
	regexp.MustCompile(`什么意思`),
	regexp.MustCompile(`不明白`),
	regexp.MustCompile(`不懂`),
	regexp.MustCompile(`请解释`),
}

var smartQuotes = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
)

func normalizeReply(text string) string {
	return strings.ToLower(strings.TrimSpace(smartQuotes.Replace(text)))
}

// IsClarificationRequest reports whether a reply looks like the human
// is asking about the question instead of answering it. Heuristic on
// purpose: short interrogatives and a fixed phrase list. Longer prose
// that happens to open with a question word is treated as an answer.
func IsClarificationRequest(text string) bool {
	norm := normalizeReply(text)
	if norm == "" {
		return false
	}
	words := strings.Fields(norm)
	first := strings.Trim(words[0], `.,!?'"`)

	if strings.Contains(norm, "?") {
		if questionWords[first] || len(words) <= 8 {
			return true
		}
	}
	if questionWords[first] && !strings.Contains(norm, "?") {
		if len(words) <= 12 && !strings.ContainsAny(norm, ":\n") &&
			!strings.HasPrefix(norm, "how we ") && !strings.HasPrefix(norm, "how our ") {
			return true
		}
	}
	for _, re := range clarifyPhrases {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}

// QuestionKey builds the clarification-counter key for a question in
// a given scope ("followup", "intake", "diagram").
func QuestionKey(scope, question string) string {
	return scope + "::" + question
}

// clarifier runs the bounded clarification protocol shared by every
// node that accepts free-text replies.
type clarifier struct {
	svc      llm.Service
	fallback *llm.Mock
	bound    int
	logger   *slog.Logger
}

// bump increments the counter for key and reports whether the bound
// is now exceeded, meaning the question should be bypassed.
func (c *clarifier) bump(cs *state.CaseState, key string) bool {
	cs.ClarificationCounts[key]++
	return cs.ClarificationCounts[key] > c.bound
}

// exhausted reports whether the counter already sits at the bound, so
// the next reply must be force-processed whatever it contains.
func (c *clarifier) exhausted(cs *state.CaseState, key string) bool {
	return cs.ClarificationCounts[key] >= c.bound
}

// explain appends a plainer restatement of the question to the
// transcript. A failed service call degrades to the deterministic
// template instead of erroring.
func (c *clarifier) explain(ctx context.Context, cs *state.CaseState, question, contextText string) {
	text, err := c.svc.Explain(ctx, question, contextText)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			c.logger.Warn("explain failed, using deterministic fallback",
				"case_id", cs.CaseID, "error", err)
		}
		text, _ = c.fallback.Explain(ctx, question, contextText)
	}
	cs.AppendMessage(state.RoleAssistant, text)
	cs.AppendAudit("clarification_provided", map[string]string{
		"question": preview(question),
	})
}
