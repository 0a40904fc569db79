package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CategoryLabels are the canonical AI governance categories a submission can
// be classified into. A submission may carry more than one.
var CategoryLabels = []string{
	"Consumer of Internal AI",
	"Consumer of External AI",
	"Internal AI Builder",
}

const classifySystem = `You are a compliance intake classifier. Respond with a single JSON object and nothing else.`

// classifyPrompt builds the classification request.
func classifyPrompt(text string) []Message {
	prompt := fmt.Sprintf(`Classify the following submission into one or more of these categories:
%s

Also assign an application_type identifier (snake_case), e.g. "internal_ai_builder", "building_permit", or "tsg_general" if nothing fits.

Respond with JSON:
{"application_type": "...", "labels": ["..."], "confidence": 0.0, "rationale": "..."}

Submission:
%s`, "- "+strings.Join(CategoryLabels, "\n- "), text)

	return []Message{
		{Role: "system", Content: classifySystem},
		{Role: "user", Content: prompt},
	}
}

const evaluateSystem = `You are a compliance checklist evaluator. Judge each rule strictly against the evidence provided. Respond with a single JSON object and nothing else.`

// evaluatePrompt builds the checklist evaluation request.
func evaluatePrompt(req EvaluateRequest) ([]Message, error) {
	rulesJSON, err := json.MarshalIndent(req.Rules, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}

	prompt := fmt.Sprintf(`Evaluate the submission evidence against each rule below.

For every rule emit a checklist item:
{"rule_id": "...", "title": "...", "status": "PASS|FAIL|NA|UNKNOWN", "severity": "BLOCKER|WARN|INFO", "confidence": 0.0, "evidence": [{"excerpt": "..."}], "missing": ["..."], "rationale": "..."}

Use UNKNOWN when the evidence neither confirms nor denies the rule. Quote evidence excerpts verbatim from the text.

Respond with JSON:
{"overall_recommendation": "APPROVE|CONDITIONAL_APPROVE|REJECT|NEED_INFO", "summary": "...", "checklist": [...], "blocking_issues": ["..."], "followup_questions": ["..."]}

Rules:
%s

Categories: %s

Evidence:
%s`, rulesJSON, strings.Join(req.Categories, ", "), req.EvidenceText)

	return []Message{
		{Role: "system", Content: evaluateSystem},
		{Role: "user", Content: prompt},
	}, nil
}

const flowchartSystem = `You are a process analyst. Respond with a single JSON object and nothing else.`

// flowchartPrompt builds the diagram synthesis request.
func flowchartPrompt(description string) []Message {
	prompt := fmt.Sprintf(`Turn this process description into a Mermaid flowchart (flowchart TD).

Respond with JSON:
{"diagram_source": "flowchart TD\n  ...", "title": "...", "assumptions": ["..."], "open_questions": ["..."]}

Process description:
%s`, description)

	return []Message{
		{Role: "system", Content: flowchartSystem},
		{Role: "user", Content: prompt},
	}
}

// explainPrompt builds the clarification rewrite request.
func explainPrompt(question, contextText string) []Message {
	prompt := fmt.Sprintf(`A submitter did not understand the question below. Rewrite it in plainer words, in at most two sentences, and give one concrete example of a valid answer. Do not change what is being asked.

Question: %s

Context: %s`, question, contextText)

	return []Message{
		{Role: "user", Content: prompt},
	}
}

// summarizePrompt builds the audit narration request.
func summarizePrompt(req SummarizeRequest) []Message {
	prompt := fmt.Sprintf(`Summarize this workflow step in one short sentence for an audit trail.

Step: %s
Question: %s
Answer: %s
Context: %s`, req.StepName, req.Question, req.Answer, req.Context)

	return []Message{
		{Role: "user", Content: prompt},
	}
}
