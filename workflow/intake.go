package workflow

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/state"
)

// fieldHelp is the question and hint shown when an intake field is
// missing.
type fieldHelp struct {
	question string
	hint     string
}

var intakeFieldHelp = map[string]fieldHelp{
	"submission_text": {
		question: "Please describe your application or submission in a few sentences.",
		hint:     "Include what the system does, who uses it, and any AI components involved.",
	},
	"applicant_name": {
		question: "What is the applicant's full name?",
		hint:     "The person or organization filing this application.",
	},
	"address": {
		question: "What is the project address?",
		hint:     "Street address of the property or site.",
	},
	"apn": {
		question: "What is the Assessor's Parcel Number (APN)?",
		hint:     "Found on the property tax statement, e.g. 123-456-789.",
	},
	"bsn": {
		question: "What is the Building Services Number (BSN), if one exists?",
		hint:     "Reply N/A if no BSN has been issued yet.",
	},
	"scope_of_work": {
		question: "Briefly describe the scope of work.",
		hint:     "What is being built, altered, or demolished.",
	},
	"needs_flowchart": {
		question: "Does this process need a flowchart or diagram on record? (yes/no)",
		hint:     "Reply yes or no.",
	},
}

// defaultRequiredFieldsByType lists extra intake fields beyond the base
// submission text. Types not listed require only the submission. The
// table is overridable through workflow.required_fields config.
var defaultRequiredFieldsByType = map[string][]string{
	"building_permit": {"applicant_name", "address", "apn", "scope_of_work", "needs_flowchart"},
}

const baseRequiredField = "submission_text"

// IntakeNode collects required fields one question at a time and
// classifies the submission once its description is available.
type IntakeNode struct {
	svc      llm.Service
	fallback *llm.Mock
	parser   FieldParser
	clar     *clarifier
	required map[string][]string
	logger   *slog.Logger
}

func (*IntakeNode) Name() NodeName { return NodeIntake }

func (n *IntakeNode) Run(ctx context.Context, cs *state.CaseState, ans *Answer) (Outcome, error) {
	if ans != nil && len(cs.MissingFields) > 0 {
		if out, suspended := n.handleAnswer(ctx, cs, ans.Value); suspended {
			return out, nil
		}
	}

	if strings.TrimSpace(cs.IntakeFields[baseRequiredField]) != "" && len(cs.CategoryLabels) == 0 {
		n.classify(ctx, cs)
	}

	cs.RequiredFields = n.requiredFieldsFor(cs.ApplicationType)
	cs.RecomputeMissingFields()

	if len(cs.MissingFields) > 0 {
		return SuspendWith(intakeQuestion(cs.MissingFields[0])), nil
	}

	cs.Phase = state.PhaseChecklist
	cs.AppendAudit("intake_complete", map[string]string{
		"application_type": cs.ApplicationType,
		"categories":       strings.Join(cs.CategoryLabels, ", "),
	})
	return AdvanceTo(NodeChecklist), nil
}

// handleAnswer fills the first missing field from the reply, routing
// clarification-style replies through the bounded explain loop. The
// second return is true when the node must suspend again.
func (n *IntakeNode) handleAnswer(ctx context.Context, cs *state.CaseState, reply string) (Outcome, bool) {
	field := cs.MissingFields[0]

	if strings.TrimSpace(reply) == "" {
		return SuspendWith(intakeQuestion(field)), true
	}

	help := intakeFieldHelp[field]
	if IsClarificationRequest(reply) {
		key := QuestionKey("intake", field)
		if bypass := n.clar.bump(cs, key); !bypass {
			n.clar.explain(ctx, cs, help.question, "Intake field: "+field)
			return SuspendWith(intakeQuestion(field)), true
		}
		reply = BypassedAnswer
		cs.AppendAudit("intake_field_bypassed", map[string]string{
			"field": field, "attempts": itoa(cs.ClarificationCounts[key]),
		})
	}

	cs.IntakeFields[field] = reply
	cs.AppendAudit("intake_field_collected", map[string]string{
		"field": field, "value": preview(reply),
	})

	// A single reply may also carry labelled fields or an explicit
	// category choice; explicit mentions win over classification.
	parsed := n.parser.Parse(reply)
	for f, v := range parsed.Fields {
		if f == field || strings.TrimSpace(cs.IntakeFields[f]) != "" {
			continue
		}
		cs.IntakeFields[f] = v
		cs.AppendAudit("intake_field_collected", map[string]string{
			"field": f, "value": preview(v), "source": "parsed",
		})
	}
	if len(parsed.Categories) > 0 {
		cs.CategoryLabels = parsed.Categories
		if cs.ApplicationType == "" {
			cs.ApplicationType = typeForLabel(parsed.Categories[0])
		}
		cs.AppendAudit("intake_classified", map[string]string{
			"categories": strings.Join(parsed.Categories, ", "), "source": "explicit",
		})
	}
	cs.RecomputeMissingFields()
	return Outcome{}, false
}

// classify assigns category labels from the submission text, falling
// back to the deterministic mock when the service call fails.
func (n *IntakeNode) classify(ctx context.Context, cs *state.CaseState) {
	text := cs.IntakeFields[baseRequiredField]
	cls, err := n.svc.Classify(ctx, text)
	if err != nil {
		n.logger.Warn("classification failed, using deterministic fallback",
			"case_id", cs.CaseID, "error", err)
		cls, _ = n.fallback.Classify(ctx, text)
	}

	cs.ApplicationType = cls.ApplicationType
	cs.CategoryLabels = dedupeLabels(cls.Labels)
	cs.ClassificationReasoning = cls.Rationale
	cs.AppendAudit("intake_classified", map[string]string{
		"application_type": cls.ApplicationType,
		"categories":       strings.Join(cs.CategoryLabels, ", "),
	})
}

func intakeQuestion(field string) *PendingQuestion {
	help, ok := intakeFieldHelp[field]
	if !ok {
		help = fieldHelp{question: "Please provide a value for: " + field}
	}
	return &PendingQuestion{
		Type:         QuestionIntakeField,
		QuestionText: help.question,
		Hint:         help.hint,
		Field:        field,
	}
}

func (n *IntakeNode) requiredFieldsFor(applicationType string) []string {
	table := n.required
	if table == nil {
		table = defaultRequiredFieldsByType
	}
	req := []string{baseRequiredField}
	return append(req, table[applicationType]...)
}

// typeForLabel derives a snake_case application type from a category
// label named explicitly by the submitter.
func typeForLabel(label string) string {
	switch label {
	case "Internal AI Builder":
		return "internal_ai_builder"
	case "Consumer of External AI":
		return "external_ai_consumer"
	case "Consumer of Internal AI":
		return "internal_ai_consumer"
	default:
		return strings.ReplaceAll(strings.ToLower(label), " ", "_")
	}
}

func dedupeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
