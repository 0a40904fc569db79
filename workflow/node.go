// Package workflow implements the case engine: a phase-driven state
// machine that moves a compliance case from intake through checklist
// evaluation, follow-up questions, diagram capture, and reviewer
// decision. Nodes run until one suspends with a question for a human
// or the case reaches its terminal phase; state is checkpointed at
// every suspension so a case survives process restarts.
package workflow

import (
	"context"

	"github.com/matrixor/tsg-officer/state"
)

// NodeName identifies a workflow node. The set is closed: transitions
// carry a NodeName, never a free-form string.
type NodeName string

const (
	NodeIntake    NodeName = "intake"
	NodeChecklist NodeName = "checklist"
	NodeFollowup  NodeName = "followup"
	NodeDiagram   NodeName = "diagram"
	NodeReview    NodeName = "review"
	NodeFinalize  NodeName = "finalize"
)

// QuestionType tells the caller what kind of input a pending question
// expects, so a UI can render an appropriate control.
type QuestionType string

const (
	QuestionIntakeField        QuestionType = "intake_field"
	QuestionFollowup           QuestionType = "followup"
	QuestionDiagramMode        QuestionType = "diagram_mode"
	QuestionDiagramDescription QuestionType = "diagram_description"
	QuestionDiagramConfirm     QuestionType = "diagram_confirm"
	QuestionReviewDecision     QuestionType = "review_decision"
)

// PendingQuestion is the single outstanding question when the engine
// suspends. Field is set for intake questions, Index for follow-ups.
type PendingQuestion struct {
	Type         QuestionType `json:"type"`
	QuestionText string       `json:"question_text"`
	Hint         string       `json:"hint,omitempty"`
	Field        string       `json:"field,omitempty"`
	Index        int          `json:"index,omitempty"`
}

// Answer carries the human reply delivered on resume. Upload is set
// when the reply is a diagram file rather than text. Documents attach
// extracted evidence text that feeds later checklist passes. Messages
// are extra free-form notes to append to the transcript before the
// answer is processed.
type Answer struct {
	Value     string             `json:"answer"`
	Upload    *state.DiagramFile `json:"upload,omitempty"`
	Documents []state.Document   `json:"documents,omitempty"`
	Messages  []string           `json:"messages,omitempty"`
}

// Outcome is the result of one node run. Exactly one of the three
// shapes applies: suspend with a question, advance to the named node,
// or stop because the case is terminal.
type Outcome struct {
	Suspend  *PendingQuestion
	Next     NodeName
	Terminal bool
}

// SuspendWith builds a suspension outcome.
func SuspendWith(q *PendingQuestion) Outcome { return Outcome{Suspend: q} }

// AdvanceTo builds a transition outcome. The node must have already
// set the case phase to match the destination.
func AdvanceTo(next NodeName) Outcome { return Outcome{Next: next} }

// Stop builds a terminal outcome.
func Stop() Outcome { return Outcome{Terminal: true} }

// Node is one step of the workflow. Run receives the answer only on
// the first node invocation after a resume; in-turn transitions pass
// nil. Nodes mutate the case state in place and report where control
// goes next.
type Node interface {
	Name() NodeName
	Run(ctx context.Context, cs *state.CaseState, ans *Answer) (Outcome, error)
}
