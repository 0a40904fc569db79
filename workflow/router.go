package workflow

import "github.com/matrixor/tsg-officer/state"

const greeting = "Hello! I'm the TSG intake officer. I'll collect your submission details, " +
	"run a compliance checklist, and gather whatever follow-up evidence a reviewer needs."

// Router is the single entry point from a persisted phase to a node.
// Its only side effect is the one-time START transition: greeting,
// case_started audit event, phase set to INTAKE.
type Router struct{}

func (Router) Route(cs *state.CaseState) NodeName {
	switch cs.Phase {
	case state.PhaseStart:
		cs.AppendMessage(state.RoleAssistant, greeting)
		cs.AppendAudit("case_started", map[string]string{"case_id": cs.CaseID})
		cs.Phase = state.PhaseIntake
		return NodeIntake
	case state.PhaseIntake:
		return NodeIntake
	case state.PhaseChecklist:
		return NodeChecklist
	case state.PhaseNeedInfo:
		return NodeFollowup
	case state.PhaseDiagram:
		return NodeDiagram
	case state.PhaseReview:
		return NodeReview
	default:
		// DONE and anything unknown fall through to finalize, which
		// is idempotent.
		return NodeFinalize
	}
}
