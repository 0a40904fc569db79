package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/matrixor/tsg-officer/checkpoint"
	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/state"
)

// maxTransitionsPerTurn bounds in-turn node transitions. A healthy
// turn needs at most a handful; hitting the cap means a routing bug,
// and failing beats spinning.
const maxTransitionsPerTurn = 16

var (
	// ErrCaseExists is returned by Start for an identifier already on
	// record.
	ErrCaseExists = errors.New("case already exists")
	// ErrCaseNotFound is returned by Resume and the read operations
	// for an unknown case.
	ErrCaseNotFound = errors.New("case not found")
)

// EngineResult is what one engine invocation hands back: the new
// transcript entries, the question the case is waiting on (nil when
// terminal), and the phase after the turn.
type EngineResult struct {
	CaseID          string              `json:"case_id"`
	TranscriptDelta []state.ChatMessage `json:"transcript_delta"`
	PendingQuestion *PendingQuestion    `json:"pending_question,omitempty"`
	Phase           state.Phase         `json:"phase"`
	Terminal        bool                `json:"terminal"`
}

// Engine drives cases through the workflow. Each invocation loads the
// case from the checkpoint store, runs nodes until one suspends or the
// case ends, and saves exactly once. Invocations against the same case
// are serialized; different cases run concurrently.
type Engine struct {
	store  checkpoint.Store
	router Router
	nodes  map[NodeName]Node
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type engineConfig struct {
	logger             *slog.Logger
	clarificationBound int
	maxFollowups       int
	diagramCategories  []string
	requiredFields     map[string][]string
	parser             FieldParser
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(cfg *engineConfig) { cfg.logger = logger }
}

// WithClarificationBound overrides how many clarification replies a
// question tolerates before bypass.
func WithClarificationBound(n int) EngineOption {
	return func(cfg *engineConfig) {
		if n > 0 {
			cfg.clarificationBound = n
		}
	}
}

// WithMaxSynthesizedFollowups caps follow-up questions derived from
// unresolved checklist items.
func WithMaxSynthesizedFollowups(n int) EngineOption {
	return func(cfg *engineConfig) {
		if n > 0 {
			cfg.maxFollowups = n
		}
	}
}

// WithDiagramCategories names category labels whose cases always need
// a diagram on record.
func WithDiagramCategories(labels []string) EngineOption {
	return func(cfg *engineConfig) { cfg.diagramCategories = labels }
}

// WithRequiredFields overrides the intake fields required per
// application type, beyond the submission text itself.
func WithRequiredFields(byType map[string][]string) EngineOption {
	return func(cfg *engineConfig) {
		if len(byType) > 0 {
			cfg.requiredFields = byType
		}
	}
}

// WithFieldParser swaps the light intake parser.
func WithFieldParser(p FieldParser) EngineOption {
	return func(cfg *engineConfig) {
		if p != nil {
			cfg.parser = p
		}
	}
}

// NewEngine wires the workflow nodes with their dependencies.
func NewEngine(svc llm.Service, repo rules.Repository, store checkpoint.Store, opts ...EngineOption) *Engine {
	cfg := engineConfig{
		logger:             slog.Default(),
		clarificationBound: DefaultClarificationBound,
		maxFollowups:       DefaultMaxSynthesizedFollowups,
		requiredFields:     defaultRequiredFieldsByType,
		parser:             RegexFieldParser{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fallback := llm.NewMock()
	clar := &clarifier{svc: svc, fallback: fallback, bound: cfg.clarificationBound, logger: cfg.logger}
	diagramCats := make(map[string]bool, len(cfg.diagramCategories))
	for _, label := range cfg.diagramCategories {
		diagramCats[label] = true
	}

	nodes := []Node{
		&IntakeNode{svc: svc, fallback: fallback, parser: cfg.parser, clar: clar, required: cfg.requiredFields, logger: cfg.logger},
		&ChecklistNode{svc: svc, fallback: fallback, repo: repo, maxFollowups: cfg.maxFollowups, diagramCategories: diagramCats, logger: cfg.logger},
		&FollowupNode{svc: svc, fallback: fallback, clar: clar, logger: cfg.logger},
		&DiagramNode{svc: svc, fallback: fallback, logger: cfg.logger},
		&ReviewNode{logger: cfg.logger},
		&FinalizeNode{logger: cfg.logger},
	}
	byName := make(map[NodeName]Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name()] = n
	}

	return &Engine{
		store:  store,
		nodes:  byName,
		logger: cfg.logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Start creates a new case and runs it to its first suspension. An
// empty caseID gets a generated identifier.
func (e *Engine) Start(ctx context.Context, caseID string) (*EngineResult, error) {
	cs := state.NewCaseState(caseID)
	unlock := e.lockCase(cs.CaseID)
	defer unlock()

	if caseID != "" {
		if _, err := e.store.Load(ctx, caseID); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrCaseExists, caseID)
		} else if !errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("load case %s: %w", caseID, err)
		}
	}

	e.logger.Info("starting case", "case_id", cs.CaseID)
	return e.run(ctx, cs, nil)
}

// Resume loads a suspended case, appends the answer to the transcript,
// and runs it forward. Resuming a terminal case repeats the terminal
// notice without changing the record.
func (e *Engine) Resume(ctx context.Context, caseID string, ans Answer) (*EngineResult, error) {
	unlock := e.lockCase(caseID)
	defer unlock()

	cs, err := e.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	role := state.RoleUser
	if cs.Phase == state.PhaseReview {
		role = state.RoleReviewer
	}
	for _, msg := range ans.Messages {
		if msg != "" {
			cs.AppendMessage(role, msg)
		}
	}
	if ans.Value != "" {
		cs.AppendMessage(role, ans.Value)
	}
	if ans.Upload != nil {
		cs.AppendMessage(role, "[uploaded file: "+ans.Upload.Name+"]")
	}
	for _, doc := range ans.Documents {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		id := cs.AttachDocument(doc.Name, doc.Source, doc.Text)
		cs.AppendMessage(role, "[attached document: "+doc.Name+"]")
		cs.AppendAudit("document_attached", map[string]string{
			"doc_id": id, "name": doc.Name, "chars": itoa(len(doc.Text)),
		})
	}

	return e.run(ctx, cs, &ans)
}

// Get returns the persisted case record.
func (e *Engine) Get(ctx context.Context, caseID string) (*state.CaseState, error) {
	return e.load(ctx, caseID)
}

// List returns the identifiers of all persisted cases.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// Durable reports whether case state survives a process restart.
func (e *Engine) Durable() bool { return e.store.Durable() }

func (e *Engine) load(ctx context.Context, caseID string) (*state.CaseState, error) {
	cs, err := e.store.Load(ctx, caseID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("load case %s: %w", caseID, err)
	}
	return cs, nil
}

// run executes nodes until suspension or terminal, then checkpoints.
// A failed checkpoint write fails the whole invocation so the caller
// never acts on uncommitted state.
func (e *Engine) run(ctx context.Context, cs *state.CaseState, ans *Answer) (*EngineResult, error) {
	base := len(cs.Transcript)

	node, ok := e.nodes[e.router.Route(cs)]
	if !ok {
		return nil, fmt.Errorf("case %s: no node for phase %s", cs.CaseID, cs.Phase)
	}

	var pending *PendingQuestion
	terminal := false

	for i := 0; ; i++ {
		if i >= maxTransitionsPerTurn {
			return nil, fmt.Errorf("case %s: exceeded %d node transitions in one turn", cs.CaseID, maxTransitionsPerTurn)
		}

		out, err := node.Run(ctx, cs, ans)
		ans = nil
		if err != nil {
			return nil, fmt.Errorf("case %s: node %s: %w", cs.CaseID, node.Name(), err)
		}

		if out.Suspend != nil {
			pending = out.Suspend
			break
		}
		if out.Terminal {
			terminal = true
			break
		}

		next, ok := e.nodes[out.Next]
		if !ok {
			return nil, fmt.Errorf("case %s: transition to unknown node %q", cs.CaseID, out.Next)
		}
		e.logger.Debug("node transition", "case_id", cs.CaseID, "from", node.Name(), "to", out.Next)
		node = next
	}

	if err := e.store.Save(ctx, cs); err != nil {
		return nil, fmt.Errorf("checkpoint case %s: %w", cs.CaseID, err)
	}

	return &EngineResult{
		CaseID:          cs.CaseID,
		TranscriptDelta: append([]state.ChatMessage(nil), cs.Transcript[base:]...),
		PendingQuestion: pending,
		Phase:           cs.Phase,
		Terminal:        terminal,
	}, nil
}

// lockCase serializes invocations per case.
func (e *Engine) lockCase(caseID string) func() {
	e.mu.Lock()
	m, ok := e.locks[caseID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[caseID] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}
