package workflow

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// defaultMaxBodyBytes caps request payloads. Answers are short text;
// anything larger is an upload that belongs outside the case record.
const defaultMaxBodyBytes = 1 << 20

// APIHandler exposes the engine over HTTP.
type APIHandler struct {
	engine       *Engine
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewAPIHandler creates the HTTP surface for an engine.
func NewAPIHandler(engine *Engine, logger *slog.Logger, maxBodyBytes int64) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &APIHandler{engine: engine, logger: logger, maxBodyBytes: maxBodyBytes}
}

// Register attaches the case routes to a mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /cases", h.startCase)
	mux.HandleFunc("POST /cases/{id}/answer", h.answerCase)
	mux.HandleFunc("GET /cases", h.listCases)
	mux.HandleFunc("GET /cases/{id}", h.getCase)
	mux.HandleFunc("GET /cases/{id}/export", h.exportCase)
}

type startRequest struct {
	CaseID string `json:"case_id,omitempty"`
}

func (h *APIHandler) startCase(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.Start(r.Context(), req.CaseID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *APIHandler) answerCase(w http.ResponseWriter, r *http.Request) {
	var ans Answer
	if !h.decodeBody(w, r, &ans) {
		return
	}

	result, err := h.engine.Resume(r.Context(), r.PathValue("id"), ans)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) getCase(w http.ResponseWriter, r *http.Request) {
	cs, err := h.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cs)
}

func (h *APIHandler) exportCase(w http.ResponseWriter, r *http.Request) {
	export, err := h.engine.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, export)
}

func (h *APIHandler) listCases(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.List(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"cases": ids})
}

// decodeBody reads a JSON body with the size cap applied. An empty
// body decodes to the zero value.
func (h *APIHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *APIHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCaseNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCaseExists):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("engine request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
