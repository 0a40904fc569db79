// Package main implements a mock LLM server for offline testing.
// It serves OpenAI-compatible /v1/chat/completions responses from JSON
// fixture files, routing by the "model" field in the request, so the
// workflow's real HTTP client path can be exercised without an API key.
//
// Usage:
//
//	mock-llm -fixtures testdata/fixtures -port 11434
//	tsg-officer serve -c config.yaml   # llm.provider: openai, endpoint http://localhost:11434/v1/chat/completions
//
// A fixture file is named after the model (e.g. "mock-classifier.json"
// maps to model "mock-classifier") and its content is returned as the
// assistant message. Numbered fixtures ("mock-evaluator.1.json",
// "mock-evaluator.2.json") are returned in order of call, so a test can
// script the first checklist pass returning follow-up questions and the
// second returning APPROVE; the unnumbered file repeats once numbered
// fixtures run out.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

var seqFixtureRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

type server struct {
	fixturesDir string
	logger      *slog.Logger

	mu    sync.Mutex
	calls map[string]int
}

func main() {
	var (
		fixturesDir = flag.String("fixtures", "testdata/fixtures", "Directory of JSON fixture files")
		port        = flag.Int("port", 11434, "Listen port")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := os.Stat(*fixturesDir); err != nil {
		logger.Error("fixtures directory not usable", "dir", *fixturesDir, "error", err)
		os.Exit(1)
	}

	s := &server{fixturesDir: *fixturesDir, logger: logger, calls: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleCompletions)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("mock llm listening", "addr", addr, "fixtures", *fixturesDir)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func (s *server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		http.Error(w, "missing model", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Model]++
	callIndex := s.calls[req.Model]
	s.mu.Unlock()

	content, err := s.fixtureFor(req.Model, callIndex)
	if err != nil {
		s.logger.Warn("no fixture", "model", req.Model, "call", callIndex, "error", err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	s.logger.Info("served fixture", "model", req.Model, "call", callIndex, "bytes", len(content))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%s-%d", req.Model, callIndex),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: string(content)},
			FinishReason: "stop",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

// fixtureFor resolves the fixture for the Nth call to a model:
// numbered fixtures in order first, then the base file as a repeating
// fallback.
func (s *server) fixtureFor(model string, callIndex int) ([]byte, error) {
	numbered, err := s.numberedFixtures(model)
	if err != nil {
		return nil, err
	}
	if callIndex <= len(numbered) {
		return os.ReadFile(numbered[callIndex-1])
	}

	base := filepath.Join(s.fixturesDir, model+".json")
	if data, err := os.ReadFile(base); err == nil {
		return data, nil
	}
	if len(numbered) > 0 {
		// No base fallback: the last numbered fixture repeats.
		return os.ReadFile(numbered[len(numbered)-1])
	}
	return nil, fmt.Errorf("no fixture for model %q", model)
}

func (s *server) numberedFixtures(model string) ([]string, error) {
	entries, err := os.ReadDir(s.fixturesDir)
	if err != nil {
		return nil, err
	}

	type seqFile struct {
		path string
		n    int
	}
	var files []seqFile
	for _, e := range entries {
		m := seqFixtureRe.FindStringSubmatch(e.Name())
		if m == nil || m[1] != model {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		files = append(files, seqFile{path: filepath.Join(s.fixturesDir, e.Name()), n: n})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
