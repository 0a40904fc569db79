package workflow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matrixor/tsg-officer/checkpoint"
	"github.com/matrixor/tsg-officer/llm/testutil"
	"github.com/matrixor/tsg-officer/state"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	e := newTestEngine(t, &testutil.ScriptedService{}, passingRules(), checkpoint.NewMemoryStore())
	mux := http.NewServeMux()
	NewAPIHandler(e, quietLogger(), 0).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHTTPCaseLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var started EngineResult
	if code := doJSON(t, http.MethodPost, srv.URL+"/cases", `{"case_id":"case-http"}`, &started); code != http.StatusCreated {
		t.Fatalf("start status = %d", code)
	}
	if started.PendingQuestion == nil || started.PendingQuestion.Field != "submission_text" {
		t.Fatalf("pending = %+v", started.PendingQuestion)
	}

	var resumed EngineResult
	code := doJSON(t, http.MethodPost, srv.URL+"/cases/case-http/answer",
		`{"answer":"We use an internal LLM for code review."}`, &resumed)
	if code != http.StatusOK {
		t.Fatalf("answer status = %d", code)
	}
	if resumed.Phase != state.PhaseReview {
		t.Fatalf("phase = %s, want REVIEW", resumed.Phase)
	}

	var cs state.CaseState
	if code := doJSON(t, http.MethodGet, srv.URL+"/cases/case-http", "", &cs); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if cs.CaseID != "case-http" || cs.Phase != state.PhaseReview {
		t.Fatalf("case = %s/%s", cs.CaseID, cs.Phase)
	}

	var export AuditExport
	if code := doJSON(t, http.MethodGet, srv.URL+"/cases/case-http/export", "", &export); code != http.StatusOK {
		t.Fatalf("export status = %d", code)
	}
	if export.CaseID != "case-http" || len(export.AuditLog) == 0 {
		t.Fatalf("export = %+v", export)
	}

	var list map[string][]string
	if code := doJSON(t, http.MethodGet, srv.URL+"/cases", "", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if got := list["cases"]; len(got) != 1 || got[0] != "case-http" {
		t.Fatalf("list = %v", got)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	var errBody map[string]string
	if code := doJSON(t, http.MethodGet, srv.URL+"/cases/case-none", "", &errBody); code != http.StatusNotFound {
		t.Fatalf("unknown case status = %d", code)
	}
	if errBody["error"] == "" {
		t.Fatal("error body missing")
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/cases/case-none/answer", `{"answer":"hi"}`, nil); code != http.StatusNotFound {
		t.Fatalf("answer to unknown case status = %d", code)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/cases", `{"case_id":"case-dup"}`, nil); code != http.StatusCreated {
		t.Fatalf("first start status = %d", code)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/cases", `{"case_id":"case-dup"}`, nil); code != http.StatusConflict {
		t.Fatalf("duplicate start status = %d", code)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/cases", `{not json`, nil); code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", code)
	}
}

func TestHTTPEmptyStartBody(t *testing.T) {
	srv := newTestServer(t)

	var started EngineResult
	if code := doJSON(t, http.MethodPost, srv.URL+"/cases", "", &started); code != http.StatusCreated {
		t.Fatalf("start status = %d", code)
	}
	if started.CaseID == "" {
		t.Fatal("no generated case id")
	}
}
