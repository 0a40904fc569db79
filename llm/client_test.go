package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/state"
)

// fakeProvider speaks the OpenAI-compatible shape against httptest servers.
type fakeProvider struct{}

func (f *fakeProvider) Name() string                   { return "fake" }
func (f *fakeProvider) BuildURL(baseURL string) string { return baseURL }
func (f *fakeProvider) SetHeaders(_ *http.Request)     {}

func (f *fakeProvider) BuildRequestBody(model string, messages []Message, _ *float64, _ int) ([]byte, error) {
	return json.Marshal(map[string]any{"model": model, "messages": messages})
}

func (f *fakeProvider) ParseResponse(body []byte, _ string) (*Response, error) {
	var resp struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &Response{Content: resp.Content, Model: "fake-model"}, nil
}

func init() {
	RegisterProvider(&fakeProvider{})
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1.0, MaxBackoff: time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("fake", "fake-model", WithEndpoint(server.URL), WithRetryConfig(fastRetry()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func contentResponse(content string) string {
	b, _ := json.Marshal(map[string]string{"content": content})
	return string(b)
}

func TestClientClassify(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, contentResponse("```json\n{\"application_type\": \"internal_ai_builder\", \"labels\": [\"Internal AI Builder\"], \"confidence\": 1.4}\n```"))
	})

	got, err := client.Classify(context.Background(), "we train models")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.ApplicationType != "internal_ai_builder" {
		t.Errorf("ApplicationType = %q", got.ApplicationType)
	}
	if got.Confidence != 1 {
		t.Errorf("Confidence = %f, want clamped to 1", got.Confidence)
	}
}

func TestClientEvaluateChecklistNormalizes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, contentResponse(`{"overall_recommendation": "approve", "checklist": [{"rule_id": "r1", "status": "pass", "severity": "info", "confidence": 0.9}]}`))
	})

	report, err := client.EvaluateChecklist(context.Background(), EvaluateRequest{
		CaseID: "case-1",
		Rules:  []rules.Rule{{RuleID: "r1", Severity: state.SeverityBlocker}},
	})
	if err != nil {
		t.Fatalf("EvaluateChecklist: %v", err)
	}
	if report.CaseID != "case-1" {
		t.Errorf("CaseID = %q", report.CaseID)
	}
	if report.OverallRecommendation != state.DecisionApprove {
		t.Errorf("overall = %v", report.OverallRecommendation)
	}
	if report.Checklist[0].Severity != state.SeverityBlocker {
		t.Errorf("severity = %v, want rule library value", report.Checklist[0].Severity)
	}
}

func TestClientRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, contentResponse("rewritten question"))
	})

	got, err := client.Explain(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "rewritten question" {
		t.Errorf("Explain = %q", got)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientFatalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Explain(context.Background(), "q", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsFatal(err) {
		t.Errorf("error not classified fatal: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientRejectsNonJSONClassification(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, contentResponse("I cannot classify this."))
	})

	if _, err := client.Classify(context.Background(), "text"); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	if _, err := NewClient("nope", "m"); err == nil {
		t.Error("expected unknown provider error")
	}
}

func TestWithTimeoutCancelsSlowRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, contentResponse("too late"))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient("fake", "fake-model",
		WithEndpoint(server.URL),
		WithTimeout(20*time.Millisecond),
		WithRetryConfig(RetryConfig{MaxAttempts: 1, BackoffBase: time.Millisecond, BackoffMultiplier: 1.0, MaxBackoff: time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	_, err = client.Explain(context.Background(), "q", "ctx")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("request took %v, timeout not applied", elapsed)
	}
}
