package gen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhazera/lingora/pkg/errorsx"
)

func TestGenerateRoundTrip(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Response{Text: "bonjour"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	resp, err := c.Generate(context.Background(), Request{Prompt: "greet", SystemInstruction: "be brief"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "bonjour" {
		t.Fatalf("expected text response, got %q", resp.Text)
	}
	if got.Prompt != "greet" || got.SystemInstruction != "be brief" {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestGenerateJSONParseFailureIsScoped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{Text: "not json at all"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	var out map[string]any
	err := c.GenerateJSON(context.Background(), Request{Prompt: "exercise"}, &out)
	if !errorsx.HasReason(err, errorsx.ReasonGenParse) {
		t.Fatalf("expected gen_parse reason, got %v", err)
	}
	if errorsx.Fatal(err) {
		t.Fatalf("parse failure must not be session fatal")
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Response{Text: "ok"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, BackoffMS: 1})
	resp, err := c.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "ok" || calls != 2 {
		t.Fatalf("expected retry then success, calls=%d resp=%q", calls, resp.Text)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Retries: 1, BackoffMS: 1})
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	if !errorsx.HasReason(err, errorsx.ReasonGenRateLimit) {
		t.Fatalf("expected gen_rate_limit reason, got %v", err)
	}
}
