package tutor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhazera/lingora/pkg/gen"
)

func TestParseReviewWithCorrection(t *testing.T) {
	got := parseReview("CORRECTION: Je suis allé au marché. %% Bien ! Just watch the past tense.")
	if got.Corrected != "Je suis allé au marché." {
		t.Fatalf("unexpected correction %q", got.Corrected)
	}
	if got.Reply != "Bien ! Just watch the past tense." {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
}

func TestParseReviewWithoutMarker(t *testing.T) {
	got := parseReview("  Parfait, rien à corriger !  ")
	if got.Corrected != "" {
		t.Fatalf("expected no correction, got %q", got.Corrected)
	}
	if got.Reply != "Parfait, rien à corriger !" {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
}

func TestParseReviewPrefixWithoutSeparator(t *testing.T) {
	got := parseReview("CORRECTION: Je mange une pomme.")
	if got.Corrected != "Je mange une pomme." {
		t.Fatalf("unexpected correction %q", got.Corrected)
	}
	if got.Reply != "" {
		t.Fatalf("expected empty reply, got %q", got.Reply)
	}
}

func TestParseReviewSeparatorWithoutPrefix(t *testing.T) {
	got := parseReview("a %% b")
	if got.Reply != "a %% b" || got.Corrected != "" {
		t.Fatalf("expected untouched reply, got %+v", got)
	}
}

func TestWritingReviewRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt            string `json:"prompt"`
			SystemInstruction string `json:"systemInstruction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "Je suis allé a le marché" {
			t.Errorf("unexpected prompt %q", req.Prompt)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"text": "CORRECTION: Je suis allé au marché. %% Presque !",
		})
	}))
	defer srv.Close()

	svc := NewWritingService(gen.NewClient(gen.Config{BaseURL: srv.URL}), LanguageConfig{
		Target: "fr", Native: "en", Level: "beginner",
	})
	got, err := svc.Review(context.Background(), "Je suis allé a le marché")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if got.Corrected != "Je suis allé au marché." {
		t.Fatalf("unexpected correction %q", got.Corrected)
	}
	if got.Reply != "Presque !" {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
}
