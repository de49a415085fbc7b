package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gpt-generals/internal/config"
	"gpt-generals/internal/game"
)

// chatServer returns a test server that answers every chat completion
// with the given message content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %v", req.Messages)
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
}

func modelPolicy(srvURL string) *ModelPolicy {
	return NewModelPolicy(config.Model{BaseURL: srvURL, APIKey: "test-key", Name: "test-model"})
}

func TestModelPolicyParsesDecision(t *testing.T) {
	srv := chatServer(t, `{"direction":"up","reasoning":"coin to the north"}`)
	defer srv.Close()

	s := testState(5, 5, map[string]game.Position{"A": {X: 2, Y: 2}})
	dir, ok, err := modelPolicy(srv.URL).Decide(context.Background(), s, "A")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !ok || dir != game.DirUp {
		t.Fatalf("got (%s, %v), want (up, true)", dir, ok)
	}
}

func TestModelPolicyWaitAbstains(t *testing.T) {
	srv := chatServer(t, `{"direction":"wait","reasoning":"nowhere better to be"}`)
	defer srv.Close()

	s := testState(5, 5, map[string]game.Position{"A": {X: 2, Y: 2}})
	_, ok, err := modelPolicy(srv.URL).Decide(context.Background(), s, "A")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if ok {
		t.Fatal("wait should abstain, not move")
	}
}

func TestModelPolicyRejectsInvalidDirection(t *testing.T) {
	srv := chatServer(t, `{"direction":"sideways","reasoning":"?"}`)
	defer srv.Close()

	s := testState(5, 5, map[string]game.Position{"A": {X: 2, Y: 2}})
	if _, _, err := modelPolicy(srv.URL).Decide(context.Background(), s, "A"); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestModelPolicyMalformedContent(t *testing.T) {
	srv := chatServer(t, `I think the unit should go up.`)
	defer srv.Close()

	s := testState(5, 5, map[string]game.Position{"A": {X: 2, Y: 2}})
	if _, _, err := modelPolicy(srv.URL).Decide(context.Background(), s, "A"); err == nil {
		t.Fatal("expected error for non-JSON content")
	}
}

func TestModelPolicyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := testState(5, 5, map[string]game.Position{"A": {X: 2, Y: 2}})
	_, _, err := modelPolicy(srv.URL).Decide(context.Background(), s, "A")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestModelPolicyHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := testState(5, 5, map[string]game.Position{"A": {X: 2, Y: 2}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, _, err := modelPolicy(srv.URL).Decide(ctx, s, "A"); err == nil {
		t.Fatal("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("decide blocked %v past its deadline", elapsed)
	}
}

func TestModelPolicyUnknownUnit(t *testing.T) {
	s := testState(5, 5, nil)
	if _, _, err := modelPolicy("http://unused").Decide(context.Background(), s, "Z"); err != game.ErrUnitNotFound {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
}
