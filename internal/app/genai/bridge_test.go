package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestBridge starts a fake Responses API serving handler and returns a
// Bridge pointed at it.
func newTestBridge(t *testing.T, handler http.HandlerFunc) *Bridge {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewBridge(BridgeConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
}

// TestGenerateReadsOutputText verifies the primary extraction path and the
// request the bridge sends.
func TestGenerateReadsOutputText(t *testing.T) {
	var gotAuth, gotPath, gotModel, gotInput string

	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		gotInput = req.Input

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output_text": "Hello back."}`))
	})

	text, err := bridge.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Hello back." {
		t.Fatalf("text = %q", text)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotPath != "/v1/responses" {
		t.Errorf("path = %q", gotPath)
	}
	if gotModel != "test-model" || gotInput != "hello" {
		t.Errorf("request body model=%q input=%q", gotModel, gotInput)
	}
}

// TestGenerateFallsBackToOutputItems verifies that when output_text is absent
// the text fragments in the output items are concatenated.
func TestGenerateFallsBackToOutputItems(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"output": [
				{"type": "message", "content": [{"type": "output_text", "text": "part one"}]},
				{"type": "message", "content": [{"type": "output_text", "text": " and two"}]}
			]
		}`))
	})

	text, err := bridge.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "part one and two" {
		t.Fatalf("text = %q", text)
	}
}

// TestGenerateBackendError verifies that an error object in a 200 response is
// surfaced as an error.
func TestGenerateBackendError(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
	})

	_, err := bridge.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("error = %v, want backend message included", err)
	}
}

// TestGenerateNon200Status verifies that a non-200 status becomes an error
// carrying the status code.
func TestGenerateNon200Status(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "bad key"}}`, http.StatusUnauthorized)
	})

	_, err := bridge.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("error = %v, want status code included", err)
	}
}

// TestGenerateEmptyResponse verifies that a well-formed response with no text
// anywhere is rejected.
func TestGenerateEmptyResponse(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output": []}`))
	})

	_, err := bridge.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for response without text")
	}
}

// TestGenerateMalformedJSON verifies that an unparseable body is rejected.
func TestGenerateMalformedJSON(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := bridge.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
}
