package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebSearchExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "test-key" {
			t.Error("missing API key header")
		}
		if r.URL.Query().Get("q") != "golang testing" {
			t.Errorf("unexpected query: %s", r.URL.Query().Get("q"))
		}
		w.Write([]byte(`{"web":{"results":[
			{"title":"Go Testing","url":"https://go.dev/testing","description":"How to test in Go"},
			{"title":"Go Docs","url":"https://go.dev/doc","description":"Go documentation"}
		]}}`))
	}))
	defer server.Close()

	ws := NewWebSearch("test-key")
	ws.baseURL = server.URL

	args, _ := json.Marshal(map[string]any{"query": "golang testing", "count": 2})
	result, err := ws.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "Go Testing") || !strings.Contains(result, "https://go.dev/testing") {
		t.Errorf("result = %q", result)
	}
}

func TestWebSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer server.Close()

	ws := NewWebSearch("k")
	ws.baseURL = server.URL

	args, _ := json.Marshal(map[string]string{"query": "nothing"})
	result, err := ws.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if result != "No results found." {
		t.Errorf("result = %q", result)
	}
}

func TestWebSearchMissingQuery(t *testing.T) {
	ws := NewWebSearch("k")
	if _, err := ws.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestWebSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	ws := NewWebSearch("k")
	ws.baseURL = server.URL

	args, _ := json.Marshal(map[string]string{"query": "x"})
	if _, err := ws.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for API failure")
	}
}
