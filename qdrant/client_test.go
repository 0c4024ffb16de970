package qdrant

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{URL: url, APIKey: "qd-key", Collection: "deck"}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSearchParsesRankedHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/deck/points/query" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "qd-key" {
			t.Errorf("api-key header = %q", got)
		}

		var req struct {
			Query       []float32 `json:"query"`
			Limit       int       `json:"limit"`
			WithPayload bool      `json:"with_payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Limit != 2 || !req.WithPayload || len(req.Query) != 3 {
			t.Errorf("request = %+v", req)
		}

		io.WriteString(w, `{
			"result": {"points": [
				{"id": 3, "score": 0.73, "payload": {"text": "pipeline architecture", "page_number": 3}},
				{"id": 9, "score": 0.41, "payload": {"text": "appendix", "page_number": 9}}
			]},
			"status": "ok"
		}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	hits, err := c.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Score != 0.73 || hits[0].SlideIndex != 3 || hits[0].Text != "pipeline architecture" {
		t.Errorf("best hit = %+v", hits[0])
	}
	if hits[1].SlideIndex != 9 {
		t.Errorf("second hit = %+v", hits[1])
	}
}

func TestSearchHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"collection not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Search(context.Background(), []float32{0.1}, 1); err == nil {
		t.Error("expected error on 404 response")
	}
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"result": {"status": "green"}, "status": "ok"}`)
		case http.MethodPut:
			created = true
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if created {
		t.Error("existing collection should not be recreated")
	}
}

func TestEnsureCollectionCreatesMissing(t *testing.T) {
	var createBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
		case http.MethodPut:
			if r.URL.Path != "/collections/deck" {
				t.Errorf("create path = %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&createBody); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			io.WriteString(w, `{"result": true, "status": "ok"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	vectors, ok := createBody["vectors"].(map[string]any)
	if !ok {
		t.Fatalf("create body missing vectors: %v", createBody)
	}
	if vectors["distance"] != "Cosine" {
		t.Errorf("distance = %v, want Cosine", vectors["distance"])
	}
	if size, _ := vectors["size"].(float64); int(size) != 1536 {
		t.Errorf("size = %v, want 1536", vectors["size"])
	}
}

func TestUpsertSendsPoints(t *testing.T) {
	var req struct {
		Points []Point `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/deck/points" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("upsert should wait for application")
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode upsert body: %v", err)
		}
		io.WriteString(w, `{"result": {"operation_id": 1, "status": "completed"}, "status": "ok"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	points := []Point{
		{ID: 1, Vector: []float32{0.1, 0.2}, Payload: Payload{Text: "intro", PageNumber: 1}},
		{ID: 2, Vector: []float32{0.3, 0.4}, Payload: Payload{Text: "roadmap", PageNumber: 2}},
	}
	if err := c.Upsert(context.Background(), points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(req.Points) != 2 {
		t.Fatalf("server received %d points, want 2", len(req.Points))
	}
	if req.Points[1].Payload.PageNumber != 2 {
		t.Errorf("second point payload = %+v", req.Points[1].Payload)
	}

	// Empty upsert is a no-op, not a request.
	if err := c.Upsert(context.Background(), nil); err != nil {
		t.Errorf("empty Upsert: %v", err)
	}
}
