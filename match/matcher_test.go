package match

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/presenterkit/slidepilot/match/fake"
)

type stubSearcher struct {
	hits    []Hit
	err     error
	gotVec  []float32
	gotTopK int
}

func (s *stubSearcher) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	s.gotVec = vector
	s.gotTopK = topK
	return s.hits, s.err
}

func newTestMatcher(t *testing.T, s Searcher, cfg Config) *Matcher {
	t.Helper()
	m, err := NewMatcher(fake.New(8), s, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func TestMatchBelowThresholdIsNoMatch(t *testing.T) {
	searcher := &stubSearcher{hits: []Hit{{Score: 0.42, SlideIndex: 7, Text: "budget overview"}}}
	m := newTestMatcher(t, searcher, Config{Threshold: 0.5, TopK: 2, SnippetLen: 200})

	res, err := m.Match(context.Background(), "unrelated chatter")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res != nil {
		t.Errorf("score 0.42 with threshold 0.5 should be no match, got %+v", res)
	}
}

func TestMatchAboveThresholdReturnsSlide(t *testing.T) {
	searcher := &stubSearcher{hits: []Hit{
		{Score: 0.73, SlideIndex: 3, Text: "architecture diagram of the ingestion pipeline"},
		{Score: 0.55, SlideIndex: 9, Text: "second best"},
	}}
	m := newTestMatcher(t, searcher, Config{Threshold: 0.5, TopK: 2, SnippetLen: 200})

	res, err := m.Match(context.Background(), "let's look at the ingestion pipeline")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.SlideIndex != 3 {
		t.Errorf("SlideIndex = %d, want 3", res.SlideIndex)
	}
	if res.Score != 0.73 {
		t.Errorf("Score = %f, want 0.73", res.Score)
	}
	if searcher.gotTopK != 2 {
		t.Errorf("topK passed to searcher = %d, want 2", searcher.gotTopK)
	}
	if len(searcher.gotVec) != 8 {
		t.Errorf("embedding dimension = %d, want 8", len(searcher.gotVec))
	}
}

func TestMatchScoreExactlyAtThreshold(t *testing.T) {
	searcher := &stubSearcher{hits: []Hit{{Score: 0.5, SlideIndex: 1, Text: "intro"}}}
	m := newTestMatcher(t, searcher, Config{Threshold: 0.5, TopK: 1, SnippetLen: 200})

	res, err := m.Match(context.Background(), "intro")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res == nil {
		t.Error("score equal to threshold should match")
	}
}

func TestMatchSnippetTruncation(t *testing.T) {
	long := strings.Repeat("paragraph of slide text\n", 40)
	searcher := &stubSearcher{hits: []Hit{{Score: 0.9, SlideIndex: 5, Text: long}}}
	m := newTestMatcher(t, searcher, Config{Threshold: 0.5, TopK: 1, SnippetLen: 200})

	res, err := m.Match(context.Background(), "slide text")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res == nil {
		t.Fatal("expected a match")
	}
	if len(res.Snippet) > 200 {
		t.Errorf("snippet length = %d, must not exceed 200", len(res.Snippet))
	}
	if strings.Contains(res.Snippet, "\n") {
		t.Error("snippet should have newlines flattened")
	}
}

func TestMatchEmptyIndex(t *testing.T) {
	m := newTestMatcher(t, &stubSearcher{}, Config{Threshold: 0.5, TopK: 1, SnippetLen: 200})

	res, err := m.Match(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res != nil {
		t.Errorf("empty index should be no match, got %+v", res)
	}
}

func TestMatchSearcherErrorPropagates(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index unreachable")}
	m := newTestMatcher(t, searcher, Config{Threshold: 0.5, TopK: 1, SnippetLen: 200})

	if _, err := m.Match(context.Background(), "anything"); err == nil {
		t.Error("searcher error should propagate")
	}
}

func TestMatchDeterministic(t *testing.T) {
	searcher := &stubSearcher{hits: []Hit{{Score: 0.8, SlideIndex: 2, Text: "roadmap"}}}
	m := newTestMatcher(t, searcher, Config{Threshold: 0.5, TopK: 1, SnippetLen: 200})

	first, err := m.Match(context.Background(), "the roadmap for next year")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	firstVec := append([]float32(nil), searcher.gotVec...)

	second, err := m.Match(context.Background(), "the roadmap for next year")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if *first != *second {
		t.Errorf("results differ for identical input: %+v vs %+v", first, second)
	}
	for i := range firstVec {
		if firstVec[i] != searcher.gotVec[i] {
			t.Fatal("fake embedder produced different vectors for identical input")
		}
	}
}
