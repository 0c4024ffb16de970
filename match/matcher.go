package match

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Embedder turns text into a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher queries a pre-populated vector index for the nearest stored
// slide pages.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
}

// Hit is one ranked neighbor from the vector index.
type Hit struct {
	Score      float32
	SlideIndex int
	Text       string
}

// Result is a slide match above the similarity threshold.
type Result struct {
	Score      float32
	SlideIndex int
	Snippet    string
}

// Config contains matcher tuning.
type Config struct {
	Threshold  float32
	TopK       int
	SnippetLen int
}

// Matcher maps a transcript line to the most similar indexed slide page.
// Given an identical index snapshot and identical embedding output, the
// result is deterministic.
type Matcher struct {
	embedder Embedder
	searcher Searcher
	cfg      Config
	logger   *slog.Logger
}

// NewMatcher wires an embedder and a vector index searcher.
func NewMatcher(embedder Embedder, searcher Searcher, cfg Config, logger *slog.Logger) (*Matcher, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.TopK < 1 {
		cfg.TopK = 1
	}
	if cfg.SnippetLen < 1 {
		cfg.SnippetLen = 200
	}
	return &Matcher{embedder: embedder, searcher: searcher, cfg: cfg, logger: logger}, nil
}

// Match embeds text, queries the index, and returns the best neighbor if
// its similarity is at or above the threshold. A nil Result with nil error
// means no match; it is the expected outcome for off-slide chatter.
func (m *Matcher) Match(ctx context.Context, text string) (*Result, error) {
	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "embed transcript line")
	}

	hits, err := m.searcher.Search(ctx, vector, m.cfg.TopK)
	if err != nil {
		return nil, errors.Wrap(err, "query vector index")
	}
	if len(hits) == 0 {
		return nil, nil
	}

	best := hits[0]
	if best.Score < m.cfg.Threshold {
		m.logger.Debug("best neighbor below threshold",
			slog.Float64("score", float64(best.Score)),
			slog.Float64("threshold", float64(m.cfg.Threshold)),
		)
		return nil, nil
	}

	return &Result{
		Score:      best.Score,
		SlideIndex: best.SlideIndex,
		Snippet:    snippet(best.Text, m.cfg.SnippetLen),
	}, nil
}

// snippet truncates stored payload text to at most n characters with
// newlines flattened to spaces.
func snippet(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > n {
		return text[:n]
	}
	return text
}
