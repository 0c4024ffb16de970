package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/presenterkit/slidepilot/match"
)

// Config contains vector index connection settings.
type Config struct {
	URL        string // base URL, e.g. https://host:6333
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client is a minimal REST client for the qdrant vector index: collection
// bootstrap, point upsert, and nearest-neighbor queries by cosine
// similarity. It implements match.Searcher.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Payload is the stored per-point payload: original page text plus the
// slide/page number.
type Payload struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
}

// Point is one indexed slide page.
type Point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// NewClient creates a qdrant client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant URL cannot be empty")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Search implements match.Searcher: a nearest-neighbor query with payloads
// included, ranked by similarity score.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]match.Hit, error) {
	reqBody := map[string]any{
		"query":        vector,
		"limit":        topK,
		"with_payload": true,
	}

	var resp struct {
		Result struct {
			Points []struct {
				Score   float32 `json:"score"`
				Payload Payload `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}

	path := "/collections/" + c.cfg.Collection + "/points/query"
	if err := c.do(ctx, http.MethodPost, path, reqBody, &resp); err != nil {
		return nil, errors.Wrap(err, "query points")
	}

	hits := make([]match.Hit, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		hits = append(hits, match.Hit{
			Score:      p.Score,
			SlideIndex: p.Payload.PageNumber,
			Text:       p.Payload.Text,
		})
	}
	return hits, nil
}

// EnsureCollection creates the collection with a cosine-distance vector
// schema if it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int) error {
	path := "/collections/" + c.cfg.Collection

	err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err == nil {
		c.logger.Debug("collection already exists", slog.String("collection", c.cfg.Collection))
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, path, reqBody, nil); err != nil {
		return errors.Wrapf(err, "create collection %s", c.cfg.Collection)
	}

	c.logger.Info("created collection",
		slog.String("collection", c.cfg.Collection),
		slog.Int("vector_size", vectorSize),
	)
	return nil
}

// Upsert writes points into the collection, waiting for the operation to be
// applied so a following query sees them.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	reqBody := map[string]any{"points": points}
	path := "/collections/" + c.cfg.Collection + "/points?wait=true"
	if err := c.do(ctx, http.MethodPut, path, reqBody, nil); err != nil {
		return errors.Wrapf(err, "upsert %d points", len(points))
	}
	return nil
}

// do performs one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "parse response JSON")
		}
	}
	return nil
}
