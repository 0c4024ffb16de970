package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/presenterkit/slidepilot/config"
	"github.com/presenterkit/slidepilot/match"
	"github.com/presenterkit/slidepilot/qdrant"
)

// page is one extracted slide page as produced by a deck-to-text exporter.
type page struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	pagesPath := flag.String("pages", "", "path to JSON file of extracted slide pages")
	batchSize := flag.Int("batch", 64, "pages embedded per API call")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.ValidateIngest(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *pagesPath == "" {
		slog.Error("-pages is required")
		os.Exit(1)
	}
	if *batchSize < 1 {
		slog.Error("-batch must be positive")
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging)
	if err := run(cfg, logger, *pagesPath, *batchSize); err != nil {
		logger.Error("ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, pagesPath string, batchSize int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pages, err := loadPages(pagesPath)
	if err != nil {
		return err
	}
	logger.Info("loaded slide pages", slog.Int("pages", len(pages)), slog.String("file", pagesPath))

	embedder, err := match.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel)
	if err != nil {
		return err
	}
	client, err := qdrant.NewClient(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
	}, logger)
	if err != nil {
		return err
	}

	if err := client.EnsureCollection(ctx, cfg.Qdrant.VectorSize); err != nil {
		return err
	}

	for start := 0; start < len(pages); start += batchSize {
		end := start + batchSize
		if end > len(pages) {
			end = len(pages)
		}
		batch := pages[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return errors.Wrapf(err, "embed pages %d-%d", batch[0].PageNumber, batch[len(batch)-1].PageNumber)
		}

		points := make([]qdrant.Point, len(batch))
		for i, p := range batch {
			points[i] = qdrant.Point{
				ID:     uint64(p.PageNumber),
				Vector: vectors[i],
				Payload: qdrant.Payload{
					Text:       p.Text,
					PageNumber: p.PageNumber,
				},
			}
		}
		if err := client.Upsert(ctx, points); err != nil {
			return err
		}
		logger.Info("indexed batch",
			slog.Int("from", batch[0].PageNumber),
			slog.Int("to", batch[len(batch)-1].PageNumber),
		)
	}

	logger.Info("ingest complete",
		slog.Int("pages", len(pages)),
		slog.String("collection", cfg.Qdrant.Collection),
	)
	return nil
}

// loadPages reads and validates the extracted pages file.
func loadPages(path string) ([]page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read pages file %s", path)
	}
	var pages []page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, errors.Wrapf(err, "parse pages file %s", path)
	}
	if len(pages) == 0 {
		return nil, errors.New("pages file contains no pages")
	}
	for i, p := range pages {
		if p.PageNumber < 1 {
			return nil, errors.Errorf("page at index %d has invalid page_number %d", i, p.PageNumber)
		}
		if p.Text == "" {
			return nil, errors.Errorf("page %d has empty text", p.PageNumber)
		}
	}
	return pages, nil
}
