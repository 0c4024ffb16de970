package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/presenterkit/slidepilot/audio"
	"github.com/presenterkit/slidepilot/config"
	"github.com/presenterkit/slidepilot/match"
	"github.com/presenterkit/slidepilot/metrics"
	"github.com/presenterkit/slidepilot/qdrant"
	"github.com/presenterkit/slidepilot/relay"
	"github.com/presenterkit/slidepilot/stt"
	"github.com/presenterkit/slidepilot/transcript"
	"github.com/presenterkit/slidepilot/workers"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.ValidateListener(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error("listener failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	var metricsServer *metrics.Server
	if cfg.Listener.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.Listener.MetricsAddr, logger)
		go metricsServer.Start()
		defer metricsServer.Shutdown()
	}

	store := transcript.NewStore(cfg.Transcript.MaxHistory)

	relayClient := relay.NewClient(cfg.Relay.URL, logger)
	defer relayClient.Close()

	embedder, err := match.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel)
	if err != nil {
		return err
	}
	searcher, err := qdrant.NewClient(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
	}, logger)
	if err != nil {
		return err
	}
	matcher, err := match.NewMatcher(embedder, searcher, match.Config{
		Threshold:  cfg.Match.Threshold,
		TopK:       cfg.Match.TopK,
		SnippetLen: cfg.Match.SnippetLen,
	}, logger)
	if err != nil {
		return err
	}

	semanticWorker, err := workers.NewSemanticWorker(
		store.Subscribe(ctx), matcher, relayClient, cfg.Match.Cooldown(), logger)
	if err != nil {
		return err
	}
	semanticWorker.OnMatch = func(slide int) { m.SemanticMatches.Inc() }
	semanticWorker.Start()
	defer semanticWorker.Stop()

	keywordWorker, err := workers.NewKeywordWorker(
		store.Subscribe(ctx), relayClient, workers.KeywordConfig{
			Next:     cfg.Keywords.Next,
			Previous: cfg.Keywords.Previous,
		}, logger)
	if err != nil {
		return err
	}
	keywordWorker.OnTrigger = func(action string) { m.KeywordTriggers.WithLabelValues(action).Inc() }
	keywordWorker.Start()
	defer keywordWorker.Stop()

	mic, err := audio.OpenMic(audio.Config{
		SampleRate:   cfg.Audio.SampleRate,
		Channels:     cfg.Audio.Channels,
		FrameSamples: cfg.Audio.FrameSamples,
		InputFormat:  cfg.Audio.InputFormat,
		Device:       cfg.Audio.Device,
		FFmpegPath:   cfg.Audio.FFmpegPath,
	}, logger)
	if err != nil {
		return err
	}
	defer mic.Close()

	sttClient, err := stt.Dial(stt.Config{
		URL:      cfg.OpenAI.RealtimeURL,
		APIKey:   cfg.OpenAI.APIKey,
		Model:    cfg.OpenAI.TranscriptionModel,
		Prompt:   cfg.OpenAI.Prompt,
		Language: cfg.OpenAI.Language,
	}, logger)
	if err != nil {
		return err
	}

	// On shutdown, send the endpoint a normal-closure frame; closing the
	// connection also unblocks the receive loop so Run returns.
	go func() {
		<-ctx.Done()
		if err := sttClient.Close(); err != nil {
			logger.Debug("transcription close", slog.String("error", err.Error()))
		}
	}()

	// Forward finalized lines into the store; workers consume via their own
	// subscriptions. The loop ends when Run closes the transcript channel.
	go func() {
		for line := range sttClient.Transcripts() {
			logger.Info("transcript", slog.String("line", line))
			m.TranscriptLines.Inc()
			store.Publish(line)
		}
	}()

	logger.Info("listening",
		slog.String("model", cfg.OpenAI.TranscriptionModel),
		slog.Duration("frame", cfg.Audio.FrameDuration()),
	)

	err = sttClient.Run(ctx, mic)

	// Give in-flight lines a moment to reach the workers before teardown.
	time.Sleep(100 * time.Millisecond)

	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("listener stopped")
	return nil
}
