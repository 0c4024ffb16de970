package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/presenterkit/slidepilot/match"
)

// Matcher is the semantic lookup the worker consults per transcript line.
type Matcher interface {
	Match(ctx context.Context, text string) (*match.Result, error)
}

// SemanticWorker passes every published transcript line to the semantic
// matcher and jumps to the matched slide. Matcher and relay failures are
// recovered locally: the line is abandoned and the loop continues.
type SemanticWorker struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	lines     <-chan string
	matcher   Matcher
	navigator Navigator
	logger    *slog.Logger

	// cooldown suppresses repeated jumps to the slide that was triggered
	// last, within the window. Zero disables debouncing, which reproduces
	// the original rapid-fire behavior.
	cooldown  time.Duration
	lastSlide int
	lastFired time.Time

	// OnMatch is an optional instrumentation hook, called for every match
	// that results in a navigation.
	OnMatch func(slide int)
}

// NewSemanticWorker creates a semantic reaction worker reading from lines.
func NewSemanticWorker(lines <-chan string, matcher Matcher, navigator Navigator, cooldown time.Duration, logger *slog.Logger) (*SemanticWorker, error) {
	if lines == nil {
		return nil, errors.New("lines channel is required")
	}
	if matcher == nil {
		return nil, errors.New("matcher is required")
	}
	if navigator == nil {
		return nil, errors.New("navigator is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SemanticWorker{
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		lines:     lines,
		matcher:   matcher,
		navigator: navigator,
		cooldown:  cooldown,
		logger:    logger,
	}, nil
}

// Start begins the reaction loop in its own goroutine.
func (w *SemanticWorker) Start() {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.ctx.Done():
				return
			case line, ok := <-w.lines:
				if !ok {
					return
				}
				w.handle(line)
			}
		}
	}()
}

// Stop signals the loop to exit and waits for it.
func (w *SemanticWorker) Stop() {
	w.cancel()
	<-w.done
}

func (w *SemanticWorker) handle(line string) {
	result, err := w.matcher.Match(w.ctx, line)
	if err != nil {
		w.logger.Warn("semantic match failed", slog.String("error", err.Error()))
		return
	}
	if result == nil {
		w.logger.Debug("no semantic match", slog.String("line", line))
		return
	}

	if w.cooldown > 0 && result.SlideIndex == w.lastSlide && time.Since(w.lastFired) < w.cooldown {
		w.logger.Debug("debounced repeated match", slog.Int("slide", result.SlideIndex))
		return
	}

	w.logger.Info("semantic match",
		slog.Int("slide", result.SlideIndex),
		slog.Float64("score", float64(result.Score)),
		slog.String("snippet", result.Snippet),
	)

	if err := w.navigator.GoTo(w.ctx, result.SlideIndex); err != nil {
		w.logger.Warn("slide jump failed",
			slog.Int("slide", result.SlideIndex),
			slog.String("error", err.Error()),
		)
		return
	}

	w.lastSlide = result.SlideIndex
	w.lastFired = time.Now()
	if w.OnMatch != nil {
		w.OnMatch(result.SlideIndex)
	}
}
