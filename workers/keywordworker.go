package workers

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// goToSlidePattern matches spoken jump commands like "go to slide 7".
// Matching happens on the lowercased line.
var goToSlidePattern = regexp.MustCompile(`go to slide (\d+)`)

// KeywordConfig lists the literal phrases bound to navigation actions.
type KeywordConfig struct {
	Next     []string
	Previous []string
}

// KeywordWorker scans every published transcript line case-insensitively
// for configured literal phrases and fires the bound navigation action on a
// substring hit. It runs independently of the semantic worker; both may
// fire for the same line.
type KeywordWorker struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	lines     <-chan string
	navigator Navigator
	next      []string
	previous  []string
	logger    *slog.Logger

	// OnTrigger is an optional instrumentation hook, called with the
	// action name on every fired navigation.
	OnTrigger func(action string)
}

// NewKeywordWorker creates a keyword reaction worker reading from lines.
func NewKeywordWorker(lines <-chan string, navigator Navigator, cfg KeywordConfig, logger *slog.Logger) (*KeywordWorker, error) {
	if lines == nil {
		return nil, errors.New("lines channel is required")
	}
	if navigator == nil {
		return nil, errors.New("navigator is required")
	}

	lower := func(phrases []string) []string {
		out := make([]string, 0, len(phrases))
		for _, p := range phrases {
			out = append(out, strings.ToLower(p))
		}
		return out
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KeywordWorker{
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		lines:     lines,
		navigator: navigator,
		next:      lower(cfg.Next),
		previous:  lower(cfg.Previous),
		logger:    logger,
	}, nil
}

// Start begins the reaction loop in its own goroutine.
func (w *KeywordWorker) Start() {
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
func (w *KeywordWorker) Stop() {
	w.cancel()
	<-w.done
}

func (w *KeywordWorker) handle(line string) {
	lower := strings.ToLower(line)

	for _, phrase := range w.next {
		if strings.Contains(lower, phrase) {
			w.logger.Info("keyword match", slog.String("phrase", phrase), slog.String("line", line))
			w.fire("next", func(ctx context.Context) error { return w.navigator.Next(ctx) })
			break
		}
	}

	for _, phrase := range w.previous {
		if strings.Contains(lower, phrase) {
			w.logger.Info("keyword match", slog.String("phrase", phrase), slog.String("line", line))
			w.fire("previous", func(ctx context.Context) error { return w.navigator.Previous(ctx) })
			break
		}
	}

	if m := goToSlidePattern.FindStringSubmatch(lower); m != nil {
		slide, err := strconv.Atoi(m[1])
		if err == nil && slide > 0 {
			w.logger.Info("keyword match", slog.String("phrase", m[0]), slog.Int("slide", slide))
			w.fire("go_to", func(ctx context.Context) error { return w.navigator.GoTo(ctx, slide) })
		}
	}
}

// fire runs one navigation action; losing a single event is logged and
// survived, since it must not end the transcription session.
func (w *KeywordWorker) fire(action string, navigate func(context.Context) error) {
	if err := navigate(w.ctx); err != nil {
		w.logger.Warn("navigation failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return
	}
	if w.OnTrigger != nil {
		w.OnTrigger(action)
	}
}
