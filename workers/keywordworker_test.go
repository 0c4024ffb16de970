package workers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// call is one recorded navigation action.
type call struct {
	action string
	slide  int
}

// fakeNavigator records navigation calls and signals each one.
type fakeNavigator struct {
	mu    sync.Mutex
	calls []call
	fired chan call
	err   error
}

func newFakeNavigator() *fakeNavigator {
	return &fakeNavigator{fired: make(chan call, 32)}
}

func (f *fakeNavigator) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, c)
	f.fired <- c
	return nil
}

func (f *fakeNavigator) Next(ctx context.Context) error { return f.record(call{action: "next"}) }
func (f *fakeNavigator) Previous(ctx context.Context) error {
	return f.record(call{action: "previous"})
}
func (f *fakeNavigator) GoTo(ctx context.Context, slide int) error {
	return f.record(call{action: "go_to", slide: slide})
}

func (f *fakeNavigator) waitForCall(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.fired:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no navigation call observed")
	}
	return call{}
}

func (f *fakeNavigator) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.fired:
		t.Fatalf("unexpected navigation call %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func startKeywordWorker(t *testing.T, lines chan string, nav Navigator) *KeywordWorker {
	t.Helper()
	w, err := NewKeywordWorker(lines, nav, KeywordConfig{
		Next:     []string{"next slide"},
		Previous: []string{"previous slide"},
	}, testLogger())
	if err != nil {
		t.Fatalf("NewKeywordWorker: %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

func TestKeywordMatchIsCaseInsensitive(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	startKeywordWorker(t, lines, nav)

	lines <- "Please go to the Next Slide now"

	if c := nav.waitForCall(t); c.action != "next" {
		t.Errorf("action = %q, want next", c.action)
	}
}

func TestKeywordPreviousPhrase(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	startKeywordWorker(t, lines, nav)

	lines <- "okay, PREVIOUS SLIDE please"

	if c := nav.waitForCall(t); c.action != "previous" {
		t.Errorf("action = %q, want previous", c.action)
	}
}

func TestKeywordGoToSlideNumber(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	startKeywordWorker(t, lines, nav)

	lines <- "let's Go To Slide 7 for the numbers"

	c := nav.waitForCall(t)
	if c.action != "go_to" || c.slide != 7 {
		t.Errorf("call = %+v, want go_to slide 7", c)
	}
}

func TestKeywordNoMatchDoesNothing(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	startKeywordWorker(t, lines, nav)

	lines <- "completely unrelated sentence about roadmaps"

	nav.assertQuiet(t)
}

func TestKeywordNavigatorErrorDoesNotStopWorker(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	startKeywordWorker(t, lines, nav)

	nav.mu.Lock()
	nav.err = context.DeadlineExceeded
	nav.mu.Unlock()
	lines <- "next slide"
	nav.assertQuiet(t)

	nav.mu.Lock()
	nav.err = nil
	nav.mu.Unlock()
	lines <- "next slide"
	if c := nav.waitForCall(t); c.action != "next" {
		t.Errorf("worker did not recover after navigator error, got %+v", c)
	}
}

func TestKeywordOnTriggerHook(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	w, err := NewKeywordWorker(lines, nav, KeywordConfig{Next: []string{"next slide"}}, testLogger())
	if err != nil {
		t.Fatalf("NewKeywordWorker: %v", err)
	}
	actions := make(chan string, 1)
	w.OnTrigger = func(action string) { actions <- action }
	w.Start()
	t.Cleanup(w.Stop)

	lines <- "next slide"
	nav.waitForCall(t)

	select {
	case a := <-actions:
		if a != "next" {
			t.Errorf("OnTrigger action = %q, want next", a)
		}
	case <-time.After(time.Second):
		t.Fatal("OnTrigger was not called")
	}
}

func TestKeywordWorkerStopsOnClosedChannel(t *testing.T) {
	lines := make(chan string)
	nav := newFakeNavigator()
	w, err := NewKeywordWorker(lines, nav, KeywordConfig{}, testLogger())
	if err != nil {
		t.Fatalf("NewKeywordWorker: %v", err)
	}
	w.Start()

	close(lines)
	done := make(chan struct{})
	go func() { w.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after its line channel closed")
	}
}
