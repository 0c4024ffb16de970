package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/presenterkit/slidepilot/audio"
)

// completedEvent is the only inbound event type this pipeline consumes; it
// carries the finalized transcript of one utterance.
const completedEvent = "conversation.item.input_audio_transcription.completed"

// Config contains realtime transcription session settings.
type Config struct {
	URL      string
	APIKey   string
	Model    string
	Prompt   string
	Language string
}

// sessionUpdate is the one configuration message sent on connection open.
type sessionUpdate struct {
	Type    string `json:"type"`
	Session struct {
		InputAudioFormat        string `json:"input_audio_format"`
		InputAudioTranscription struct {
			Model    string `json:"model"`
			Prompt   string `json:"prompt,omitempty"`
			Language string `json:"language,omitempty"`
		} `json:"input_audio_transcription"`
	} `json:"session"`
}

// appendBuffer carries one base64-encoded audio frame.
type appendBuffer struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// serverEvent is the envelope of every inbound message. Fields other than
// the transcript of a completed event are ignored.
type serverEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

// RealtimeClient holds a persistent bidirectional streaming connection to
// the hosted realtime transcription endpoint. Audio frames flow up as
// base64 append-buffer messages; finalized transcript lines flow back on
// the Transcripts channel.
type RealtimeClient struct {
	conn        *websocket.Conn
	logger      *slog.Logger
	transcripts chan string

	// gorilla/websocket allows a single concurrent writer.
	writeMu sync.Mutex
}

// Dial connects to the transcription endpoint and sends the session
// configuration message declaring audio format, model, prompt and language.
func Dial(cfg Config, logger *slog.Logger) (*RealtimeClient, error) {
	header := http.Header{
		"Authorization": {"Bearer " + cfg.APIKey},
		"OpenAI-Beta":   {"realtime=v1"},
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, header)
	if err != nil {
		return nil, errors.Wrap(err, "dial realtime transcription endpoint")
	}

	var update sessionUpdate
	update.Type = "transcription_session.update"
	update.Session.InputAudioFormat = "pcm16"
	update.Session.InputAudioTranscription.Model = cfg.Model
	update.Session.InputAudioTranscription.Prompt = cfg.Prompt
	update.Session.InputAudioTranscription.Language = cfg.Language

	if err := conn.WriteJSON(update); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "send transcription session config")
	}

	logger.Info("connected to realtime transcription endpoint",
		slog.String("model", cfg.Model),
		slog.String("language", cfg.Language),
	)

	return &RealtimeClient{
		conn:        conn,
		logger:      logger,
		transcripts: make(chan string),
	}, nil
}

// Transcripts returns the channel of finalized transcript lines. It is
// closed when Run returns.
func (c *RealtimeClient) Transcripts() <-chan string {
	return c.transcripts
}

// Run drives the two duplex tasks over the connection: a sender streaming
// frames from src and a receiver extracting completed transcripts. It
// returns when ctx is cancelled (nil error), the audio source is exhausted
// (nil error), or either side of the connection fails. The connection is
// closed on every exit path; closing src remains the caller's job.
func (c *RealtimeClient) Run(ctx context.Context, src audio.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(c.transcripts)
	defer c.conn.Close()

	errc := make(chan error, 2)

	go func() { errc <- c.send(ctx, src) }()
	go func() { errc <- c.receive(ctx) }()

	err := <-errc
	// Unblock the other task: cancel stops the sender between frames,
	// closing the connection unblocks a pending read.
	cancel()
	c.conn.Close()
	<-errc
	return err
}

// send loops reading one frame, base64-encoding it, and pushing it up as an
// append-buffer message. Cancellation stops it cleanly without an error.
func (c *RealtimeClient) send(ctx context.Context, src audio.Source) error {
	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("audio source exhausted")
				return nil
			}
			return errors.Wrap(err, "audio device read")
		}

		msg := appendBuffer{
			Type:  "input_audio_buffer.append",
			Audio: base64.StdEncoding.EncodeToString(frame),
		}
		if err := c.writeJSON(msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "send audio frame")
		}
	}
}

// receive loops over inbound events, forwarding only completed transcripts.
func (c *RealtimeClient) receive(ctx context.Context) error {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("transcription connection closed", slog.String("reason", err.Error()))
				return nil
			}
			return errors.Wrap(err, "read transcription event")
		}

		text, ok := transcriptFromEvent(msg, c.logger)
		if !ok {
			continue
		}

		select {
		case c.transcripts <- text:
		case <-ctx.Done():
			return nil
		}
	}
}

// transcriptFromEvent extracts the transcript from a completed-transcription
// event. All other event types (deltas, speech start/stop markers, session
// acks) are logged at debug level and dropped.
func transcriptFromEvent(msg []byte, logger *slog.Logger) (string, bool) {
	var ev serverEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		logger.Debug("unparseable transcription event", slog.String("error", err.Error()))
		return "", false
	}
	if ev.Type != completedEvent {
		logger.Debug("ignoring transcription event", slog.String("type", ev.Type))
		return "", false
	}
	return ev.Transcript, true
}

// writeJSON serializes a write to the connection.
func (c *RealtimeClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close tears down the connection with a normal closure frame, mirroring
// the polite shutdown the endpoint expects.
func (c *RealtimeClient) Close() error {
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
	c.writeMu.Unlock()
	if err != nil {
		return c.conn.Close()
	}
	return c.conn.Close()
}
