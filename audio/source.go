package audio

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Source yields fixed-size frames of raw PCM audio. A frame is the unit
// streamed to the transcription endpoint; at 16 kHz mono s16le, 1024 samples
// per frame is roughly 64 ms of audio.
type Source interface {
	// ReadFrame blocks until a full frame is available, the source is
	// exhausted, or ctx is cancelled. On cancellation it returns ctx.Err().
	ReadFrame(ctx context.Context) ([]byte, error)
	// Close releases the underlying device. Safe to call more than once.
	Close() error
}

// ReaderSource adapts an io.Reader into a Source by slicing it into
// fixed-size frames. It backs both the microphone capture (reading the
// ffmpeg stdout pipe) and tests (reading from a bytes.Reader).
type ReaderSource struct {
	r          io.Reader
	frameBytes int
	closer     io.Closer
}

// NewReaderSource wraps r into a Source emitting frames of frameBytes bytes.
// closer may be nil.
func NewReaderSource(r io.Reader, frameBytes int, closer io.Closer) *ReaderSource {
	return &ReaderSource{r: r, frameBytes: frameBytes, closer: closer}
}

// ReadFrame reads exactly one frame. A trailing short read is reported as
// io.EOF rather than a partial frame; the capture loop treats EOF as the end
// of the stream, not a device failure.
func (s *ReaderSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.frameBytes)
	_, err := io.ReadFull(s.r, buf)
	if err != nil {
		if ctx.Err() != nil {
			// The read was unblocked by teardown, not a device fault.
			return nil, ctx.Err()
		}
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read audio frame")
	}
	return buf, nil
}

// Close closes the wrapped reader if it is closeable.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
