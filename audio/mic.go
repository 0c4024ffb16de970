package audio

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Config describes the microphone capture format.
type Config struct {
	SampleRate   int
	Channels     int
	FrameSamples int
	InputFormat  string // ffmpeg demuxer: alsa, pulse, avfoundation, dshow
	Device       string
	FFmpegPath   string
}

// FrameBytes returns the byte size of one s16le frame.
func (c Config) FrameBytes() int {
	return c.FrameSamples * c.Channels * 2
}

// MicSource captures the microphone by running ffmpeg with the configured
// input demuxer and reading raw s16le PCM from its stdout pipe. Close kills
// the process, which releases the device and unblocks any pending read.
type MicSource struct {
	cmd    *exec.Cmd
	frames *ReaderSource
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// captureArgs builds the ffmpeg command line: configured input demuxer and
// device in, raw PCM on stdout in the format the config describes.
func captureArgs(cfg Config) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", cfg.InputFormat,
		"-i", cfg.Device,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// OpenMic starts the capture process and returns a frame source.
func OpenMic(cfg Config, logger *slog.Logger) (*MicSource, error) {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return nil, errors.Wrapf(err, "%s not found on PATH", cfg.FFmpegPath)
	}

	cmd := exec.Command(cfg.FFmpegPath, captureArgs(cfg)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "open ffmpeg stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg capture")
	}

	logger.Info("microphone capture started",
		slog.String("input_format", cfg.InputFormat),
		slog.String("device", cfg.Device),
		slog.Int("frame_bytes", cfg.FrameBytes()),
	)

	return &MicSource{
		cmd:    cmd,
		frames: NewReaderSource(stdout, cfg.FrameBytes(), nil),
		logger: logger,
	}, nil
}

// ReadFrame returns the next capture frame.
func (m *MicSource) ReadFrame(ctx context.Context) ([]byte, error) {
	return m.frames.ReadFrame(ctx)
}

// Close terminates the capture process and reaps it. Always safe to call,
// including after a failed read.
func (m *MicSource) Close() error {
	m.closeOnce.Do(func() {
		if m.cmd.Process != nil {
			if err := m.cmd.Process.Kill(); err != nil {
				m.closeErr = errors.Wrap(err, "kill ffmpeg capture")
			}
		}
		// The process exits with an error status after Kill; that is the
		// expected shutdown path, not a failure worth surfacing.
		_ = m.cmd.Wait()
		m.logger.Info("microphone capture stopped")
	})
	return m.closeErr
}
