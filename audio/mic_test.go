package audio

import "testing"

// argValue returns the value following flag in args.
func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not present in %v", flag, args)
	return ""
}

func TestCaptureArgsFollowConfig(t *testing.T) {
	cfg := Config{
		SampleRate:   16000,
		Channels:     1,
		FrameSamples: 1024,
		InputFormat:  "pulse",
		Device:       "mic0",
		FFmpegPath:   "ffmpeg",
	}
	args := captureArgs(cfg)

	if got := argValue(t, args, "-ar"); got != "16000" {
		t.Errorf("-ar = %q, want 16000", got)
	}
	if got := argValue(t, args, "-ac"); got != "1" {
		t.Errorf("-ac = %q, want 1", got)
	}
	if got := argValue(t, args, "-i"); got != "mic0" {
		t.Errorf("-i = %q, want mic0", got)
	}
	if got := argValue(t, args, "-f"); got != "pulse" {
		t.Errorf("input -f = %q, want pulse", got)
	}
	if args[len(args)-1] != "-" {
		t.Errorf("last arg = %q, want stdout pipe", args[len(args)-1])
	}
	if args[len(args)-2] != "s16le" {
		t.Errorf("output format = %q, want s16le", args[len(args)-2])
	}
}
