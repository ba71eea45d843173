package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"whisper-batch/internal/command"
	"whisper-batch/internal/domain"
)

// fakeRunner simulates ffmpeg.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (command.Result, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	if f.run == nil {
		return command.Result{}, nil
	}
	return f.run(ctx, name, args...)
}

// TestClassify covers every recognized suffix and a few unsupported ones.
func TestClassify(t *testing.T) {
	cases := map[string]domain.MediaKind{
		"/in/a.mp4":        domain.MediaKindVideo,
		"/in/a.mov":        domain.MediaKindVideo,
		"/in/a.avi":        domain.MediaKindVideo,
		"/in/a.MKV":        domain.MediaKindVideo,
		"/in/a.mp3":        domain.MediaKindAudio,
		"/in/a.wav":        domain.MediaKindAudio,
		"/in/a.flac":       domain.MediaKindUnsupported,
		"/in/notes.txt":    domain.MediaKindUnsupported,
		"/in/no-extension": domain.MediaKindUnsupported,
		"/in/mp4":          domain.MediaKindUnsupported,
	}
	for path, want := range cases {
		if got := Classify(path); got != want {
			t.Errorf("Classify(%q) = %s, want %s", path, got, want)
		}
	}
}

// TestTempAudioPath keeps the directory and base name.
func TestTempAudioPath(t *testing.T) {
	if got := TempAudioPath("/videos/talk.v2.mkv"); got != "/videos/talk.v2.mp3" {
		t.Fatalf("TempAudioPath = %q", got)
	}
}

// TestExtractWritesSiblingMP3 checks the happy path and ffmpeg args.
func TestExtractWritesSiblingMP3(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mp4")
	mustWriteFile(t, input, "video")

	var gotArgs []string
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		if name != "ffmpeg-custom" {
			t.Fatalf("command = %q, want ffmpeg-custom", name)
		}
		gotArgs = append([]string(nil), args...)
		mustWriteFile(t, args[len(args)-1], "mp3")
		return command.Result{}, nil
	}}

	var logs []command.Log
	out, err := NewExtractorForTests("ffmpeg-custom", runner).Extract(context.Background(), input, func(l command.Log) {
		logs = append(logs, l)
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out != filepath.Join(root, "clip.mp3") {
		t.Fatalf("out = %q", out)
	}
	if len(logs) != 1 || logs[0].Command != "ffmpeg-custom" {
		t.Fatalf("logs = %+v", logs)
	}

	want := buildExtractArgs(input, out)
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

// TestExtractFailureReturnsStageError checks command context on failure.
func TestExtractFailureReturnsStageError(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mov")
	mustWriteFile(t, input, "video")

	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		mustWriteFile(t, args[len(args)-1], "partial")
		return command.Result{Stderr: "no audio stream", ExitCode: 1}, errors.New("exit status 1")
	}}

	_, err := NewExtractorForTests("ffmpeg", runner).Extract(context.Background(), input, nil)
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Stage != StageExtracting || cmdErr.Log.ExitCode != 1 {
		t.Fatalf("unexpected error: %+v", cmdErr)
	}
	if _, statErr := os.Stat(filepath.Join(root, "clip.mp3")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("partial mp3 should be removed, stat err = %v", statErr)
	}
}

// TestExtractMissingOutput reports ffmpeg runs that leave no file behind.
func TestExtractMissingOutput(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.avi")
	mustWriteFile(t, input, "video")

	_, err := NewExtractorForTests("ffmpeg", &fakeRunner{}).Extract(context.Background(), input, nil)
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Message != "ffmpeg completed but audio file is missing" {
		t.Fatalf("message = %q", cmdErr.Message)
	}
}

// TestExtractMissingInput fails before running ffmpeg.
func TestExtractMissingInput(t *testing.T) {
	called := false
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		called = true
		return command.Result{}, nil
	}}

	_, err := NewExtractorForTests("ffmpeg", runner).Extract(context.Background(), "/does/not/exist.mp4", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Fatal("ffmpeg should not run for a missing input")
	}
}

// TestProbeWAV reads header fields from a generated file.
func TestProbeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 8000),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	info, err := ProbeWAV(path)
	if err != nil {
		t.Fatalf("ProbeWAV() error = %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Fatalf("info = %+v", info)
	}
	if diff := info.Duration - 500*time.Millisecond; diff < -time.Millisecond || diff > time.Millisecond {
		t.Fatalf("duration = %s, want 500ms", info.Duration)
	}
}

// TestProbeWAVRejectsGarbage checks invalid header handling.
func TestProbeWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.wav")
	mustWriteFile(t, path, "definitely not riff data")

	if _, err := ProbeWAV(path); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("error = %v, want ErrNotWAV", err)
	}
}

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
