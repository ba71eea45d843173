package recognize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"whisper-batch/internal/command"
	"whisper-batch/internal/domain"
)

// fakeRunner simulates whisper.cpp execution.
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

const sampleCPPJSON = `{
  "systeminfo": "AVX = 1",
  "model": {"type": "base", "multilingual": true},
  "params": {"model": "ggml-base.bin", "language": "en", "translate": false},
  "result": {"language": "en"},
  "transcription": [
    {"timestamps": {"from": "00:00:00,000", "to": "00:00:01,500"}, "offsets": {"from": 0, "to": 1500}, "text": " Hello"},
    {"timestamps": {"from": "00:00:01,500", "to": "00:00:03,250"}, "offsets": {"from": 1500, "to": 3250}, "text": " world."}
  ]
}`

// TestWhisperCPPTranscribeStreamsSegments checks args, parsing and cleanup.
func TestWhisperCPPTranscribeStreamsSegments(t *testing.T) {
	modelDir := t.TempDir()
	mustWriteFile(t, filepath.Join(modelDir, "ggml-base.bin"), "model")

	var gotName string
	var gotArgs []string
	var outBase string
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		gotName = name
		gotArgs = append([]string(nil), args...)
		outBase = argValue(args, "-of")
		mustWriteFile(t, outBase+".json", sampleCPPJSON)
		return command.Result{Stdout: "ok"}, nil
	}}

	w := NewWhisperCPPForTests(WhisperCPPConfig{BinaryPath: "whisper-custom", ModelDir: modelDir}, runner)
	var logs []command.Log
	tr, err := w.Transcribe(context.Background(), Request{
		AudioPath: "/audio/clip.mp3",
		Options:   Options{Model: "base", Language: "en", Device: domain.DeviceCPU},
		OnLog:     func(l command.Log) { logs = append(logs, l) },
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if gotName != "whisper-custom" {
		t.Fatalf("binary = %q", gotName)
	}
	if got := argValue(gotArgs, "-m"); got != filepath.Join(modelDir, "ggml-base.bin") {
		t.Fatalf("model arg = %q", got)
	}
	if got := argValue(gotArgs, "-mc"); got != "0" {
		t.Fatalf("max-context arg = %q, want 0", got)
	}
	if !hasArg(gotArgs, "-ng") {
		t.Fatalf("cpu device should pass -ng, args=%v", gotArgs)
	}
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if tr.Info.Language != "en" || tr.Info.Backend != domain.BackendWhisperCPP {
		t.Fatalf("info = %+v", tr.Info)
	}

	var got []domain.Segment
	for seg, err := range tr.Segments() {
		if err != nil {
			t.Fatalf("segment error: %v", err)
		}
		got = append(got, seg)
	}
	want := []domain.Segment{
		{Start: 0, End: 1.5, Text: " Hello"},
		{Start: 1.5, End: 3.25, Text: " world."},
	}
	if len(got) != len(want) {
		t.Fatalf("segments = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(outBase)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp dir should be removed, stat err = %v", err)
	}
}

// TestWhisperCPPEmptyTranscription yields nothing for silent audio.
func TestWhisperCPPEmptyTranscription(t *testing.T) {
	modelDir := t.TempDir()
	mustWriteFile(t, filepath.Join(modelDir, "ggml-small.bin"), "model")

	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		mustWriteFile(t, argValue(args, "-of")+".json", `{"result": {"language": "zh"}, "transcription": []}`)
		return command.Result{}, nil
	}}

	tr, err := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: modelDir}, runner).Transcribe(context.Background(), Request{
		AudioPath: "/audio/silence.wav",
		Options:   Options{Model: "small", Language: "zh", Device: domain.DeviceCUDA},
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	defer tr.Close()

	count := 0
	for range tr.Segments() {
		count++
	}
	if count != 0 {
		t.Fatalf("segments = %d, want 0", count)
	}
}

// TestWhisperCPPMissingModel fails before running the binary.
func TestWhisperCPPMissingModel(t *testing.T) {
	called := false
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		called = true
		return command.Result{}, nil
	}}

	_, err := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: t.TempDir()}, runner).Transcribe(context.Background(), Request{
		AudioPath: "/audio/a.wav",
		Options:   Options{Model: "large-v3"},
	})
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) || cmdErr.Stage != StageTranscribing {
		t.Fatalf("error = %v, want transcribing stage error", err)
	}
	if called {
		t.Fatal("binary should not run without a model file")
	}
}

// TestWhisperCPPFailureCleansTempDir checks failure cleanup path.
func TestWhisperCPPFailureCleansTempDir(t *testing.T) {
	modelDir := t.TempDir()
	mustWriteFile(t, filepath.Join(modelDir, "ggml-base.bin"), "model")

	var tempDir string
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		tempDir = filepath.Dir(argValue(args, "-of"))
		return command.Result{Stderr: "bad model", ExitCode: 1}, errors.New("exit status 1")
	}}

	_, err := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: modelDir}, runner).Transcribe(context.Background(), Request{
		AudioPath: "/audio/a.wav",
		Options:   Options{Model: "base"},
	})
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Log.ExitCode != 1 || cmdErr.Log.Stderr != "bad model" {
		t.Fatalf("command log = %+v", cmdErr.Log)
	}
	if _, statErr := os.Stat(tempDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("temp dir should be removed on failure, stat err = %v", statErr)
	}
}

// TestWhisperCPPMalformedSegment surfaces decode errors through the stream.
func TestWhisperCPPMalformedSegment(t *testing.T) {
	modelDir := t.TempDir()
	mustWriteFile(t, filepath.Join(modelDir, "ggml-base.bin"), "model")

	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		mustWriteFile(t, argValue(args, "-of")+".json", `{"transcription": [{"offsets": {"from": 0, "to": 10}, "text": "a"}, {"offsets": "oops"}]}`)
		return command.Result{}, nil
	}}

	tr, err := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: modelDir}, runner).Transcribe(context.Background(), Request{
		AudioPath: "/audio/a.wav",
		Options:   Options{Model: "base", Language: "fr"},
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	defer tr.Close()

	if tr.Info.Language != "fr" {
		t.Fatalf("language = %q, want requested fr", tr.Info.Language)
	}

	var segs int
	var streamErr error
	for _, err := range tr.Segments() {
		if err != nil {
			streamErr = err
			break
		}
		segs++
	}
	if segs != 1 || streamErr == nil {
		t.Fatalf("segs = %d, err = %v; want 1 segment then an error", segs, streamErr)
	}
}

// TestBuildWhisperArgsConditioning verifies -mc is omitted only when conditioning is on.
func TestBuildWhisperArgsConditioning(t *testing.T) {
	args := buildWhisperArgs("/m.bin", "/a.wav", "/out/base", Options{Language: "de", Device: domain.DeviceCUDA, ConditionOnPreviousText: true})
	if hasArg(args, "-mc") {
		t.Fatalf("did not expect -mc in args: %v", args)
	}
	if hasArg(args, "-ng") {
		t.Fatalf("cuda device should not pass -ng: %v", args)
	}
	if got := argValue(args, "-l"); got != "de" {
		t.Fatalf("language arg = %q, want de", got)
	}
}

// TestNewSelectsBackend checks backend selection from settings.
func TestNewSelectsBackend(t *testing.T) {
	r, err := New(domain.Settings{Backend: domain.BackendWhisperCPP, ModelDir: "/models"})
	if err != nil || r.Name() != domain.BackendWhisperCPP {
		t.Fatalf("New(whisper.cpp) = %v, %v", r, err)
	}

	r, err = New(domain.Settings{Backend: domain.BackendRemote, RemoteURL: "http://localhost:8000/"})
	if err != nil || r.Name() != domain.BackendRemote {
		t.Fatalf("New(remote) = %v, %v", r, err)
	}

	if _, err := New(domain.Settings{Backend: domain.BackendRemote}); err == nil {
		t.Fatal("expected error for remote backend without URL")
	}
	if _, err := New(domain.Settings{Backend: "vosk"}); err == nil {
		t.Fatal("expected error for unknown backend")
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

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
