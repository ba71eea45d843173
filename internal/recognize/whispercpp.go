package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"whisper-batch/internal/command"
	"whisper-batch/internal/domain"
)

// WhisperCPPConfig locates the whisper.cpp CLI and its ggml models.
type WhisperCPPConfig struct {
	BinaryPath string
	ModelDir   string
}

// WhisperCPP runs the whisper.cpp CLI and streams segments from its JSON output.
type WhisperCPP struct {
	cfg       WhisperCPPConfig
	runner    command.Runner
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
}

// NewWhisperCPP constructs the production whisper.cpp adapter.
func NewWhisperCPP(cfg WhisperCPPConfig) *WhisperCPP {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		cfg.BinaryPath = "whisper-cli"
	}
	return &WhisperCPP{
		cfg:       cfg,
		runner:    command.ExecRunner{},
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
	}
}

// NewWhisperCPPForTests constructs the adapter with an injected process runner.
func NewWhisperCPPForTests(cfg WhisperCPPConfig, runner command.Runner) *WhisperCPP {
	w := NewWhisperCPP(cfg)
	w.runner = runner
	return w
}

// Name returns the backend identifier.
func (w *WhisperCPP) Name() string {
	return domain.BackendWhisperCPP
}

// ModelFileName maps a model name to its ggml file.
func ModelFileName(model string) string {
	return "ggml-" + model + ".bin"
}

// ModelPath returns where the ggml file for model is expected.
func (w *WhisperCPP) ModelPath(model string) string {
	return filepath.Join(w.cfg.ModelDir, ModelFileName(model))
}

// Transcribe runs whisper.cpp to completion and returns a stream over its JSON result.
func (w *WhisperCPP) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	modelPath := w.ModelPath(req.Options.Model)
	if _, err := w.stat(modelPath); err != nil {
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: fmt.Sprintf("model file not found: %s", modelPath),
			Err:     err,
		}
	}

	tempDir, err := w.mkdirTemp("", "whisper-batch-*")
	if err != nil {
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	cleanup := func() error { return w.removeAll(tempDir) }

	outBase := filepath.Join(tempDir, "segments")
	args := buildWhisperArgs(modelPath, req.AudioPath, outBase, req.Options)
	res, runErr := w.runner.Run(ctx, w.cfg.BinaryPath, args...)
	log := command.NewLog(w.cfg.BinaryPath, args, res)
	if req.OnLog != nil {
		req.OnLog(log)
	}
	if runErr != nil {
		_ = cleanup()
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: "whisper.cpp transcription failed",
			Log:     log,
			Err:     runErr,
		}
	}

	f, err := os.Open(outBase + ".json")
	if err != nil {
		_ = cleanup()
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: "whisper.cpp completed but JSON output is missing",
			Log:     log,
			Err:     err,
		}
	}

	dec := json.NewDecoder(f)
	language, found, err := seekTranscription(dec)
	if err != nil {
		_ = f.Close()
		_ = cleanup()
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: "cannot parse whisper.cpp JSON output",
			Log:     log,
			Err:     err,
		}
	}

	info := Info{Backend: w.Name(), Language: language}
	if language == "" {
		info.Language = req.Options.Language
	}

	seq := func(yield func(domain.Segment, error) bool) {
		if !found {
			return
		}
		for dec.More() {
			var item cppSegment
			if err := dec.Decode(&item); err != nil {
				yield(domain.Segment{}, fmt.Errorf("decode whisper.cpp segment: %w", err))
				return
			}
			if !yield(item.segment(), nil) {
				return
			}
		}
	}

	return NewTranscript(info, seq, func() error {
		closeErr := f.Close()
		return errors.Join(closeErr, cleanup())
	}), nil
}

// cppSegment mirrors one element of whisper.cpp's "transcription" array.
type cppSegment struct {
	Offsets struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text string `json:"text"`
}

func (s cppSegment) segment() domain.Segment {
	return domain.Segment{
		Start: float64(s.Offsets.From) / 1000,
		End:   float64(s.Offsets.To) / 1000,
		Text:  s.Text,
	}
}

// seekTranscription walks top-level keys until the decoder sits inside the
// "transcription" array. Keys seen before it are decoded or skipped; the
// detected language is taken from "result" when it precedes the array.
func seekTranscription(dec *json.Decoder) (language string, found bool, err error) {
	tok, err := dec.Token()
	if err != nil {
		return "", false, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", false, fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", false, err
		}
		key, _ := tok.(string)

		switch key {
		case "transcription":
			tok, err := dec.Token()
			if err != nil {
				return "", false, err
			}
			if delim, ok := tok.(json.Delim); !ok || delim != '[' {
				return "", false, fmt.Errorf("expected transcription array, got %v", tok)
			}
			return language, true, nil
		case "result":
			var result struct {
				Language string `json:"language"`
			}
			if err := dec.Decode(&result); err != nil {
				return "", false, err
			}
			language = result.Language
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return "", false, err
			}
		}
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	return language, false, nil
}

// buildWhisperArgs builds whisper.cpp args for JSON segment export.
func buildWhisperArgs(modelPath, audioPath, outBase string, opts Options) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-np",
	}
	if lang := strings.TrimSpace(opts.Language); lang != "" {
		args = append(args, "-l", lang)
	}
	if !opts.ConditionOnPreviousText {
		args = append(args, "-mc", "0")
	}
	if opts.Device != domain.DeviceCUDA {
		args = append(args, "-ng")
	}
	return args
}
