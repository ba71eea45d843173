// Package recognize adapts external speech-to-text engines to a lazy segment stream.
package recognize

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"whisper-batch/internal/command"
	"whisper-batch/internal/domain"
)

// StageTranscribing names the recognition stage in errors and events.
const StageTranscribing = "transcribing"

// Options selects the model and decoding behavior for one audio file.
type Options struct {
	Model    string
	Language string
	Device   domain.Device
	// ConditionOnPreviousText feeds earlier segment text into later decoding windows.
	ConditionOnPreviousText bool
}

// Request is one recognition call.
type Request struct {
	AudioPath string
	Options   Options
	OnLog     func(command.Log)
}

// Info is metadata reported alongside the segments.
type Info struct {
	Backend  string
	Language string
}

// Recognizer turns an audio file into timed text.
type Recognizer interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}

// Transcript is a finite, forward-only stream of segments in chronological order.
// Close must be called once the caller is done with it.
type Transcript struct {
	Info Info

	seq       iter.Seq2[domain.Segment, error]
	closeOnce sync.Once
	cleanup   func() error
	closeErr  error
}

// NewTranscript wraps a segment sequence; cleanup runs once on Close.
func NewTranscript(info Info, seq iter.Seq2[domain.Segment, error], cleanup func() error) *Transcript {
	return &Transcript{Info: info, seq: seq, cleanup: cleanup}
}

// SliceSeq yields already-materialized segments.
func SliceSeq(segments []domain.Segment) iter.Seq2[domain.Segment, error] {
	return func(yield func(domain.Segment, error) bool) {
		for _, seg := range segments {
			if !yield(seg, nil) {
				return
			}
		}
	}
}

// Segments returns the stream. It can be ranged over only once.
func (t *Transcript) Segments() iter.Seq2[domain.Segment, error] {
	if t == nil || t.seq == nil {
		return SliceSeq(nil)
	}
	return t.seq
}

// Close releases temporary files held by the stream.
func (t *Transcript) Close() error {
	if t == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		if t.cleanup != nil {
			t.closeErr = t.cleanup()
		}
	})
	return t.closeErr
}

// New builds the recognizer selected in settings.
func New(settings domain.Settings) (Recognizer, error) {
	switch settings.Backend {
	case "", domain.BackendWhisperCPP:
		return NewWhisperCPP(WhisperCPPConfig{
			BinaryPath: settings.WhisperPath,
			ModelDir:   settings.ModelDir,
		}), nil
	case domain.BackendRemote:
		if settings.RemoteURL == "" {
			return nil, fmt.Errorf("remote backend requires a base URL")
		}
		return NewRemote(RemoteConfig{
			BaseURL: settings.RemoteURL,
			Token:   settings.RemoteToken,
			Model:   settings.RemoteModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown recognition backend: %s", settings.Backend)
	}
}
