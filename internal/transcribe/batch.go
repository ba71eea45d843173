// Package transcribe runs the per-file transcription loop of one batch.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"whisper-batch/internal/command"
	"whisper-batch/internal/domain"
	"whisper-batch/internal/media"
	"whisper-batch/internal/recognize"
)

// CombinedFileName is the single output written when inputs are saved as one file.
const CombinedFileName = "transcription.txt"

// Extractor produces a standalone audio file from a video.
type Extractor interface {
	Extract(ctx context.Context, videoPath string, onLog func(command.Log)) (string, error)
}

// Request carries the captured selection and progress callbacks for one batch.
type Request struct {
	Snapshot  domain.Snapshot
	OnStage   func(stage domain.JobStatus, input string)
	OnMessage func(input, message string)
	OnCommand func(log command.Log)
	OnOutput  func(input, outputPath string)
}

// InputError records why one input produced no transcript.
type InputError struct {
	Input string
	Err   error
}

// BatchError lists inputs that failed while the rest of the batch continued.
type BatchError struct {
	Failed []InputError
}

// Error summarizes the failed inputs.
func (e *BatchError) Error() string {
	if e == nil || len(e.Failed) == 0 {
		return ""
	}
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, filepath.Base(f.Input))
	}
	return fmt.Sprintf("%d input(s) failed: %s", len(e.Failed), strings.Join(names, ", "))
}

// Unwrap exposes every per-input error for errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Summary describes what a batch produced.
type Summary struct {
	Transcribed int
	Skipped     []string
	Failed      []InputError
	Outputs     []string
}

// Batch transcribes inputs strictly one after another.
type Batch struct {
	extractor  Extractor
	recognizer recognize.Recognizer
	create     func(name string) (*os.File, error)
	remove     func(name string) error
	probeWAV   func(path string) (media.WAVInfo, error)
}

// NewBatch wires the extraction and recognition services.
func NewBatch(extractor Extractor, recognizer recognize.Recognizer) *Batch {
	return &Batch{
		extractor:  extractor,
		recognizer: recognizer,
		create:     os.Create,
		remove:     os.Remove,
		probeWAV:   media.ProbeWAV,
	}
}

// destination hands out the writer for one input. The release function is
// called once with whether the input succeeded; a failed input leaves no
// lines behind in either output mode.
type destination func(input string) (io.Writer, func(ok bool) error, error)

// Run processes every captured input in selection order. A failing input is
// reported and skipped; the returned error is a *BatchError listing those
// inputs, or the context error when the batch was cancelled.
func (b *Batch) Run(ctx context.Context, req Request) (summary Summary, err error) {
	snap := req.Snapshot
	if snap.SaveDir == "" {
		return Summary{}, fmt.Errorf("output directory is required")
	}

	dest := b.perFileDestination(snap.SaveDir, req, &summary)
	if snap.SaveAsOne {
		combinedPath := filepath.Join(snap.SaveDir, CombinedFileName)
		f, createErr := b.create(combinedPath)
		if createErr != nil {
			return Summary{}, fmt.Errorf("create %s: %w", combinedPath, createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", combinedPath, closeErr)
			}
			if err == nil || isBatchError(err) {
				summary.Outputs = append(summary.Outputs, combinedPath)
				emitOutput(req.OnOutput, "", combinedPath)
			}
		}()
		dest = func(string) (io.Writer, func(bool) error, error) {
			var buf bytes.Buffer
			return &buf, func(ok bool) error {
				if !ok {
					return nil
				}
				if _, writeErr := buf.WriteTo(f); writeErr != nil {
					return fmt.Errorf("write %s: %w", combinedPath, writeErr)
				}
				return nil
			}, nil
		}
	}

	for _, input := range snap.Files() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}

		if media.Classify(input) == domain.MediaKindUnsupported {
			emitMessage(req.OnMessage, input, "Unsupported file format: "+input)
			summary.Skipped = append(summary.Skipped, input)
			continue
		}

		emitMessage(req.OnMessage, input, "Transcribing "+input+"...")
		if inputErr := b.transcribeInput(ctx, req, input, dest); inputErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(inputErr, ctxErr) {
				return summary, ctxErr
			}
			emitMessage(req.OnMessage, input, fmt.Sprintf("Failed to transcribe %s: %v", input, inputErr))
			summary.Failed = append(summary.Failed, InputError{Input: input, Err: inputErr})
			continue
		}
		summary.Transcribed++
	}

	if len(summary.Failed) > 0 {
		return summary, &BatchError{Failed: summary.Failed}
	}
	return summary, nil
}

// perFileDestination creates <saveDir>/<input base name>.txt for each input.
// The file of a failed input is removed so no partial transcript is left.
func (b *Batch) perFileDestination(saveDir string, req Request, summary *Summary) destination {
	return func(input string) (io.Writer, func(bool) error, error) {
		outPath := filepath.Join(saveDir, filepath.Base(input)+".txt")
		f, err := b.create(outPath)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", outPath, err)
		}
		return f, func(ok bool) error {
			closeErr := f.Close()
			if !ok {
				_ = b.remove(outPath)
				return nil
			}
			if closeErr != nil {
				_ = b.remove(outPath)
				return fmt.Errorf("close %s: %w", outPath, closeErr)
			}
			summary.Outputs = append(summary.Outputs, outPath)
			emitOutput(req.OnOutput, input, outPath)
			return nil
		}, nil
	}
}

// transcribeInput extracts audio when needed, runs recognition and writes
// every segment. Any temporary audio it created is removed before returning.
func (b *Batch) transcribeInput(ctx context.Context, req Request, input string, dest destination) (err error) {
	snap := req.Snapshot
	audioPath := input

	switch media.Classify(input) {
	case domain.MediaKindVideo:
		emitStage(req.OnStage, domain.JobStatusExtracting, input)
		extracted, extractErr := b.extractor.Extract(ctx, input, req.OnCommand)
		if extractErr != nil {
			return extractErr
		}
		audioPath = extracted
		defer func() {
			if rmErr := b.remove(extracted); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				emitMessage(req.OnMessage, input, fmt.Sprintf("Could not remove temporary audio %s: %v", extracted, rmErr))
			}
		}()
	case domain.MediaKindAudio:
		if strings.EqualFold(filepath.Ext(input), ".wav") && b.probeWAV != nil {
			if info, probeErr := b.probeWAV(input); probeErr == nil {
				emitMessage(req.OnMessage, input, fmt.Sprintf(
					"%s: %.1fs, %d Hz, %d channel(s)",
					filepath.Base(input), info.Duration.Seconds(), info.SampleRate, info.Channels,
				))
			} else {
				emitMessage(req.OnMessage, input, fmt.Sprintf("Could not read WAV header of %s: %v", input, probeErr))
			}
		}
	}

	emitStage(req.OnStage, domain.JobStatusTranscribing, input)
	w, release, err := dest(input)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := release(err == nil); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	transcript, err := b.recognizer.Transcribe(ctx, recognize.Request{
		AudioPath: audioPath,
		Options: recognize.Options{
			Model:                   snap.ModelName,
			Language:                snap.Language,
			Device:                  snap.Device,
			ConditionOnPreviousText: false,
		},
		OnLog: req.OnCommand,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := transcript.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	emitStage(req.OnStage, domain.JobStatusWriting, input)
	written := 0
	for seg, segErr := range transcript.Segments() {
		if segErr != nil {
			return segErr
		}
		if err := writeSegment(w, seg); err != nil {
			return fmt.Errorf("write transcript line: %w", err)
		}
		written++
	}

	emitMessage(req.OnMessage, input, fmt.Sprintf("Wrote %d segment(s) for %s", written, filepath.Base(input)))
	return nil
}

func isBatchError(err error) bool {
	var batchErr *BatchError
	return errors.As(err, &batchErr)
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(domain.JobStatus, string), stage domain.JobStatus, input string) {
	if cb != nil {
		cb(stage, input)
	}
}

// emitMessage forwards user-facing log lines when callback is configured.
func emitMessage(cb func(string, string), input, message string) {
	if cb != nil {
		cb(input, message)
	}
}

// emitOutput forwards finished output paths when callback is configured.
func emitOutput(cb func(string, string), input, outputPath string) {
	if cb != nil {
		cb(input, outputPath)
	}
}
