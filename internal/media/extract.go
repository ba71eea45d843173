package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"whisper-batch/internal/command"
)

// StageExtracting names the extraction stage in errors and events.
const StageExtracting = "extracting"

// Extractor pulls the audio track out of a video with ffmpeg.
type Extractor struct {
	ffmpegPath string
	runner     command.Runner
	stat       func(name string) (os.FileInfo, error)
	remove     func(name string) error
}

// NewExtractor constructs the production extractor.
func NewExtractor(ffmpegPath string) *Extractor {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Extractor{
		ffmpegPath: ffmpegPath,
		runner:     command.ExecRunner{},
		stat:       os.Stat,
		remove:     os.Remove,
	}
}

// NewExtractorForTests constructs an extractor with an injected process runner.
func NewExtractorForTests(ffmpegPath string, runner command.Runner) *Extractor {
	return &Extractor{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		stat:       os.Stat,
		remove:     os.Remove,
	}
}

// Extract writes the video's audio as mp3 next to it and returns that path once
// the file is complete. onLog, when set, receives the ffmpeg invocation.
func (e *Extractor) Extract(ctx context.Context, videoPath string, onLog func(command.Log)) (string, error) {
	if _, err := e.stat(videoPath); err != nil {
		return "", &command.Error{
			Stage:   StageExtracting,
			Message: fmt.Sprintf("cannot access input media: %s", videoPath),
			Err:     err,
		}
	}

	outPath := TempAudioPath(videoPath)
	args := buildExtractArgs(videoPath, outPath)
	res, runErr := e.runner.Run(ctx, e.ffmpegPath, args...)
	log := command.NewLog(e.ffmpegPath, args, res)
	if onLog != nil {
		onLog(log)
	}
	if runErr != nil {
		_ = e.remove(outPath)
		return "", &command.Error{
			Stage:   StageExtracting,
			Message: "ffmpeg audio extraction failed",
			Log:     log,
			Err:     runErr,
		}
	}

	if _, err := e.stat(outPath); err != nil {
		return "", &command.Error{
			Stage:   StageExtracting,
			Message: "ffmpeg completed but audio file is missing",
			Log:     log,
			Err:     err,
		}
	}

	return outPath, nil
}

// buildExtractArgs builds ffmpeg args that drop video and encode audio as mp3.
func buildExtractArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outPath,
	}
}
