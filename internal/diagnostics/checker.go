package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"whisper-batch/internal/domain"
	"whisper-batch/internal/recognize"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes the checks relevant to the configured backend.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", settings.FFmpegPath),
	}

	if settings.Backend == domain.BackendRemote {
		items = append(items, checkRemote(settings.RemoteURL))
	} else {
		items = append(items,
			c.checkTool("whisper", settings.WhisperPath),
			c.checkModel(settings.ModelDir, settings.ModelName),
		)
	}

	if strings.TrimSpace(settings.SaveDir) != "" {
		items = append(items, c.checkSaveDir(settings.SaveDir))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable resolves on PATH or as a path.
func (c *Checker) checkTool(id, binary string) domain.DiagnosticItem {
	path, err := c.lookPath(binary)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + id,
			Name:    binary,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found: %s", binary),
			Hint:    "Install it and ensure the binary is available on PATH before starting a transcription.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + id,
		Name:    binary,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModel validates that the ggml file for the selected model exists.
func (c *Checker) checkModel(modelDir, modelName string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Whisper model",
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set the directory holding ggml-<model>.bin files."
		return item
	}

	path := filepath.Join(modelDir, recognize.ModelFileName(modelName))
	info, err := c.stat(path)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model %q is not downloaded: %s", modelName, path)
		} else {
			item.Message = fmt.Sprintf("Cannot access model file: %s", path)
		}
		item.Hint = "Download the model from the model list or choose another model."
		return item
	}
	if info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model path is a directory: %s", path)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model file found: %s", path)
	return item
}

// checkRemote validates the remote endpoint is configured.
func checkRemote(baseURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "remote",
		Name: "Remote endpoint",
	}
	if strings.TrimSpace(baseURL) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Remote transcription URL is empty."
		item.Hint = "Set remote_url in the settings file or switch backend to whisper.cpp."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "Using " + baseURL
	return item
}

// checkSaveDir validates output directory existence and write access.
func (c *Checker) checkSaveDir(saveDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "save_dir",
		Name: "Output directory",
	}

	info, err := c.stat(saveDir)
	if err != nil || !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory does not exist: %s", saveDir)
		item.Hint = "Choose an existing directory for transcripts."
		return item
	}

	tmpFile, err := c.createTemp(saveDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", saveDir)
		item.Hint = "Choose a writable directory for transcript export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", saveDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		createTemp: createTemp,
		remove:     remove,
	}
}
