package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"whisper-batch/internal/domain"
)

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic item.
// Only the model file and the output directory can be fixed in place; tools
// have to be installed by the user.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings := a.currentSettings()
	var fixErr error

	switch id {
	case "model":
		_, fixErr = a.DownloadWhisperModel(settings.ModelName)
	case "save_dir":
		fixErr = installOrFixSaveDir(settings.SaveDir)
	case "tool_ffmpeg", "tool_whisper":
		fixErr = fmt.Errorf("install %s manually and make sure it is on PATH", strings.TrimPrefix(id, "tool_"))
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	report := a.refreshDiagnosticsFromSettings(a.currentSettings())
	return report, fixErr
}

// installOrFixSaveDir creates the chosen output directory.
func installOrFixSaveDir(saveDir string) error {
	dir := strings.TrimSpace(saveDir)
	if dir == "" {
		return fmt.Errorf("output directory is not selected")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}

// downloadURLToFile streams sourceURL into destinationPath through a
// temporary file so a partial download never replaces a good file.
func downloadURLToFile(ctx context.Context, destinationPath string, sourceURL string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "whisper-batch")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	return nil
}
