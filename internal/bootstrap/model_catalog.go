package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"whisper-batch/internal/domain"
	"whisper-batch/internal/recognize"
)

const (
	defaultModelBaseURL  = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
	modelDownloadTimeout = 45 * time.Minute
)

var modelDetails = map[string]struct {
	size        string
	description string
}{
	"large-v3": {"~2.9 GB", "Latest large multilingual model."},
	"large-v1": {"~2.9 GB", "First large multilingual release."},
	"medium":   {"~1.5 GB", "High quality multilingual model."},
	"base":     {"~142 MB", "Balanced speed/quality, multilingual."},
	"small":    {"~466 MB", "Higher quality multilingual model."},
}

// whisperModelCatalog lists one ggml download per selectable model name.
func whisperModelCatalog(baseURL string) []domain.WhisperModelOption {
	baseURL = strings.TrimRight(baseURL, "/")
	models := make([]domain.WhisperModelOption, 0, len(domain.ModelNames))
	for _, name := range domain.ModelNames {
		fileName := recognize.ModelFileName(name)
		detail := modelDetails[name]
		models = append(models, domain.WhisperModelOption{
			ID:          name,
			FileName:    fileName,
			URL:         baseURL + "/" + fileName,
			SizeLabel:   detail.size,
			Description: detail.description,
		})
	}
	return models
}

// GetWhisperModels returns the model catalog with local availability marked.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	models := whisperModelCatalog(a.catalogBaseURL())
	markDownloadedModels(models, a.currentSettings().ModelDir)
	return models
}

// DownloadWhisperModel fetches the ggml file for modelID into the model directory.
func (a *App) DownloadWhisperModel(modelID string) ([]domain.WhisperModelOption, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return nil, fmt.Errorf("model id is required")
	}

	model, found := getWhisperModelByID(a.catalogBaseURL(), id)
	if !found {
		return nil, fmt.Errorf("unknown model id: %s", id)
	}

	settings := a.currentSettings()
	if strings.TrimSpace(settings.ModelDir) == "" {
		return nil, fmt.Errorf("model directory is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), modelDownloadTimeout)
	defer cancel()

	targetPath := filepath.Join(settings.ModelDir, model.FileName)
	a.log().Info("downloading model", "model", model.ID, "url", model.URL, "target", targetPath)
	if err := downloadURLToFile(ctx, targetPath, model.URL); err != nil {
		return nil, fmt.Errorf("download model %s: %w", model.ID, err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return a.GetWhisperModels(), nil
}

func (a *App) catalogBaseURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.modelBaseURL == "" {
		return defaultModelBaseURL
	}
	return a.modelBaseURL
}

func getWhisperModelByID(baseURL, id string) (domain.WhisperModelOption, bool) {
	for _, model := range whisperModelCatalog(baseURL) {
		if model.ID == id {
			return model, true
		}
	}
	return domain.WhisperModelOption{}, false
}

func markDownloadedModels(models []domain.WhisperModelOption, modelDir string) {
	if strings.TrimSpace(modelDir) == "" {
		return
	}
	for i := range models {
		candidate := filepath.Join(modelDir, models[i].FileName)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		models[i].Downloaded = true
		models[i].LocalPath = candidate
	}
}
