package config

import (
	"os"
	"path/filepath"
	"strings"

	"whisper-batch/internal/domain"
)

// AppDirName is the per-user directory holding settings and models.
const AppDirName = ".whisper-batch"

// DefaultPath returns the settings file location under the user's home.
func DefaultPath(homeDir string) string {
	return filepath.Join(homeDir, AppDirName, "settings.yaml")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelDir:    filepath.Join(homeDir, AppDirName, "models"),
		ModelName:   domain.DefaultModelName,
		Language:    domain.DefaultLanguage,
		Device:      domain.DefaultDevice,
		Backend:     domain.BackendWhisperCPP,
		FFmpegPath:  "ffmpeg",
		WhisperPath: "whisper-cli",
	}
}

// Normalize trims values, expands a leading ~ and replaces unknown choices with defaults.
func Normalize(s domain.Settings) domain.Settings {
	def := DefaultSettings()

	s.ModelDir = expandTilde(strings.TrimSpace(s.ModelDir))
	if s.ModelDir == "" {
		s.ModelDir = def.ModelDir
	}
	s.SaveDir = expandTilde(strings.TrimSpace(s.SaveDir))
	if !domain.IsKnownModel(s.ModelName) {
		s.ModelName = def.ModelName
	}
	if !domain.IsKnownLanguage(s.Language) {
		s.Language = def.Language
	}
	if !domain.IsKnownDevice(s.Device) {
		s.Device = def.Device
	}

	switch strings.TrimSpace(s.Backend) {
	case domain.BackendWhisperCPP, domain.BackendRemote:
		s.Backend = strings.TrimSpace(s.Backend)
	default:
		s.Backend = def.Backend
	}

	s.FFmpegPath = strings.TrimSpace(s.FFmpegPath)
	if s.FFmpegPath == "" {
		s.FFmpegPath = def.FFmpegPath
	}
	s.WhisperPath = strings.TrimSpace(s.WhisperPath)
	if s.WhisperPath == "" {
		s.WhisperPath = def.WhisperPath
	}
	s.RemoteURL = strings.TrimRight(strings.TrimSpace(s.RemoteURL), "/")
	s.RemoteToken = strings.TrimSpace(s.RemoteToken)
	s.RemoteModel = strings.TrimSpace(s.RemoteModel)
	return s
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
