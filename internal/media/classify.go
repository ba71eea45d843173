package media

import (
	"path/filepath"
	"strings"

	"whisper-batch/internal/domain"
)

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv"}

var audioExtensions = []string{".mp3", ".wav"}

// DialogPattern is the picker filter hint covering every supported suffix.
const DialogPattern = "*.mp4;*.mov;*.avi;*.mkv;*.mp3;*.wav"

// Classify decides from the file-name suffix whether an input needs audio extraction.
func Classify(path string) domain.MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range videoExtensions {
		if ext == v {
			return domain.MediaKindVideo
		}
	}
	for _, a := range audioExtensions {
		if ext == a {
			return domain.MediaKindAudio
		}
	}
	return domain.MediaKindUnsupported
}

// TempAudioPath returns the sibling .mp3 path used for audio extracted from a video.
func TempAudioPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"
}
