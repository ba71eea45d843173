package domain

// WhisperModelOption describes one downloadable ggml model for a selectable model name.
type WhisperModelOption struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	LocalPath   string `json:"localPath,omitempty"`
}
