package domain

// JobStatus tracks the stage of the single batch run.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusExtracting   JobStatus = "extracting"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusWriting      JobStatus = "writing"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Job stores the current batch identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
	Total  int       `json:"total"`
}

// Selection is the user's live choice of inputs and transcription options.
type Selection struct {
	Files     []string `json:"files"`
	SaveDir   string   `json:"saveDir"`
	ModelName string   `json:"modelName"`
	Language  string   `json:"language"`
	Device    Device   `json:"device"`
	SaveAsOne bool     `json:"saveAsOne"`
}

// Snapshot is an immutable copy of a Selection captured when a run starts.
type Snapshot struct {
	files     []string
	SaveDir   string
	ModelName string
	Language  string
	Device    Device
	SaveAsOne bool
}

// Snapshot copies the selection so later edits never reach a running batch.
func (s Selection) Snapshot() Snapshot {
	return Snapshot{
		files:     append([]string(nil), s.Files...),
		SaveDir:   s.SaveDir,
		ModelName: s.ModelName,
		Language:  s.Language,
		Device:    s.Device,
		SaveAsOne: s.SaveAsOne,
	}
}

// Clone returns a deep copy safe to hand to the UI.
func (s Selection) Clone() Selection {
	s.Files = append([]string(nil), s.Files...)
	return s
}

// Files returns a copy of the captured input paths in selection order.
func (s Snapshot) Files() []string {
	return append([]string(nil), s.files...)
}

// Len reports how many inputs were captured.
func (s Snapshot) Len() int {
	return len(s.files)
}

// Settings contains persisted preferences restored on the next launch.
type Settings struct {
	ModelDir    string `json:"modelDir" yaml:"model_dir"`
	ModelName   string `json:"modelName" yaml:"model_name"`
	Language    string `json:"language" yaml:"language"`
	Device      Device `json:"device" yaml:"device"`
	SaveAsOne   bool   `json:"saveAsOne" yaml:"save_as_one"`
	SaveDir     string `json:"saveDir" yaml:"save_dir"`
	Backend     string `json:"backend" yaml:"backend"`
	FFmpegPath  string `json:"ffmpegPath" yaml:"ffmpeg_path"`
	WhisperPath string `json:"whisperPath" yaml:"whisper_path"`
	RemoteURL   string `json:"remoteUrl,omitempty" yaml:"remote_url,omitempty"`
	RemoteToken string `json:"remoteToken,omitempty" yaml:"remote_token,omitempty"`
	RemoteModel string `json:"remoteModel,omitempty" yaml:"remote_model,omitempty"`
}
