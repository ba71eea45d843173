package domain

// MediaKind classifies an input by its file-name suffix.
type MediaKind string

const (
	MediaKindVideo       MediaKind = "video"
	MediaKindAudio       MediaKind = "audio"
	MediaKindUnsupported MediaKind = "unsupported"
)

// Segment is one timed span of recognized speech, offsets in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
