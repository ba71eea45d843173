package recognize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"whisper-batch/internal/command"
	"whisper-batch/internal/domain"
)

// RemoteConfig configures an OpenAI-compatible transcription endpoint.
type RemoteConfig struct {
	BaseURL string
	Token   string // optional, sent as Bearer
	Model   string // overrides the selected model name when set
}

// Remote posts audio to an OpenAI-compatible /v1/audio/transcriptions endpoint.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemote creates a remote client. No request timeout is applied; ctx governs cancellation.
func NewRemote(cfg RemoteConfig) *Remote {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Remote{cfg: cfg, client: &http.Client{}}
}

// Name returns the backend identifier.
func (r *Remote) Name() string {
	return domain.BackendRemote
}

// verboseResponse mirrors the verbose_json response shape.
type verboseResponse struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and returns the segments from the response.
func (r *Remote) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	model := r.cfg.Model
	if model == "" {
		model = req.Options.Model
	}

	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: fmt.Sprintf("cannot open audio file: %s", req.AudioPath),
			Err:     err,
		}
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(writer, f, req.AudioPath, model, req.Options))
	}()

	url := r.cfg.BaseURL + "/v1/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.Close()
		return nil, &command.Error{Stage: StageTranscribing, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if r.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		_ = pr.Close()
		return nil, &command.Error{Stage: StageTranscribing, Message: "transcription request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &command.Error{Stage: StageTranscribing, Message: "read transcription response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &command.Error{
			Stage:   StageTranscribing,
			Message: fmt.Sprintf("transcription endpoint returned http %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}

	var parsed verboseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &command.Error{Stage: StageTranscribing, Message: "cannot parse transcription response", Err: err}
	}

	segments := make([]domain.Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, domain.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}

	info := Info{Backend: r.Name(), Language: parsed.Language}
	if info.Language == "" {
		info.Language = req.Options.Language
	}
	return NewTranscript(info, SliceSeq(segments), nil), nil
}

// writeForm streams the multipart body into the pipe.
func writeForm(w *multipart.Writer, audio io.Reader, audioPath, model string, opts Options) error {
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("copy audio data: %w", err)
	}

	fields := [][2]string{
		{"model", model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	// An empty prompt keeps each request free of previously decoded text.
	if !opts.ConditionOnPreviousText {
		fields = append(fields, [2]string{"prompt", ""})
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	return w.Close()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
