package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"whisper-batch/internal/command"
	"whisper-batch/internal/config"
	"whisper-batch/internal/diagnostics"
	"whisper-batch/internal/domain"
	"whisper-batch/internal/jobs"
	"whisper-batch/internal/media"
	"whisper-batch/internal/recognize"
	"whisper-batch/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	msgNoInputFiles = "Please select video or audio files first."
	msgNoSaveDir    = "Please select an output directory first."

	jobEventName = "job:event"
)

var (
	// ErrNoInputFiles is returned when a run is requested with an empty file list.
	ErrNoInputFiles = errors.New("no input files selected")
	// ErrNoSaveDir is returned when a run is requested without an output directory.
	ErrNoSaveDir = errors.New("no output directory selected")
)

// App wires configuration, selection state, the batch worker, and UI runtime callbacks.
type App struct {
	Store       config.Store
	Jobs        *jobs.Manager
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	dialogs     Dialogs
	newBatch    func(domain.Settings) (batchRunner, error)
	logger      *slog.Logger

	mu           sync.Mutex
	settings     domain.Settings
	selection    domain.Selection
	activeJobID  string
	cancel       context.CancelFunc
	events       *jobs.EventBus
	runtimeCtx   context.Context
	modelBaseURL string
}

// batchRunner isolates the transcription loop behind an interface.
type batchRunner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Summary, error)
}

// Options lists the choices offered by the form.
type Options struct {
	Models    []string        `json:"models"`
	Languages []string        `json:"languages"`
	Devices   []domain.Device `json:"devices"`
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewStore(config.DefaultPath(homeDir))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	app := &App{
		Store:        store,
		Jobs:         jobs.NewManager(),
		Diagnostics:  checker.Run(settings),
		assets:       assets,
		checker:      checker,
		newBatch:     newBatchRunner,
		logger:       slog.Default().With("component", "app"),
		settings:     settings,
		selection:    selectionFromSettings(settings),
		events:       jobs.NewEventBus(1000),
		modelBaseURL: defaultModelBaseURL,
	}
	app.dialogs = wailsDialogs{app: app}
	return app, nil
}

// newBatchRunner builds the extraction and recognition services from settings.
func newBatchRunner(settings domain.Settings) (batchRunner, error) {
	recognizer, err := recognize.New(settings)
	if err != nil {
		return nil, err
	}
	return transcribe.NewBatch(media.NewExtractor(settings.FFmpegPath), recognizer), nil
}

// selectionFromSettings restores remembered choices. Files always start empty.
func selectionFromSettings(settings domain.Settings) domain.Selection {
	return domain.Selection{
		SaveDir:   settings.SaveDir,
		ModelName: settings.ModelName,
		Language:  settings.Language,
		Device:    settings.Device,
		SaveAsOne: settings.SaveAsOne,
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Whisper Batch Transcriber",
		Width:       600,
		Height:      800,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
			if a.cancel != nil {
				a.cancel()
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context and starts forwarding job events to the window.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	events, unsubscribe := a.events.Subscribe(256)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				wailsruntime.EventsEmit(ctx, jobEventName, ev)
			}
		}
	}()
}

// GetOptions returns the selectable models, languages and devices.
func (a *App) GetOptions() Options {
	return Options{
		Models:    append([]string(nil), domain.ModelNames...),
		Languages: append([]string(nil), domain.Languages...),
		Devices:   append([]domain.Device(nil), domain.Devices...),
	}
}

// GetSelection returns a copy of the current selection for rendering.
func (a *App) GetSelection() domain.Selection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selection.Clone()
}

// SelectFiles replaces the selected inputs with the result of a multi-file dialog.
func (a *App) SelectFiles() (domain.Selection, error) {
	paths, err := a.dialogs.OpenFiles("Select video or audio files")
	if err != nil {
		return domain.Selection{}, fmt.Errorf("open file dialog: %w", err)
	}

	a.mu.Lock()
	a.selection.Files = append([]string(nil), paths...)
	sel := a.selection.Clone()
	a.mu.Unlock()

	a.publishLog("", fmt.Sprintf("Selected %d file(s).", len(paths)))
	return sel, nil
}

// SelectSaveDir replaces the output directory with the result of a directory dialog.
func (a *App) SelectSaveDir() (domain.Selection, error) {
	dir, err := a.dialogs.OpenDirectory("Select output directory")
	if err != nil {
		return domain.Selection{}, fmt.Errorf("open directory dialog: %w", err)
	}
	dir = strings.TrimSpace(dir)

	a.mu.Lock()
	a.selection.SaveDir = dir
	a.settings.SaveDir = dir
	sel := a.selection.Clone()
	a.mu.Unlock()

	a.publishLog("", "Output directory: "+dir)
	return sel, a.persistSettings()
}

// SetModel selects one of the enumerated whisper models.
func (a *App) SetModel(name string) error {
	if !domain.IsKnownModel(name) {
		return fmt.Errorf("unknown model: %q", name)
	}
	a.mu.Lock()
	a.selection.ModelName = name
	a.settings.ModelName = name
	a.mu.Unlock()
	return a.persistSettings()
}

// SetLanguage selects the spoken language passed to recognition.
func (a *App) SetLanguage(code string) error {
	if !domain.IsKnownLanguage(code) {
		return fmt.Errorf("unknown language: %q", code)
	}
	a.mu.Lock()
	a.selection.Language = code
	a.settings.Language = code
	a.mu.Unlock()
	return a.persistSettings()
}

// SetDevice selects cpu or cuda execution.
func (a *App) SetDevice(device domain.Device) error {
	if !domain.IsKnownDevice(device) {
		return fmt.Errorf("unknown device: %q", device)
	}
	a.mu.Lock()
	a.selection.Device = device
	a.settings.Device = device
	a.mu.Unlock()
	return a.persistSettings()
}

// SetSaveAsOne toggles writing every transcript into one combined file.
func (a *App) SetSaveAsOne(saveAsOne bool) error {
	a.mu.Lock()
	a.selection.SaveAsOne = saveAsOne
	a.settings.SaveAsOne = saveAsOne
	a.mu.Unlock()
	return a.persistSettings()
}

// persistSettings writes remembered choices to the settings store.
func (a *App) persistSettings() error {
	if a.Store == nil {
		return nil
	}
	settings := a.currentSettings()
	if err := a.Store.Save(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// currentSettings returns the in-memory settings.
func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reruns dependency checks against the current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	return a.refreshDiagnosticsFromSettings(a.currentSettings())
}

// refreshDiagnosticsFromSettings stores settings and caches a fresh report.
func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// OpenOutputFolder opens the given path (or selected output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.selection.SaveDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// StartTranscription validates the selection, captures a snapshot and runs
// the batch on one background goroutine. It returns as soon as the worker
// has been spawned.
func (a *App) StartTranscription() (domain.Job, error) {
	a.mu.Lock()
	sel := a.selection.Clone()
	settings := a.settings
	a.mu.Unlock()

	if len(sel.Files) == 0 {
		a.dialogs.Error("Error", msgNoInputFiles)
		return domain.Job{}, ErrNoInputFiles
	}
	if strings.TrimSpace(sel.SaveDir) == "" {
		a.dialogs.Error("Error", msgNoSaveDir)
		return domain.Job{}, ErrNoSaveDir
	}

	snap := sel.Snapshot()
	runner, err := a.newBatch(settings)
	if err != nil {
		return domain.Job{}, fmt.Errorf("prepare transcription: %w", err)
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID, snap.Len()); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.mu.Unlock()

	a.log().Info("transcription started", "job", jobID, "files", snap.Len(), "model", snap.ModelName, "device", snap.Device)
	a.publishLog(jobID, "Starting transcription...")

	go a.runTranscriptionJob(ctx, jobID, runner, snap)
	return a.Jobs.Current(), nil
}

// CancelTranscription asks the running batch to stop. The run slot stays
// taken until the worker has unwound and reported its final status.
func (a *App) CancelTranscription() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoRunningJob
	}

	cancel()
	a.publishLog(activeJobID, "Cancellation requested")
	return nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// runTranscriptionJob executes the batch and maps its outcome to job events.
func (a *App) runTranscriptionJob(ctx context.Context, jobID string, runner batchRunner, snap domain.Snapshot) {
	defer a.clearActiveJob(jobID)

	req := transcribe.Request{
		Snapshot: snap,
		OnStage: func(stage domain.JobStatus, input string) {
			if ctx.Err() != nil {
				return
			}
			if err := a.Jobs.Transition(stage); err == nil {
				a.publishEvent(jobs.Event{
					JobID:  jobID,
					Type:   jobs.EventTypeStatus,
					Status: stage,
					Input:  input,
				})
			}
		},
		OnMessage: func(input, message string) {
			a.publishEvent(jobs.Event{
				JobID:   jobID,
				Type:    jobs.EventTypeLog,
				Message: message,
				Input:   input,
			})
		},
		OnCommand: func(log command.Log) {
			a.publishCommand(jobID, "Command completed", log)
		},
		OnOutput: func(input, outputPath string) {
			a.publishEvent(jobs.Event{
				JobID:      jobID,
				Type:       jobs.EventTypeResult,
				Message:    "Saved " + outputPath,
				Input:      input,
				OutputPath: outputPath,
			})
		},
	}

	summary, err := runner.Run(ctx, req)
	a.log().Info("transcription finished",
		"job", jobID,
		"transcribed", summary.Transcribed,
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failed),
		"err", err,
	)

	status := domain.JobStatusDone
	message := "Transcription finished."
	switch {
	case errors.Is(err, context.Canceled):
		status = domain.JobStatusCancelled
		message = "Transcription cancelled."
	case err != nil:
		status = domain.JobStatusFailed
		message = "Transcription failed: " + err.Error()
		var cmdErr *command.Error
		if errors.As(err, &cmdErr) && cmdErr.Log.Command != "" {
			a.publishCommand(jobID, "Failed command", cmdErr.Log)
		}
	}

	eventType := jobs.EventTypeStatus
	if status == domain.JobStatusFailed {
		eventType = jobs.EventTypeError
	}
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    eventType,
		Status:  status,
		Message: message,
	})
	if finishErr := a.Jobs.Finish(jobID, status); finishErr != nil {
		a.log().Warn("finish job", "job", jobID, "status", status, "err", finishErr)
	}
}

// publishLog sends one plain log line.
func (a *App) publishLog(jobID, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeLog,
		Message: message,
	})
}

// publishCommand sends an external command record.
func (a *App) publishCommand(jobID, message string, log command.Log) {
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeLog,
		Message:  message,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stderr:   log.Stderr,
	})
}

// publishEvent stores event history; Startup forwards it to the window.
func (a *App) publishEvent(event jobs.Event) {
	a.events.Publish(event)
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		if a.cancel != nil {
			a.cancel()
		}
		a.cancel = nil
	}
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
