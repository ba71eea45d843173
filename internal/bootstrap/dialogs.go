package bootstrap

import (
	"strings"

	"whisper-batch/internal/media"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     media.DialogPattern,
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Dialogs covers the native dialogs the app opens.
type Dialogs interface {
	Error(title, message string)
	OpenFiles(title string) ([]string, error)
	OpenDirectory(title string) (string, error)
}

// wailsDialogs implements Dialogs on top of the Wails runtime.
type wailsDialogs struct {
	app *App
}

// Error shows a blocking error message box.
func (d wailsDialogs) Error(title, message string) {
	ctx, err := d.app.runtimeContext()
	if err != nil {
		d.app.log().Error("error dialog unavailable", "title", title, "message", message, "err", err)
		return
	}
	if _, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:    wailsruntime.ErrorDialog,
		Title:   title,
		Message: message,
	}); err != nil {
		d.app.log().Error("show error dialog", "err", err)
	}
}

// OpenFiles opens a multi-select dialog hinting at supported media.
func (d wailsDialogs) OpenFiles(title string) ([]string, error) {
	ctx, err := d.app.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   title,
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// OpenDirectory opens a native directory picker.
func (d wailsDialogs) OpenDirectory(title string) (string, error) {
	ctx, err := d.app.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}
