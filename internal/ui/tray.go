package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/cutlist/cutlist-agent/internal/session"
)

// Tray shows save progress in the system tray and lets the user cancel or
// pause the save queue.
type Tray struct {
	runner *session.Runner
	logger *slog.Logger

	statusItem *systray.MenuItem
	cancelItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu    sync.Mutex
	ready bool

	onQuit func()
}

type TrayConfig struct {
	Runner *session.Runner
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	t := &Tray{
		runner: cfg.Runner,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
	}
	if t.runner != nil {
		t.runner.AddObserver(t)
	}
	return t
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Cutlist")
	systray.SetTooltip("Cutlist Agent")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel save", "Cancel the running save")
	t.cancelItem.Disable()
	t.pauseItem = systray.AddMenuItem("Pause", "Pause the save queue")
	t.ready = true
	t.mu.Unlock()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutlist Agent")

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.cancelActive()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) cancelActive() {
	if t.runner == nil {
		return
	}
	id := t.runner.ActiveJobID()
	if id == "" {
		return
	}
	if err := t.runner.Cancel(context.Background(), id); err != nil {
		t.logger.Warn("cancel from tray failed", "job_id", id, "error", err)
	}
}

// JobStarted implements session.JobObserver.
func (t *Tray) JobStarted(job *session.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.cancelItem.Enable()
	t.setStatus("Saving")
}

// JobProgress implements session.JobObserver.
func (t *Tray) JobProgress(jobID string, progress int, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.setStatus(ProgressText(progress, label))
}

// JobFinished implements session.JobObserver.
func (t *Tray) JobFinished(job *session.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.cancelItem.Disable()
	switch job.Status {
	case session.JobStatusFailed:
		t.setStatus("Save failed")
	default:
		t.setStatus("Idle")
	}
}

// setStatus leaves the paused title alone. Callers hold mu.
func (t *Tray) setStatus(status string) {
	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

// ProgressText renders a runner progress label for the menu, e.g.
// "Cutting 50%".
func ProgressText(progress int, label string) string {
	word, _, _ := strings.Cut(label, " ")
	word = strings.TrimSuffix(word, "...")
	if word == "" {
		word = "Saving"
	}
	if progress >= 100 {
		return word
	}
	return fmt.Sprintf("%s %d%%", word, progress)
}

func (t *Tray) Quit() {
	systray.Quit()
}
