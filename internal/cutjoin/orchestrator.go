// Package cutjoin turns a finalized clip list into one output file: every
// clip is cut into an intermediate file, then the intermediates are joined.
package cutjoin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/logging"
	"github.com/cutlist/cutlist-agent/internal/media"
)

// Progress labels reported to observers.
const (
	LabelCutting  = "Cutting media files..."
	LabelJoining  = "Joining media files..."
	LabelComplete = "Complete"
)

// Backend performs the media operations.
type Backend interface {
	Cut(ctx context.Context, source, dest string, start, duration time.Duration) error
	Join(ctx context.Context, manifest, dest string) error
	Probe(ctx context.Context, source string) (*media.ProbeResult, error)
}

// Observer receives progress after each step.
type Observer interface {
	Progress(step, total int, label string)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step, total int, label string)

func (f ObserverFunc) Progress(step, total int, label string) {
	f(step, total, label)
}

type nopObserver struct{}

func (nopObserver) Progress(int, int, string) {}

// Request names the source media and where the result goes. Ext is appended
// to Dest when Dest has no extension; empty Ext means the source's.
type Request struct {
	Source string
	Ext    string
	Dest   string
}

type Orchestrator struct {
	backend Backend
	logger  *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{backend: backend, logger: logging.WithComponent(logger, "cutjoin")}
}

// Execute cuts every clip in order and joins them into the destination,
// returning its path. The clip list is read-only for the whole run. Every
// intermediate file is removed on return, whatever the outcome.
func (o *Orchestrator) Execute(ctx context.Context, req Request, clips *cliplist.List, obs Observer) (string, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	dest, err := resolveDest(req)
	if err != nil {
		return "", err
	}

	release, err := clips.Acquire()
	if err != nil {
		return "", err
	}
	defer release()

	// Checked under the lease so no edit can slip in before the snapshot.
	if !clips.IsSavable() {
		return "", ErrNotSavable
	}

	snapshot := clips.Snapshot()
	total := len(snapshot)
	plan := NewPlan(dest, total)
	if err := plan.Check(req.Source); err != nil {
		return "", err
	}
	defer plan.Cleanup(o.logger)

	started := time.Now()
	o.logger.Info("save started",
		"source", logging.SanitizePath(req.Source),
		"dest", logging.SanitizePath(dest),
		"clips", total,
	)

	for i, clip := range snapshot {
		if err := ctx.Err(); err != nil {
			return "", o.cancelled(err, i)
		}
		if err := o.backend.Cut(ctx, req.Source, plan.Intermediates[i], clip.Start, clip.Duration()); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", o.cancelled(ctxErr, i)
			}
			return "", &BackendError{Index: i + 1, Err: err}
		}
		obs.Progress(i+1, total, LabelCutting)
	}

	if total == 1 {
		if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", &IOError{Op: "remove", Path: dest, Err: err}
		}
		if err := os.Rename(plan.Intermediates[0], dest); err != nil {
			return "", &IOError{Op: "rename", Path: plan.Intermediates[0], Err: err}
		}
	} else {
		if err := ctx.Err(); err != nil {
			return "", o.cancelled(err, total)
		}
		if err := WriteManifest(plan.Manifest, plan.Intermediates); err != nil {
			return "", &IOError{Op: "write manifest", Path: plan.Manifest, Err: err}
		}
		obs.Progress(total, total, LabelJoining)
		if err := o.backend.Join(ctx, plan.Manifest, dest); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", o.cancelled(ctxErr, total)
			}
			return "", &BackendError{Index: 0, Err: err}
		}
	}

	obs.Progress(total, total, LabelComplete)
	o.logger.Info("save completed",
		"dest", logging.SanitizePath(dest),
		"clips", total,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return dest, nil
}

func (o *Orchestrator) cancelled(cause error, done int) error {
	o.logger.Info("save cancelled", "clips_cut", done)
	return cancelled(cause)
}

func resolveDest(req Request) (string, error) {
	dest := req.Dest
	if dest == "" {
		return "", &IOError{Op: "resolve", Path: dest, Err: errors.New("destination is required")}
	}
	if filepath.Ext(dest) == "" {
		ext := req.Ext
		if ext == "" {
			ext = filepath.Ext(req.Source)
		}
		dest += ext
	}
	if filepath.Clean(dest) == filepath.Clean(req.Source) {
		return "", &IOError{Op: "resolve", Path: dest, Err: errors.New("destination is the source media")}
	}

	dir := filepath.Dir(dest)
	info, err := os.Stat(dir)
	if err != nil {
		return "", &IOError{Op: "stat", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &IOError{Op: "stat", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return dest, nil
}
