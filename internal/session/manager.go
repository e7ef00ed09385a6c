package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/edl"
	"github.com/cutlist/cutlist-agent/internal/export"
	"github.com/cutlist/cutlist-agent/internal/logging"
	"github.com/cutlist/cutlist-agent/internal/media"
	"github.com/cutlist/cutlist-agent/internal/timecode"
	"github.com/cutlist/cutlist-agent/internal/watcher"
)

// MediaBackend probes media and captures thumbnails for a source file.
type MediaBackend interface {
	media.Prober
	Capturer(source string) cliplist.FrameCapturer
}

type live struct {
	mu    sync.Mutex
	rec   *Session
	clips *cliplist.List
	probe *media.ProbeResult
}

func (l *live) record() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.rec
}

// Manager holds the open sessions. Sessions not in memory are restored from
// the repository on first access.
type Manager struct {
	repo    Repository
	backend MediaBackend
	probes  *media.ProbeCache
	watcher watcher.Watcher
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*live
	wake     func()
}

func NewManager(repo Repository, backend MediaBackend, w watcher.Watcher, logger *slog.Logger) *Manager {
	if w == nil {
		w = watcher.NewStubWatcher(logger)
	}
	m := &Manager{
		repo:     repo,
		backend:  backend,
		probes:   media.NewProbeCache(backend),
		watcher:  w,
		logger:   logging.WithComponent(logger, "session"),
		sessions: make(map[string]*live),
	}
	w.OnChange(m.handleFileEvent)
	return m
}

// SetWake registers a callback run after a save job is queued.
func (m *Manager) SetWake(fn func()) {
	m.mu.Lock()
	m.wake = fn
	m.mu.Unlock()
}

func (m *Manager) probeMedia(ctx context.Context, path string) (string, *media.ProbeResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s is a directory", ErrInvalidMedia, abs)
	}
	probe, err := m.probes.Probe(ctx, abs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	return abs, probe, nil
}

// Open loads a media file into a new session.
func (m *Manager) Open(ctx context.Context, mediaPath string) (*View, error) {
	abs, probe, err := m.probeMedia(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &Session{
		ID:        NewID(),
		MediaPath: abs,
		FrameRate: probe.FrameRate,
		Duration:  probe.Duration,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.CreateSession(ctx, rec); err != nil {
		return nil, err
	}

	l := &live{rec: rec, clips: cliplist.New(), probe: probe}
	m.mu.Lock()
	m.sessions[rec.ID] = l
	m.mu.Unlock()

	if err := m.watcher.Watch(ctx, abs); err != nil {
		m.logger.Warn("cannot watch media file", "path", logging.SanitizePath(abs), "error", err)
	}

	m.logger.Info("session opened", "session_id", rec.ID, "media", logging.SanitizePath(abs), "frame_rate", probe.FrameRate)
	return m.view(l), nil
}

// get returns the live session, restoring it from the repository if needed.
func (m *Manager) get(ctx context.Context, id string) (*live, error) {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return l, nil
	}

	rec, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	stored, err := m.repo.LoadClips(ctx, id)
	if err != nil {
		return nil, err
	}
	clips := cliplist.New()
	if err := clips.Replace(stored); err != nil {
		m.logger.Warn("discarding invalid stored clips", "session_id", id, "error", err)
	}
	rec.MediaMissing = !watcher.Exists(rec.MediaPath)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	l = &live{rec: rec, clips: clips}
	m.sessions[id] = l
	if err := m.watcher.Watch(ctx, rec.MediaPath); err != nil {
		m.logger.Warn("cannot watch media file", "path", logging.SanitizePath(rec.MediaPath), "error", err)
	}
	m.logger.Info("session restored", "session_id", id, "clips", len(stored))
	return l, nil
}

func (m *Manager) view(l *live) *View {
	rec := l.record()
	clips := l.clips.Snapshot()
	runtime := l.clips.TotalRuntime()

	var interval time.Duration
	if l.probe != nil {
		interval = l.probe.NotifyInterval()
	} else {
		interval = (&media.ProbeResult{FrameRate: rec.FrameRate}).NotifyInterval()
	}

	edlPath := rec.EDLPath
	if edlPath == "" {
		edlPath = export.DefaultEDLPath(rec.MediaPath)
	}

	return &View{
		Session:          &rec,
		Clips:            clipViews(clips),
		State:            l.clips.State().String(),
		Runtime:          timecode.FormatDuration(runtime, timecode.Runtime),
		RuntimeMs:        runtime.Milliseconds(),
		DurationMs:       rec.Duration.Milliseconds(),
		Savable:          l.clips.IsSavable() && !rec.MediaMissing,
		ReadOnly:         l.clips.ReadOnly(),
		NotifyIntervalMs: interval.Milliseconds(),
		DefaultEDLPath:   edlPath,
		DefaultDestPath:  export.DefaultDest(rec.MediaPath),
	}
}

func (m *Manager) Get(ctx context.Context, id string) (*View, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.view(l), nil
}

func (m *Manager) List(ctx context.Context) ([]*Session, error) {
	return m.repo.ListSessions(ctx)
}

// Close forgets a session. A session with a save in progress cannot be closed.
func (m *Manager) Close(ctx context.Context, id string) error {
	l, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if l.clips.ReadOnly() {
		return cliplist.ErrReadOnly
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.watcher.Unwatch(l.record().MediaPath); err != nil {
		m.logger.Warn("cannot unwatch media file", "error", err)
	}
	if err := m.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	m.removeThumbnails(droppedThumbnails(l.clips.Snapshot(), nil))
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// mutate runs fn against the clip list and persists the result on success.
func (m *Manager) mutate(ctx context.Context, id string, fn func(l *live) error) (*View, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := l.clips.Snapshot()
	if err := fn(l); err != nil {
		return nil, err
	}
	m.removeThumbnails(droppedThumbnails(before, l.clips.Snapshot()))
	m.persist(ctx, l)
	return m.view(l), nil
}

// droppedThumbnails lists thumbnails referenced in before but not in after.
func droppedThumbnails(before, after []cliplist.Clip) []cliplist.ImageRef {
	kept := make(map[cliplist.ImageRef]bool, len(after))
	for _, c := range after {
		kept[c.Thumbnail] = true
	}
	var dropped []cliplist.ImageRef
	for _, c := range before {
		if !c.Thumbnail.IsZero() && !kept[c.Thumbnail] {
			dropped = append(dropped, c.Thumbnail)
		}
	}
	return dropped
}

func (m *Manager) removeThumbnails(refs []cliplist.ImageRef) {
	for _, ref := range refs {
		if ref.IsZero() {
			continue
		}
		if err := os.Remove(string(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("failed to remove thumbnail", "path", logging.SanitizePath(string(ref)), "error", err)
		}
	}
}

func (m *Manager) persist(ctx context.Context, l *live) {
	l.mu.Lock()
	l.rec.UpdatedAt = time.Now()
	rec := *l.rec
	l.mu.Unlock()

	if err := m.repo.SaveClips(ctx, rec.ID, l.clips.Snapshot()); err != nil {
		m.logger.Error("failed to persist clips", "session_id", rec.ID, "error", err)
	}
	if err := m.repo.UpdateSession(ctx, &rec); err != nil {
		m.logger.Error("failed to persist session", "session_id", rec.ID, "error", err)
	}
}

// LoadMedia points the session at another file and clears its clip list.
func (m *Manager) LoadMedia(ctx context.Context, id, mediaPath string) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error {
		if l.clips.ReadOnly() {
			return cliplist.ErrReadOnly
		}
		abs, probe, err := m.probeMedia(ctx, mediaPath)
		if err != nil {
			return err
		}
		if err := l.clips.Clear(); err != nil {
			return err
		}

		l.mu.Lock()
		old := l.rec.MediaPath
		l.rec.MediaPath = abs
		l.rec.EDLPath = ""
		l.rec.FrameRate = probe.FrameRate
		l.rec.Duration = probe.Duration
		l.rec.MediaMissing = false
		l.probe = probe
		l.mu.Unlock()

		if old != abs {
			if err := m.watcher.Unwatch(old); err != nil {
				m.logger.Warn("cannot unwatch media file", "error", err)
			}
			if err := m.watcher.Watch(ctx, abs); err != nil {
				m.logger.Warn("cannot watch media file", "path", logging.SanitizePath(abs), "error", err)
			}
		}
		m.logger.Info("media loaded", "session_id", id, "media", logging.SanitizePath(abs))
		return nil
	})
}

// StartNew clears the clip list.
func (m *Manager) StartNew(ctx context.Context, id string) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error {
		return l.clips.Clear()
	})
}

// MarkStart opens a clip at offset at, capturing its thumbnail first.
func (m *Manager) MarkStart(ctx context.Context, id string, at time.Duration) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error {
		if l.clips.ReadOnly() {
			return cliplist.ErrReadOnly
		}
		if l.clips.State() != cliplist.Idle {
			return fmt.Errorf("%w: mark start while a clip is in progress", cliplist.ErrPrecondition)
		}
		rec := l.record()
		if err := checkOffset(rec, at); err != nil {
			return err
		}

		var thumb cliplist.ImageRef
		if !rec.MediaMissing {
			ref, err := m.backend.Capturer(rec.MediaPath).Capture(ctx, at)
			if err != nil {
				m.logger.Warn("thumbnail capture failed", "session_id", id, "error", err)
			} else {
				thumb = ref
			}
		}
		if err := l.clips.MarkStart(at, thumb); err != nil {
			m.removeThumbnails([]cliplist.ImageRef{thumb})
			return err
		}
		return nil
	})
}

func (m *Manager) MarkEnd(ctx context.Context, id string, at time.Duration) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error {
		if err := checkOffset(l.record(), at); err != nil {
			return err
		}
		return l.clips.MarkEnd(at)
	})
}

func checkOffset(rec Session, at time.Duration) error {
	if at < 0 || (rec.Duration > 0 && at > rec.Duration) {
		return fmt.Errorf("%w: offset %s outside media duration %s", cliplist.ErrPrecondition,
			timecode.FormatDuration(at, timecode.Precise), timecode.FormatDuration(rec.Duration, timecode.Precise))
	}
	return nil
}

func (m *Manager) MoveUp(ctx context.Context, id string, index int) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error { return l.clips.MoveUp(index) })
}

func (m *Manager) MoveDown(ctx context.Context, id string, index int) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error { return l.clips.MoveDown(index) })
}

func (m *Manager) MoveTo(ctx context.Context, id string, from, to int) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error { return l.clips.MoveTo(from, to) })
}

func (m *Manager) RemoveAt(ctx context.Context, id string, index int) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error { return l.clips.RemoveAt(index) })
}

func (m *Manager) Clear(ctx context.Context, id string) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error { return l.clips.Clear() })
}

// ImportEDL replaces the clip list with the decoded EDL. On any decode error
// the current list is left untouched.
func (m *Manager) ImportEDL(ctx context.Context, id string, data []byte, edlPath string) (*View, error) {
	return m.mutate(ctx, id, func(l *live) error {
		if l.clips.ReadOnly() {
			return cliplist.ErrReadOnly
		}
		rec := l.record()
		dec := &edl.Decoder{Logger: m.logger}
		if !rec.MediaMissing {
			dec.Capturer = m.backend.Capturer(rec.MediaPath)
		}
		clips, err := dec.Decode(ctx, data)
		if err != nil {
			return err
		}
		if err := l.clips.Replace(clips); err != nil {
			m.removeThumbnails(droppedThumbnails(clips, nil))
			return err
		}
		if edlPath != "" {
			l.mu.Lock()
			l.rec.EDLPath = edlPath
			l.mu.Unlock()
		}
		m.logger.Info("edl imported", "session_id", id, "clips", len(clips))
		return nil
	})
}

// ExportEDL serializes a savable clip list.
func (m *Manager) ExportEDL(ctx context.Context, id string) ([]byte, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.clips.IsSavable() {
		return nil, fmt.Errorf("%w: nothing to export", cliplist.ErrPrecondition)
	}
	return edl.Encode(l.clips.Snapshot()), nil
}

// ExportCMX renders the clip list as a CMX 3600 EDL.
func (m *Manager) ExportCMX(ctx context.Context, id, title string) (string, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return "", err
	}
	if !l.clips.IsSavable() {
		return "", fmt.Errorf("%w: nothing to export", cliplist.ErrPrecondition)
	}
	rec := l.record()
	if title == "" {
		title = filepath.Base(rec.MediaPath)
	}
	return export.GenerateCMX(l.clips.Snapshot(), title, rec.MediaPath, rec.FrameRate), nil
}

// Thumbnail returns the thumbnail path of clip index.
func (m *Manager) Thumbnail(ctx context.Context, id string, index int) (string, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return "", err
	}
	clips := l.clips.Snapshot()
	if index < 0 || index >= len(clips) {
		return "", fmt.Errorf("%w: index %d out of range", cliplist.ErrPrecondition, index)
	}
	if clips[index].Thumbnail.IsZero() {
		return "", ErrNotFound
	}
	return string(clips[index].Thumbnail), nil
}

// MediaPath returns the source file of a session.
func (m *Manager) MediaPath(ctx context.Context, id string) (string, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return "", err
	}
	rec := l.record()
	if rec.MediaMissing {
		return "", ErrMediaMissing
	}
	return rec.MediaPath, nil
}

// RequestSave queues a save job rendering the clip list to dest.
func (m *Manager) RequestSave(ctx context.Context, id, dest string) (*Job, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := l.record()
	if rec.MediaMissing {
		return nil, ErrMediaMissing
	}
	if l.clips.ReadOnly() {
		return nil, cliplist.ErrReadOnly
	}
	if !l.clips.IsSavable() {
		return nil, fmt.Errorf("%w: clip list is empty or has a clip in progress", cliplist.ErrPrecondition)
	}
	resolved, err := export.ResolveDest(rec.MediaPath, dest)
	if err != nil {
		return nil, &DestError{Err: err}
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeSave,
		Status:    JobStatusPending,
		SessionID: id,
		DestPath:  resolved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	m.logger.Info("save job created", "job_id", job.ID, "session_id", id, "dest", logging.SanitizePath(resolved))

	m.mu.RLock()
	wake := m.wake
	m.mu.RUnlock()
	if wake != nil {
		wake()
	}
	return job, nil
}

// DestError reports an unusable save destination.
type DestError struct {
	Err error
}

func (e *DestError) Error() string { return "invalid destination: " + e.Err.Error() }
func (e *DestError) Unwrap() error { return e.Err }

// saveTarget returns what a save job needs from its session.
func (m *Manager) saveTarget(ctx context.Context, id string) (*cliplist.List, Session, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return nil, Session{}, err
	}
	rec := l.record()
	if rec.MediaMissing {
		return nil, Session{}, ErrMediaMissing
	}
	return l.clips, rec, nil
}

func (m *Manager) handleFileEvent(path string, event watcher.EventType) {
	missing := event == watcher.EventDelete
	if missing && watcher.Exists(path) {
		return
	}

	m.mu.RLock()
	var affected []*live
	for _, l := range m.sessions {
		if l.record().MediaPath == path {
			affected = append(affected, l)
		}
	}
	m.mu.RUnlock()

	for _, l := range affected {
		l.mu.Lock()
		changed := l.rec.MediaMissing != missing
		l.rec.MediaMissing = missing
		l.mu.Unlock()
		if !changed {
			continue
		}
		if missing {
			m.probes.Forget(path)
		}
		m.logger.Info("media availability changed", "session_id", l.record().ID, "missing", missing, "event", event.String())
		m.persist(context.Background(), l)
	}
}

// IsNotFound reports whether err means an unknown session or job.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrJobNotFound)
}
