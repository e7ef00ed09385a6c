// Package session owns the media sessions a user edits: the loaded media file,
// its clip list, their persistence and the save jobs that render them.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/timecode"
)

var (
	ErrNotFound      = errors.New("session: not found")
	ErrMediaMissing  = errors.New("session: source media is missing")
	ErrInvalidMedia  = errors.New("session: media cannot be loaded")
	ErrJobNotFound   = errors.New("session: job not found")
	ErrJobNotRunning = errors.New("session: job is not pending or running")
)

type Session struct {
	ID           string        `json:"id"`
	MediaPath    string        `json:"media_path"`
	EDLPath      string        `json:"edl_path,omitempty"`
	FrameRate    float64       `json:"frame_rate"`
	Duration     time.Duration `json:"-"`
	MediaMissing bool          `json:"media_missing"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

const (
	JobTypeSave = "save"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	SessionID  string    `json:"session_id,omitempty"`
	DestPath   string    `json:"dest_path,omitempty"`
	Progress   int       `json:"progress"`
	Label      string    `json:"label,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Finished reports a terminal status.
func (j *Job) Finished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ClipView is a clip as shown to clients.
type ClipView struct {
	Index        int    `json:"index"`
	StartMs      int64  `json:"start_ms"`
	EndMs        *int64 `json:"end_ms"`
	Start        string `json:"start"`
	End          string `json:"end,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	HasThumbnail bool   `json:"has_thumbnail"`
}

// View is a session with its clip list state.
type View struct {
	*Session
	Clips            []ClipView `json:"clips"`
	State            string     `json:"state"`
	Runtime          string     `json:"runtime"`
	RuntimeMs        int64      `json:"runtime_ms"`
	DurationMs       int64      `json:"duration_ms"`
	Savable          bool       `json:"savable"`
	ReadOnly         bool       `json:"read_only"`
	NotifyIntervalMs int64      `json:"notify_interval_ms"`
	DefaultEDLPath   string     `json:"default_edl_path"`
	DefaultDestPath  string     `json:"default_dest_path"`
}

func clipViews(clips []cliplist.Clip) []ClipView {
	views := make([]ClipView, len(clips))
	for i, c := range clips {
		v := ClipView{
			Index:        i,
			StartMs:      c.Start.Milliseconds(),
			Start:        timecode.FormatDuration(c.Start, timecode.Precise),
			DurationMs:   c.Duration().Milliseconds(),
			HasThumbnail: !c.Thumbnail.IsZero(),
		}
		if end, ok := c.End.Value(); ok {
			ms := end.Milliseconds()
			v.EndMs = &ms
			v.End = timecode.FormatDuration(end, timecode.Precise)
		}
		views[i] = v
	}
	return views
}

func NewID() string {
	return uuid.NewString()
}
