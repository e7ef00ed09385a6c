package api

import (
	"time"

	"github.com/cutlist/cutlist-agent/internal/media"
	"github.com/cutlist/cutlist-agent/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string               `json:"state"`
	LastError     string               `json:"last_error,omitempty"`
	SessionsCount int                  `json:"sessions_count"`
	JobsRunning   int                  `json:"jobs_running"`
	JobsPending   int                  `json:"jobs_pending"`
	ActiveJob     *JobResponse         `json:"active_job,omitempty"`
	Media         *MediaStatusResponse `json:"media,omitempty"`
}

type MediaStatusResponse struct {
	FFmpeg      media.DepInfo `json:"ffmpeg"`
	FFprobe     media.DepInfo `json:"ffprobe"`
	Ready       bool          `json:"ready"`
	LastProbeAt string        `json:"last_probe_at,omitempty"`
}

type OpenSessionRequest struct {
	MediaPath string `json:"media_path"`
}

type SessionsResponse struct {
	Sessions []*session.Session `json:"sessions"`
}

type MarkRequest struct {
	AtMs *int64 `json:"at_ms"`
}

// MoveRequest moves a clip either to an index or one step up or down.
type MoveRequest struct {
	To        *int   `json:"to,omitempty"`
	Direction string `json:"direction,omitempty"`
}

type SaveRequest struct {
	DestPath string `json:"dest_path,omitempty"`
}

type JobResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	SessionID  string `json:"session_id,omitempty"`
	DestPath   string `json:"dest_path,omitempty"`
	Progress   int    `json:"progress"`
	Label      string `json:"label,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Line  int    `json:"line,omitempty"`
}

func JobToResponse(j *session.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Type:       j.Type,
		Status:     j.Status,
		SessionID:  j.SessionID,
		DestPath:   j.DestPath,
		Progress:   j.Progress,
		Label:      j.Label,
		OutputPath: j.OutputPath,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}
