// Package media runs ffmpeg and ffprobe as subprocesses to cut, join, probe
// and capture frames from media files.
package media

import (
	"math"
	"time"
)

// ProbeResult is the subset of ffprobe output the agent uses.
type ProbeResult struct {
	Duration    time.Duration `json:"duration"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Codec       string        `json:"codec"`
	Bitrate     int64         `json:"bitrate"`
	FrameRate   float64       `json:"frame_rate"`
	AudioCodec  string        `json:"audio_codec,omitempty"`
	AudioSample int           `json:"audio_sample,omitempty"`
	Format      string        `json:"format,omitempty"`
}

// NotifyInterval is the playback position update period, one frame long.
func (p *ProbeResult) NotifyInterval() time.Duration {
	if p == nil || p.FrameRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(1000/p.FrameRate)) * time.Millisecond
}

// Capabilities reports which media executables are usable.
type Capabilities struct {
	FFmpeg   DepInfo   `json:"ffmpeg"`
	FFprobe  DepInfo   `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// AllOK is true when both executables are available.
func (c *Capabilities) AllOK() bool {
	return c != nil && c.FFmpeg.Available && c.FFprobe.Available
}

// DepInfo represents the availability status of a single executable.
type DepInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunResult is the structured outcome of executing a media subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }
