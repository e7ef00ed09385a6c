package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/logging"
	"github.com/cutlist/cutlist-agent/internal/timecode"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 4 * 1024 * 1024
)

// ErrCommandFailed is wrapped by every non-zero ffmpeg/ffprobe exit.
var ErrCommandFailed = errors.New("media: command failed")

// Config holds the backend's configuration.
type Config struct {
	FFmpegPath     string        // empty = auto-detect
	FFprobePath    string        // empty = auto-detect
	ThumbnailDir   string        // captured frames are written here
	ThumbWidth     int           // default 100
	ThumbHeight    int           // default 70
	Timeout        time.Duration // per command, 0 = none
	DoctorTimeout  time.Duration
	KeepAllStreams bool // add -map 0 to cut and join
	Logger         *slog.Logger
	DebugPaths     bool // if true, log full file paths; otherwise sanitise
}

// FFmpeg is the subprocess media backend.
type FFmpeg struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
}

// NewFFmpeg resolves the ffmpeg and ffprobe binaries.
func NewFFmpeg(cfg Config) (*FFmpeg, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.ThumbWidth <= 0 || cfg.ThumbHeight <= 0 {
		cfg.ThumbWidth, cfg.ThumbHeight = 100, 70
	}
	if cfg.DoctorTimeout <= 0 {
		cfg.DoctorTimeout = 15 * time.Second
	}

	ffmpeg, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	if cfg.ThumbnailDir != "" {
		if err := os.MkdirAll(cfg.ThumbnailDir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create thumbnail dir: %w", err)
		}
	}

	cfg.Logger.Info("media backend initialised", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	return &FFmpeg{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

// Cut copies [start, start+duration) of source into dest without re-encoding.
func (f *FFmpeg) Cut(ctx context.Context, source, dest string, start, duration time.Duration) error {
	return f.run(ctx, "cut", dest, CutArgs(source, dest, start, duration, f.cfg.KeepAllStreams))
}

// Join concatenates the files listed in manifest into dest.
func (f *FFmpeg) Join(ctx context.Context, manifest, dest string) error {
	return f.run(ctx, "join", dest, JoinArgs(manifest, dest, f.cfg.KeepAllStreams))
}

// Probe reads stream and container metadata of source.
func (f *FFmpeg) Probe(ctx context.Context, source string) (*ProbeResult, error) {
	ctx, cancel := f.withTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	result := f.exec(ctx, f.ffprobe, &limitedWriter{w: &stdout, limit: maxStdoutBytes}, "", ProbeArgs(source)...)
	if err := commandError(ctx, "probe", result); err != nil {
		return nil, err
	}
	probe, err := ParseProbe(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", f.safePath(source), err)
	}
	return probe, nil
}

// CaptureFrame writes a single JPEG frame of source at offset at and returns its path.
func (f *FFmpeg) CaptureFrame(ctx context.Context, source string, at time.Duration) (string, error) {
	dir := f.cfg.ThumbnailDir
	if dir == "" {
		dir = os.TempDir()
	}
	out := filepath.Join(dir, uuid.NewString()+".jpg")
	args := CaptureArgs(source, out, at, f.cfg.ThumbWidth, f.cfg.ThumbHeight)
	if err := f.run(ctx, "capture", out, args); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

// Capturer binds frame capture to one source file.
func (f *FFmpeg) Capturer(source string) cliplist.FrameCapturer {
	return frameCapturer{backend: f, source: source}
}

type frameCapturer struct {
	backend *FFmpeg
	source  string
}

func (c frameCapturer) Capture(ctx context.Context, at time.Duration) (cliplist.ImageRef, error) {
	path, err := c.backend.CaptureFrame(ctx, c.source, at)
	if err != nil {
		return "", err
	}
	return cliplist.ImageRef(path), nil
}

// RunDoctor checks both executables answer -version.
func (f *FFmpeg) RunDoctor(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.DoctorTimeout)
	defer cancel()

	caps := &Capabilities{
		FFmpeg:   f.versionOf(ctx, f.ffmpeg),
		FFprobe:  f.versionOf(ctx, f.ffprobe),
		ProbedAt: time.Now(),
	}

	f.cfg.Logger.Info("doctor probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffprobe", caps.FFprobe.Available,
		"ffmpeg_version", caps.FFmpeg.Version,
	)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return caps, nil
}

func (f *FFmpeg) versionOf(ctx context.Context, bin string) DepInfo {
	var stdout bytes.Buffer
	result := f.exec(ctx, bin, &limitedWriter{w: &stdout, limit: maxStderrBytes}, "", "-hide_banner", "-version")
	if !result.IsSuccess() {
		return DepInfo{Path: bin, Error: truncate(result.StderrTail, 256)}
	}
	return DepInfo{Available: true, Path: bin, Version: parseVersion(stdout.String())}
}

func (f *FFmpeg) run(ctx context.Context, op, outPath string, args []string) error {
	ctx, cancel := f.withTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	result := f.exec(ctx, f.ffmpeg, io.Discard, outPath, args...)
	return commandError(ctx, op, result)
}

func (f *FFmpeg) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// exec is the core subprocess execution helper.
func (f *FFmpeg) exec(ctx context.Context, bin string, stdout io.Writer, outPath string, args ...string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = stdout

	f.cfg.Logger.Debug("executing media command",
		"bin", filepath.Base(bin),
		"args", args,
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 && stderrTail == "" && err != nil {
		stderrTail = err.Error()
	}

	if exitCode != 0 {
		f.cfg.Logger.Warn("media command failed",
			"bin", filepath.Base(bin),
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		f.cfg.Logger.Info("media command succeeded",
			"bin", filepath.Base(bin),
			"duration_ms", elapsed.Milliseconds(),
			"output", f.safePath(outPath),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func commandError(ctx context.Context, op string, result RunResult) error {
	if result.IsSuccess() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s exited %d: %s", ErrCommandFailed, op, result.ExitCode, truncate(strings.TrimSpace(result.StderrTail), 512))
}

func (f *FFmpeg) safePath(path string) string {
	if f.cfg.DebugPaths || path == "" {
		return path
	}
	return logging.SanitizePath(path)
}

// CutArgs builds a stream-copy cut starting at start lasting duration.
func CutArgs(source, dest string, start, duration time.Duration, keepAll bool) []string {
	args := []string{
		"-hide_banner",
		"-ss", timecode.FormatDuration(start, timecode.Precise),
		"-i", source,
		"-t", timecode.FormatDuration(duration, timecode.Precise),
		"-vcodec", "copy",
		"-acodec", "copy",
		"-scodec", "copy",
		"-avoid_negative_ts", "1",
		"-copyinkf",
	}
	if keepAll {
		args = append(args, "-map", "0")
	}
	return append(args, "-v", "16", "-y", dest)
}

// JoinArgs builds a concat-demuxer join of manifest into dest.
func JoinArgs(manifest, dest string, keepAll bool) []string {
	args := []string{
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-copyinkf",
	}
	if keepAll {
		args = append(args, "-map", "0")
	}
	return append(args, "-v", "16", "-y", dest)
}

// CaptureArgs builds a single-frame JPEG grab scaled to width x height.
func CaptureArgs(source, dest string, at time.Duration, width, height int) []string {
	return []string{
		"-hide_banner",
		"-ss", timecode.FormatDuration(at, timecode.Precise),
		"-i", source,
		"-vframes", "1",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-v", "16",
		"-y", dest,
	}
}

func ProbeArgs(source string) []string {
	return []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", source}
}

// parseVersion returns the version token of "ffmpeg version X ..." output.
func parseVersion(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	if !sc.Scan() {
		return ""
	}
	fields := strings.Fields(sc.Text())
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(sc.Text())
}

// resolveBinary finds a usable executable.
func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH: %w", name, err)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
