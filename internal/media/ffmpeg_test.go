package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript installs an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins need a POSIX shell")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCutArgs(t *testing.T) {
	got := strings.Join(CutArgs("/in.mp4", "/out_01.mp4", 10500*time.Millisecond, 1750*time.Millisecond, true), " ")
	want := "-hide_banner -ss 00:00:10.500 -i /in.mp4 -t 00:00:01.750 -vcodec copy -acodec copy -scodec copy " +
		"-avoid_negative_ts 1 -copyinkf -map 0 -v 16 -y /out_01.mp4"
	if got != want {
		t.Errorf("CutArgs() =\n%s\nwant\n%s", got, want)
	}

	noMap := strings.Join(CutArgs("/in.mp4", "/o.mp4", 0, time.Second, false), " ")
	if strings.Contains(noMap, "-map") {
		t.Errorf("CutArgs(keepAll=false) contains -map: %s", noMap)
	}
}

func TestJoinArgs(t *testing.T) {
	got := strings.Join(JoinArgs("/d/.out.join.list", "/d/out.mp4", true), " ")
	want := "-hide_banner -f concat -safe 0 -i /d/.out.join.list -c copy -copyinkf -map 0 -v 16 -y /d/out.mp4"
	if got != want {
		t.Errorf("JoinArgs() = %s, want %s", got, want)
	}
}

func TestCaptureArgs(t *testing.T) {
	got := strings.Join(CaptureArgs("/in.mp4", "/t.jpg", 61*time.Second, 100, 70), " ")
	want := "-hide_banner -ss 00:01:01.000 -i /in.mp4 -vframes 1 -s 100x70 -v 16 -y /t.jpg"
	if got != want {
		t.Errorf("CaptureArgs() = %s, want %s", got, want)
	}
}

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		exitCode int
		want     bool
	}{
		{0, true},
		{1, false},
		{-1, false},
	}
	for _, tt := range tests {
		r := RunResult{ExitCode: tt.exitCode}
		if got := r.IsSuccess(); got != tt.want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", tt.exitCode, got, tt.want)
		}
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 5); got != "...world" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("hello", 5); got != "hello" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestParseVersion(t *testing.T) {
	out := "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc\n"
	if got := parseVersion(out); got != "6.1.1-3ubuntu5" {
		t.Errorf("parseVersion() = %q", got)
	}
	if got := parseVersion(""); got != "" {
		t.Errorf("parseVersion(empty) = %q", got)
	}
}

func TestResolveBinary_PreferredNotFound(t *testing.T) {
	if _, err := resolveBinary("/nonexistent/ffmpeg999", "ffmpeg"); err == nil {
		t.Fatal("expected error for nonexistent ffmpeg")
	}
}

func TestFFmpeg_CutWithScript(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", `for last; do :; done; echo "$@" > "$last"`)
	ffprobe := writeScript(t, dir, "ffprobe", `exit 0`)

	f, err := NewFFmpeg(Config{FFmpegPath: ffmpeg, FFprobePath: ffprobe, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}

	out := filepath.Join(dir, "out_01.mp4")
	if err := f.Cut(context.Background(), "/src.mp4", out, time.Second, 2*time.Second); err != nil {
		t.Fatalf("Cut() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(data), "-ss 00:00:01.000 -i /src.mp4 -t 00:00:02.000") {
		t.Errorf("script saw args %q", data)
	}
}

func TestFFmpeg_FailureCarriesStderr(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", `echo "Invalid data found when processing input" >&2; exit 1`)
	ffprobe := writeScript(t, dir, "ffprobe", `exit 0`)

	f, err := NewFFmpeg(Config{FFmpegPath: ffmpeg, FFprobePath: ffprobe, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}

	err = f.Join(context.Background(), filepath.Join(dir, "list"), filepath.Join(dir, "out.mp4"))
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("Join() error = %v, want ErrCommandFailed", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("error %q does not carry stderr tail", err)
	}
}

func TestFFmpeg_CancelKillsCommand(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", `exec sleep 10`)
	ffprobe := writeScript(t, dir, "ffprobe", `exit 0`)

	f, err := NewFFmpeg(Config{FFmpegPath: ffmpeg, FFprobePath: ffprobe, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = f.Cut(ctx, "/src.mp4", filepath.Join(dir, "o.mp4"), 0, time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Cut() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancelled command was not killed promptly")
	}
}

func TestFFmpeg_ProbeWithScript(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", `exit 0`)
	ffprobe := writeScript(t, dir, "ffprobe", `cat <<'JSON'
{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"r_frame_rate":"25/1"}],
 "format":{"format_name":"mp4","duration":"12.5","bit_rate":"1000"}}
JSON`)

	f, err := NewFFmpeg(Config{FFmpegPath: ffmpeg, FFprobePath: ffprobe, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}

	p, err := f.Probe(context.Background(), "/src.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if p.FrameRate != 25 || p.Duration != 12500*time.Millisecond || p.Codec != "h264" {
		t.Errorf("Probe() = %+v", p)
	}
}
