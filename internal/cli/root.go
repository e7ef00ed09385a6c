// Package cli implements the cutlist command line: one-shot cut and join
// runs from an EDL file, CMX export, media probing and a tool check.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cutlist/cutlist-agent/internal/config"
	"github.com/cutlist/cutlist-agent/internal/cutjoin"
	"github.com/cutlist/cutlist-agent/internal/logging"
	"github.com/cutlist/cutlist-agent/internal/media"
)

// Backend is everything the commands need from the media layer.
type Backend interface {
	cutjoin.Backend
	RunDoctor(ctx context.Context) (*media.Capabilities, error)
}

// Options configures the root command. Zero values select the ffmpeg backend
// and the process's stdout and stderr.
type Options struct {
	Version    string
	Out        io.Writer
	Err        io.Writer
	NewBackend func(logger *slog.Logger) (Backend, error)
}

type app struct {
	opts     Options
	logLevel string
	logger   *slog.Logger
	backend  Backend
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.NewBackend == nil {
		opts.NewBackend = newFFmpegBackend
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "cutlist",
		Short: "Cut and join media from an edit decision list",
		Long: `cutlist cuts clips out of a media file and joins them, in order, into a
single output without re-encoding.

Clip lists are read from EDL files with one "start stop action" record per
line, start and stop in seconds.`,
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = logging.NewLoggerTo(opts.Err, a.logLevel)
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.cutCommand(),
		a.edlCommand(),
		a.probeCommand(),
		a.doctorCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	root := NewRootCommand(Options{Version: version})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		return 1
	}
	return 0
}

func (a *app) media() (Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.opts.NewBackend(a.logger)
	if err != nil {
		return nil, err
	}
	a.backend = b
	return b, nil
}

// newFFmpegBackend reads the same environment as the agent so both resolve
// the same binaries.
func newFFmpegBackend(logger *slog.Logger) (Backend, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	w, h := cfg.ThumbSize()
	return media.NewFFmpeg(media.Config{
		FFmpegPath:     cfg.FFmpegPath(),
		FFprobePath:    cfg.FFprobePath(),
		ThumbnailDir:   os.TempDir(),
		ThumbWidth:     w,
		ThumbHeight:    h,
		Timeout:        cfg.BackendTimeout(),
		DoctorTimeout:  cfg.DoctorTimeout(),
		KeepAllStreams: cfg.KeepAllStreams(),
		Logger:         logger,
	})
}

func absFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", abs)
	}
	if err != nil {
		return "", fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", abs)
	}
	return abs, nil
}

func trimExt(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
