package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cutlist/cutlist-agent/internal/media"
)

func (a *app) doctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Checking media tools...")

			backend, err := a.media()
			if err != nil {
				fmt.Fprintln(out, checkLine(false, "media backend", err.Error()))
				return errors.New("media tools are missing")
			}
			caps, err := backend.RunDoctor(cmd.Context())
			if err != nil {
				return fmt.Errorf("doctor failed: %w", err)
			}

			fmt.Fprintln(out, checkLine(caps.FFmpeg.Available, "ffmpeg", depDetail(caps.FFmpeg)))
			fmt.Fprintln(out, checkLine(caps.FFprobe.Available, "ffprobe", depDetail(caps.FFprobe)))

			if !caps.AllOK() {
				return errors.New("media tools are missing")
			}
			fmt.Fprintln(out, okStyle.Render("All media tools are available."))
			return nil
		},
	}
}

func depDetail(d media.DepInfo) string {
	if !d.Available {
		if d.Error != "" {
			return "NOT FOUND (" + d.Error + ")"
		}
		return "NOT FOUND"
	}
	if d.Version == "" {
		return d.Path
	}
	return d.Version + " " + dimStyle.Render(d.Path)
}
