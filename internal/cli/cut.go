package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/cutjoin"
	"github.com/cutlist/cutlist-agent/internal/edl"
	"github.com/cutlist/cutlist-agent/internal/export"
	"github.com/cutlist/cutlist-agent/internal/timecode"
)

func (a *app) cutCommand() *cobra.Command {
	var edlPath, output string

	cmd := &cobra.Command{
		Use:   "cut <media-file>",
		Short: "Cut the clips of an EDL out of a media file and join them",
		Long: `Cut every clip listed in an EDL file out of the media file and join them,
in list order, into one output file.

The EDL defaults to the media path with an .edl extension and the output to
<name>_EDIT<ext> next to the media. Ctrl+C cancels the run and removes any
partial files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := absFile(args[0])
			if err != nil {
				return err
			}
			if edlPath == "" {
				edlPath = export.DefaultEDLPath(source)
			}
			data, err := os.ReadFile(edlPath)
			if err != nil {
				return fmt.Errorf("failed to read EDL: %w", err)
			}
			clips, err := edl.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", edlPath, err)
			}

			list := cliplist.New()
			if err := list.Replace(clips); err != nil {
				return err
			}
			if !list.IsSavable() {
				return fmt.Errorf("%s has no clips", edlPath)
			}

			if output != "" {
				if output, err = filepath.Abs(output); err != nil {
					return fmt.Errorf("failed to resolve output: %w", err)
				}
			}
			dest, err := export.ResolveDest(source, output)
			if err != nil {
				return err
			}

			backend, err := a.media()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Cutting %d clips from %s", list.Len(), filepath.Base(source))))

			obs := cutjoin.ObserverFunc(func(step, total int, label string) {
				fmt.Fprintf(out, "%s %s\n", dimStyle.Render(fmt.Sprintf("[%d/%d]", step, total)), label)
			})

			orch := cutjoin.New(backend, a.logger)
			result, err := orch.Execute(ctx, cutjoin.Request{Source: source, Dest: dest}, list, obs)
			if err != nil {
				return err
			}

			size := "unknown size"
			if info, err := os.Stat(result); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintln(out, box("Done",
				infoLine("Output", result),
				infoLine("Clips", fmt.Sprintf("%d", list.Len())),
				infoLine("Runtime", timecode.FormatDuration(list.TotalRuntime(), timecode.Runtime)),
				infoLine("Size", size),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&edlPath, "edl", "", "EDL file to read (default <media>.edl)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <media>_EDIT<ext>)")
	return cmd
}
