package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/edl"
	"github.com/cutlist/cutlist-agent/internal/export"
	"github.com/cutlist/cutlist-agent/internal/timecode"
)

func (a *app) edlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edl",
		Short: "Inspect and convert EDL files",
	}
	cmd.AddCommand(a.edlShowCommand(), a.edlCMXCommand())
	return cmd
}

func readEDL(path string) ([]cliplist.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read EDL: %w", err)
	}
	clips, err := edl.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clips, nil
}

func (a *app) edlShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <edl-file>",
		Short: "List the clips of an EDL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clips, err := readEDL(args[0])
			if err != nil {
				return err
			}
			list := cliplist.New()
			if err := list.Replace(clips); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTART\tEND\tDURATION")
			for i, c := range list.Snapshot() {
				end, _ := c.End.Value()
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1,
					timecode.FormatDuration(c.Start, timecode.Precise),
					timecode.FormatDuration(end, timecode.Precise),
					timecode.FormatDuration(c.Duration(), timecode.Precise),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d clips, total runtime %s",
				list.Len(), timecode.FormatDuration(list.TotalRuntime(), timecode.Runtime))))
			return nil
		},
	}
}

func (a *app) edlCMXCommand() *cobra.Command {
	var mediaPath, title, output string
	var fps float64

	cmd := &cobra.Command{
		Use:   "cmx <edl-file>",
		Short: "Convert an EDL file to CMX 3600",
		Long: `Convert an EDL file to a CMX 3600 style edit list that other editors can
import. Without --fps the frame rate is probed from the media file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clips, err := readEDL(args[0])
			if err != nil {
				return err
			}
			source, err := absFile(mediaPath)
			if err != nil {
				return err
			}

			if fps <= 0 {
				backend, err := a.media()
				if err != nil {
					return err
				}
				probe, err := backend.Probe(cmd.Context(), source)
				if err != nil {
					return fmt.Errorf("failed to probe media: %w", err)
				}
				fps = probe.FrameRate
			}
			if title == "" {
				title = trimExt(source)
			}

			doc := export.GenerateCMX(clips, title, source, fps)
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			if err := os.WriteFile(output, []byte(doc), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("wrote ")+output)
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaPath, "media", "", "source media file the EDL refers to")
	cmd.Flags().Float64Var(&fps, "fps", 0, "frame rate (default probed from the media)")
	cmd.Flags().StringVar(&title, "title", "", "edit list title (default media file name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	_ = cmd.MarkFlagRequired("media")
	return cmd
}
