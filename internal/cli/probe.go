package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cutlist/cutlist-agent/internal/timecode"
)

func (a *app) probeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <media-file>",
		Short: "Show the duration, streams and frame rate of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := absFile(args[0])
			if err != nil {
				return err
			}
			backend, err := a.media()
			if err != nil {
				return err
			}
			p, err := backend.Probe(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("failed to probe media: %w", err)
			}

			lines := []string{
				infoLine("Duration", timecode.FormatDuration(p.Duration, timecode.Precise)),
			}
			if info, err := os.Stat(source); err == nil {
				lines = append(lines, infoLine("Size", humanize.Bytes(uint64(info.Size()))))
			}
			if p.Format != "" {
				lines = append(lines, infoLine("Container", p.Format))
			}
			if p.Codec != "" {
				lines = append(lines, infoLine("Video", fmt.Sprintf("%s %dx%d", p.Codec, p.Width, p.Height)))
			}
			if p.FrameRate > 0 {
				lines = append(lines, infoLine("Frame rate", fmt.Sprintf("%.3f fps", p.FrameRate)))
			}
			if p.AudioCodec != "" {
				lines = append(lines, infoLine("Audio", fmt.Sprintf("%s %d Hz", p.AudioCodec, p.AudioSample)))
			}
			if p.Bitrate > 0 {
				lines = append(lines, infoLine("Bitrate", humanize.SI(float64(p.Bitrate), "bit/s")))
			}

			fmt.Fprintln(cmd.OutOrStdout(), box(filepath.Base(source), lines...))
			return nil
		},
	}
}
