// Package export renders clip lists for other editors and resolves where a
// saved cut is written.
package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
)

// GenerateCMX renders the completed clips as a CMX 3600 style EDL. Record
// timecodes run back to back in list order.
func GenerateCMX(clips []cliplist.Clip, title, mediaPath string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", SanitizeName(title, 70))}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	reel := reelName(mediaPath)
	var recordOffsetMs int64
	event := 0
	for _, clip := range clips {
		end, ok := clip.End.Value()
		if !ok {
			continue
		}
		event++
		startMs, endMs := clip.Start.Milliseconds(), end.Milliseconds()
		durationMs := endMs - startMs

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", event, reel, "AA/V",
				msToTimecode(startMs, fps), msToTimecode(endMs, fps),
				msToTimecode(recordOffsetMs, fps), msToTimecode(recordOffsetMs+durationMs, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", filepath.Base(mediaPath)),
			fmt.Sprintf("* MEDIA PATH:  %s", mediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// reelName derives an 8 character reel from the media file name.
func reelName(mediaPath string) string {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 8 {
			break
		}
	}
	if b.Len() == 0 {
		return "AX"
	}
	return b.String()
}

func msToTimecode(ms int64, fps int) string {
	totalFrames := int64(math.Round(float64(ms) * float64(fps) / 1000.0))
	f := int64(fps)
	frames := totalFrames % f
	totalSeconds := totalFrames / f
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
