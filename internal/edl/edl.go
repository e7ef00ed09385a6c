// Package edl reads and writes the MPlayer-style edit decision list:
// one "<start> <stop> <action>" record per line, times in seconds.
package edl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/timecode"
)

var (
	ErrMalformedLine = errors.New("edl: malformed line")
	ErrEncoding      = errors.New("edl: input is not valid UTF-8")
)

var recordRe = regexp.MustCompile(`^(\d+(?:\.?\d+)?)\s+(\d+(?:\.?\d+)?)\s+([01])`)

// LineError identifies the first line that could not be decoded.
type LineError struct {
	Line int
	Text string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("edl: invalid entry at line %d: %q", e.Line, e.Text)
}

func (e *LineError) Unwrap() error {
	return ErrMalformedLine
}

// Record is one decoded EDL line. Action 0 is a cut; 1 is carried through.
type Record struct {
	Start  float64
	Stop   float64
	Action int
}

// DecodeRecords parses data. The first bad line aborts the whole decode.
func DecodeRecords(data []byte) ([]Record, error) {
	if !utf8.Valid(data) {
		return nil, ErrEncoding
	}

	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := string(bytes.TrimSpace(sc.Bytes()))
		if text == "" {
			continue
		}
		m := recordRe.FindStringSubmatch(text)
		if m == nil {
			return nil, &LineError{Line: line, Text: text}
		}
		start, err1 := strconv.ParseFloat(m[1], 64)
		stop, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return nil, &LineError{Line: line, Text: text}
		}
		// A record that cannot form a clip is rejected with the line, not later.
		if timecode.FromSeconds(stop) <= timecode.FromSeconds(start) {
			return nil, &LineError{Line: line, Text: text}
		}
		action := 0
		if m[3] == "1" {
			action = 1
		}
		records = append(records, Record{Start: start, Stop: stop, Action: action})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("edl: read: %w", err)
	}
	return records, nil
}

// EncodeRecords writes one tab-delimited line per record.
func EncodeRecords(records []Record) []byte {
	var b bytes.Buffer
	for _, r := range records {
		fmt.Fprintf(&b, "%f\t%f\t%d\n", r.Start, r.Stop, r.Action)
	}
	return b.Bytes()
}

// Encode serializes the completed clips. Pending clips are skipped.
func Encode(clips []cliplist.Clip) []byte {
	records := make([]Record, 0, len(clips))
	for _, c := range clips {
		end, ok := c.End.Value()
		if !ok {
			continue
		}
		records = append(records, Record{
			Start: timecode.Seconds(c.Start),
			Stop:  timecode.Seconds(end),
		})
	}
	return EncodeRecords(records)
}

// Decoder turns EDL text into clips, capturing a thumbnail for each start.
type Decoder struct {
	Capturer cliplist.FrameCapturer
	Logger   *slog.Logger
}

// Decode parses data into a new clip list. Thumbnail failures are logged and
// leave the clip without a thumbnail.
func (d *Decoder) Decode(ctx context.Context, data []byte) ([]cliplist.Clip, error) {
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, err
	}

	clips := make([]cliplist.Clip, 0, len(records))
	for _, r := range records {
		start := timecode.FromSeconds(r.Start)
		c := cliplist.Clip{
			Start: start,
			End:   cliplist.Completed(timecode.FromSeconds(r.Stop)),
		}
		if d.Capturer != nil {
			ref, err := d.Capturer.Capture(ctx, start)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if d.Logger != nil {
					d.Logger.Warn("thumbnail capture failed", "at", timecode.FormatDuration(start, timecode.Precise), "error", err)
				}
			} else {
				c.Thumbnail = ref
			}
		}
		clips = append(clips, c)
	}
	return clips, nil
}

// Decode parses data without capturing thumbnails.
func Decode(data []byte) ([]cliplist.Clip, error) {
	d := Decoder{}
	return d.Decode(context.Background(), data)
}
