package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// ParseProbe decodes `ffprobe -print_format json -show_format -show_streams` output.
func ParseProbe(data []byte) (*ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	p := &ProbeResult{Format: out.Format.FormatName}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		p.Duration = time.Duration(d * float64(time.Second)).Round(time.Millisecond)
	}
	if br, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		p.Bitrate = br
	}

	videoSeen, audioSeen := false, false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if videoSeen {
				continue
			}
			videoSeen = true
			p.Codec = s.CodecName
			p.Width = s.Width
			p.Height = s.Height
			p.FrameRate = parseRate(s.RFrameRate)
			if p.FrameRate == 0 {
				p.FrameRate = parseRate(s.AvgFrameRate)
			}
		case "audio":
			if audioSeen {
				continue
			}
			audioSeen = true
			p.AudioCodec = s.CodecName
			p.AudioSample, _ = strconv.Atoi(s.SampleRate)
		}
	}

	if !videoSeen && !audioSeen {
		return nil, fmt.Errorf("no audio or video streams found")
	}
	return p, nil
}

// parseRate reads "30000/1001" or "25" style rates. Invalid input yields 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
