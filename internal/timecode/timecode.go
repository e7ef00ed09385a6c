// Package timecode converts between millisecond offsets and the
// hours/minutes/seconds/millis values shown next to clips.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// Precise is the clip time pattern used in lists and EDL views.
	Precise = "hh:mm:ss.zzz"
	// Runtime is the pattern for total runtime.
	Runtime = "hh:mm:ss"
)

// ErrFormat is returned when a string does not match its pattern.
var ErrFormat = errors.New("timecode: value does not match pattern")

// Value is a structured time offset.
type Value struct {
	Hours   int
	Minutes int
	Seconds int
	Millis  int
}

// FromMillis splits a millisecond offset. Negative offsets clamp to zero.
func FromMillis(ms int64) Value {
	if ms < 0 {
		ms = 0
	}
	return Value{
		Hours:   int(ms / 3600000),
		Minutes: int(ms / 60000 % 60),
		Seconds: int(ms / 1000 % 60),
		Millis:  int(ms % 1000),
	}
}

// FromDuration truncates d to the millisecond.
func FromDuration(d time.Duration) Value {
	return FromMillis(d.Milliseconds())
}

// TotalMillis returns the offset in milliseconds.
func (v Value) TotalMillis() int64 {
	return int64(v.Hours)*3600000 + int64(v.Minutes)*60000 + int64(v.Seconds)*1000 + int64(v.Millis)
}

func (v Value) Duration() time.Duration {
	return time.Duration(v.TotalMillis()) * time.Millisecond
}

// ToSeconds returns hours*3600 + minutes*60 + seconds + millis/1000.
func ToSeconds(v Value) float64 {
	return float64(v.Hours*3600+v.Minutes*60+v.Seconds) + float64(v.Millis)/1000
}

// Seconds converts d to fractional seconds at millisecond precision.
func Seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}

// FromSeconds rounds fractional seconds to the nearest millisecond.
func FromSeconds(f float64) time.Duration {
	return time.Duration(math.Round(f*1000)) * time.Millisecond
}

// String formats v with Precise.
func (v Value) String() string {
	return Format(v, Precise)
}

type token struct {
	text  string
	width int // zero-pad width, 0 for none
	max   int // maximum digits accepted when parsing, 0 for unbounded
}

var tokens = []token{
	{"zzz", 3, 3},
	{"hh", 2, 0},
	{"mm", 2, 2},
	{"ss", 2, 2},
	{"h", 0, 0},
	{"m", 0, 2},
	{"s", 0, 2},
}

func matchToken(pattern string) (token, bool) {
	for _, t := range tokens {
		if strings.HasPrefix(pattern, t.text) {
			return t, true
		}
	}
	return token{}, false
}

func (v Value) field(t token) int {
	switch t.text[0] {
	case 'h':
		return v.Hours
	case 'm':
		return v.Minutes
	case 's':
		return v.Seconds
	default:
		return v.Millis
	}
}

// Format renders v using pattern tokens hh, h, mm, m, ss, s and zzz.
// Every other character is copied literally.
func Format(v Value, pattern string) string {
	var b strings.Builder
	for len(pattern) > 0 {
		t, ok := matchToken(pattern)
		if !ok {
			b.WriteByte(pattern[0])
			pattern = pattern[1:]
			continue
		}
		n := v.field(t)
		if t.width > 0 {
			fmt.Fprintf(&b, "%0*d", t.width, n)
		} else {
			b.WriteString(strconv.Itoa(n))
		}
		pattern = pattern[len(t.text):]
	}
	return b.String()
}

// Parse reads s according to pattern. It is the inverse of Format.
func Parse(s, pattern string) (Value, error) {
	var v Value
	in := s
	for len(pattern) > 0 {
		t, ok := matchToken(pattern)
		if !ok {
			if len(in) == 0 || in[0] != pattern[0] {
				return Value{}, fmt.Errorf("%w: %q against %q", ErrFormat, s, pattern)
			}
			in = in[1:]
			pattern = pattern[1:]
			continue
		}

		end := 0
		for end < len(in) && in[end] >= '0' && in[end] <= '9' && (t.max == 0 || end < t.max) {
			end++
		}
		if end == 0 || (t.width > 0 && end < t.width) {
			return Value{}, fmt.Errorf("%w: %q against %q", ErrFormat, s, pattern)
		}
		n, err := strconv.Atoi(in[:end])
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		switch t.text[0] {
		case 'h':
			v.Hours = n
		case 'm':
			v.Minutes = n
		case 's':
			v.Seconds = n
		default:
			v.Millis = n
		}
		in = in[end:]
		pattern = pattern[len(t.text):]
	}
	if len(in) > 0 {
		return Value{}, fmt.Errorf("%w: trailing %q", ErrFormat, in)
	}
	if v.Minutes > 59 || v.Seconds > 59 {
		return Value{}, fmt.Errorf("%w: %q out of range", ErrFormat, s)
	}
	return v, nil
}

// FormatDuration renders d with pattern.
func FormatDuration(d time.Duration, pattern string) string {
	return Format(FromDuration(d), pattern)
}
