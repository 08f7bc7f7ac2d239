package subtitles

import (
	"fmt"
	"strconv"
	"strings"
)

// ShiftCues rewrites every cue timing line in vtt, moving timestamps back by
// offset seconds. Cues that end at or before the new zero point are dropped;
// cues straddling it have their start clamped to zero. Non-timing lines pass
// through untouched, so styling and cue text survive.
func ShiftCues(vtt string, offset float64) string {
	if offset <= 0 {
		return vtt
	}

	lines := strings.Split(vtt, "\n")
	var out []string
	skipBlock := false
	for _, line := range lines {
		if !strings.Contains(line, "-->") {
			if skipBlock {
				if strings.TrimSpace(line) == "" {
					skipBlock = false
				}
				continue
			}
			out = append(out, line)
			continue
		}

		start, end, tail, ok := parseTimingLine(line)
		if !ok {
			out = append(out, line)
			continue
		}
		start -= offset
		end -= offset
		if end <= 0 {
			skipBlock = true
			// Drop the preceding cue identifier line if it was emitted.
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) != "" && !strings.Contains(out[n-1], "-->") && out[n-1] != "WEBVTT" {
				out = out[:n-1]
			}
			continue
		}
		if start < 0 {
			start = 0
		}
		out = append(out, formatTimestamp(start)+" --> "+formatTimestamp(end)+tail)
	}
	return strings.Join(out, "\n")
}

// parseTimingLine splits "HH:MM:SS.mmm --> HH:MM:SS.mmm <settings>" into
// seconds plus the trailing cue settings (preserved verbatim, leading space
// included).
func parseTimingLine(line string) (start, end float64, tail string, ok bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, "", false
	}
	startStr := strings.TrimSpace(parts[0])
	rest := strings.TrimSpace(parts[1])
	endStr := rest
	if i := strings.IndexByte(rest, ' '); i > 0 {
		endStr = rest[:i]
		tail = " " + rest[i+1:]
	}
	start, err := parseTimestamp(startStr)
	if err != nil {
		return 0, 0, "", false
	}
	end, err = parseTimestamp(endStr)
	if err != nil {
		return 0, 0, "", false
	}
	return start, end, tail, true
}

// parseTimestamp accepts both WebVTT timestamp forms, HH:MM:SS.mmm and
// MM:SS.mmm.
func parseTimestamp(s string) (float64, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 3:
		h, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, err
		}
		m, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, err
		}
		sec, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, err
		}
		return h*3600 + m*60 + sec, nil
	case 2:
		m, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, err
		}
		sec, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, err
		}
		return m*60 + sec, nil
	default:
		return 0, fmt.Errorf("malformed timestamp %q", s)
	}
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	millis %= 3600000
	m := millis / 60000
	millis %= 60000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
