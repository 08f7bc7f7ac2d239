package streaming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsatisfiableRange indicates a malformed Range header or a requested
// window that lies entirely outside the resource. Maps to HTTP 416.
var ErrUnsatisfiableRange = errors.New("requested range not satisfiable")

// ByteRange is an inclusive byte window [Start, End] within a resource of
// Total bytes.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Length returns the number of bytes covered by the range.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange returns the Content-Range header value for the range.
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// ResolveRange parses a Range header value against a known total size.
//
// An empty header returns (nil, nil): the caller should serve the full
// resource and advertise Accept-Ranges. An empty start means 0 and an empty
// end means total-1. The end is clamped to total-1 so open-ended and
// oversized probes from media players stay satisfiable; a start at or past
// the end of the resource fails with ErrUnsatisfiableRange.
func ResolveRange(header string, total int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	if total <= 0 {
		return nil, ErrUnsatisfiableRange
	}

	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return nil, ErrUnsatisfiableRange
	}
	// A single range only; multipart ranges are not served.
	if strings.Contains(spec, ",") {
		return nil, ErrUnsatisfiableRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrUnsatisfiableRange
	}

	start := int64(0)
	if s := strings.TrimSpace(startStr); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return nil, ErrUnsatisfiableRange
		}
		start = v
	}

	end := total - 1
	if s := strings.TrimSpace(endStr); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return nil, ErrUnsatisfiableRange
		}
		end = v
	}

	if end > total-1 {
		end = total - 1
	}
	if start > end {
		return nil, ErrUnsatisfiableRange
	}

	return &ByteRange{Start: start, End: end, Total: total}, nil
}
