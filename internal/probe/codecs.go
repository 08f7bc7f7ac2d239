package probe

import "strings"

// copyEligibleCodecs lists video codecs a browser can decode natively,
// allowing the video stream to be repackaged without re-encoding. Keys are
// normalized (lowercase, dots stripped).
var copyEligibleCodecs = map[string]bool{
	"h264": true,
	"avc":  true,
	"avc1": true,
	"hevc": true,
	"h265": true,
	"hev1": true,
	"hvc1": true,
}

// CopyEligible reports whether the named video codec can be stream-copied
// instead of re-encoded. Matching is case-insensitive and tolerates dotted
// spellings such as "H.264".
func CopyEligible(codec string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(codec)), ".", "")
	return copyEligibleCodecs[normalized]
}
