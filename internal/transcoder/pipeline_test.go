package transcoder

import (
	"strings"
	"testing"
)

func TestSplitSeek(t *testing.T) {
	t.Parallel()

	tests := []struct {
		start      float64
		wantCoarse float64
		wantFine   float64
	}{
		{0, 0, 0},
		{-5, 0, 0},
		{10, 0, 10},
		{30, 0, 30},
		{45, 15, 30},
		{600, 570, 30},
	}

	for _, tt := range tests {
		coarse, fine := splitSeek(tt.start)
		if coarse != tt.wantCoarse || fine != tt.wantFine {
			t.Errorf("splitSeek(%v) = (%v, %v), want (%v, %v)",
				tt.start, coarse, fine, tt.wantCoarse, tt.wantFine)
		}
	}
}

func TestBuildArgsCopySplitSeek(t *testing.T) {
	t.Parallel()

	args := buildArgs("/media/movie.mkv", 45, 0, PipelineCopy)

	// Coarse seek before -i, fine seek after.
	wantPrefix := []string{"-ss", "15.000", "-i", "/media/movie.mkv", "-ss", "30.000"}
	if !hasPrefix(args, wantPrefix) {
		t.Errorf("args = %v, want prefix %v", args, wantPrefix)
	}
	if !hasSubsequence(args, "-c:v", "copy") {
		t.Errorf("args = %v, missing -c:v copy", args)
	}
	if hasSubsequence(args, "-c:v", "libx264") {
		t.Errorf("copy pipeline must not re-encode video: %v", args)
	}
}

func TestBuildArgsCopyShortSeek(t *testing.T) {
	t.Parallel()

	// Within the coarse window the whole seek is frame-accurate.
	args := buildArgs("/media/movie.mkv", 10, 0, PipelineCopy)

	wantPrefix := []string{"-i", "/media/movie.mkv", "-ss", "10.000"}
	if !hasPrefix(args, wantPrefix) {
		t.Errorf("args = %v, want prefix %v", args, wantPrefix)
	}
}

func TestBuildArgsCopyNoSeek(t *testing.T) {
	t.Parallel()

	args := buildArgs("/media/movie.mkv", 0, 0, PipelineCopy)

	for _, arg := range args {
		if arg == "-ss" {
			t.Fatalf("start time 0 must not emit a seek: %v", args)
		}
	}
	if !hasPrefix(args, []string{"-i", "/media/movie.mkv"}) {
		t.Errorf("args = %v, want input first", args)
	}
}

func TestBuildArgsTranscodeSingleSeek(t *testing.T) {
	t.Parallel()

	args := buildArgs("/media/old.avi", 45, 0, PipelineTranscode)

	wantPrefix := []string{"-ss", "45.000", "-i", "/media/old.avi"}
	if !hasPrefix(args, wantPrefix) {
		t.Errorf("args = %v, want prefix %v", args, wantPrefix)
	}
	if countOf(args, "-ss") != 1 {
		t.Errorf("transcode pipeline must seek exactly once: %v", args)
	}
	if !hasSubsequence(args, "-c:v", "libx264", "-preset", "fast", "-crf", "23") {
		t.Errorf("args = %v, missing libx264 settings", args)
	}
}

func TestBuildArgsCommonTail(t *testing.T) {
	t.Parallel()

	for _, pipeline := range []Pipeline{PipelineCopy, PipelineTranscode} {
		t.Run(string(pipeline), func(t *testing.T) {
			args := buildArgs("/media/movie.mkv", 0, 2, pipeline)

			if !hasSubsequence(args, "-map", "0:v:0", "-map", "0:a:2") {
				t.Errorf("args = %v, missing stream mapping", args)
			}
			if !hasSubsequence(args, "-c:a", "aac", "-b:a", "192k", "-ac", "2") {
				t.Errorf("args = %v, missing audio settings", args)
			}
			if !hasSubsequence(args, "-movflags", "frag_keyframe+empty_moov", "-f", "mp4", "pipe:1") {
				t.Errorf("args = %v, missing fragmented output settings", args)
			}
			if args[len(args)-1] != "pipe:1" {
				t.Errorf("args = %v, output must be stdout", args)
			}
		})
	}
}

func hasPrefix(args, prefix []string) bool {
	if len(args) < len(prefix) {
		return false
	}
	for i, want := range prefix {
		if args[i] != want {
			return false
		}
	}
	return true
}

// hasSubsequence reports whether want appears contiguously in args.
func hasSubsequence(args []string, want ...string) bool {
	return strings.Contains(
		"\x00"+strings.Join(args, "\x00")+"\x00",
		"\x00"+strings.Join(want, "\x00")+"\x00",
	)
}

func countOf(args []string, target string) int {
	n := 0
	for _, arg := range args {
		if arg == target {
			n++
		}
	}
	return n
}
