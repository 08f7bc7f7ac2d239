package memory

import (
	"runtime/debug"
	"testing"
)

// resetMemoryLimit restores the runtime's soft memory limit after a test
// that configures it.
func resetMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvNotSet(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Configured = true with no environment, want false")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want %q", result.Source, "none")
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()

	if !result.Configured {
		t.Fatal("Configured = false, want true")
	}
	if result.Source != "MEMORY_LIMIT" {
		t.Errorf("Source = %q, want %q", result.Source, "MEMORY_LIMIT")
	}
	if result.ContainerLimit != 1073741824 {
		t.Errorf("ContainerLimit = %d, want 1073741824", result.ContainerLimit)
	}
	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Ratio = %v, want %v", result.Ratio, DefaultMemoryRatio)
	}

	// 80% of 1 GiB leaves headroom for encoder child processes.
	containerLimit := int64(1073741824)
	wantLimit := int64(float64(containerLimit) * DefaultMemoryRatio)
	if result.GoMemLimit != wantLimit {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, wantLimit)
	}
	if actual := debug.SetMemoryLimit(-1); actual != wantLimit {
		t.Errorf("runtime limit = %d, want %d", actual, wantLimit)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()

	if result.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", result.Ratio)
	}
	if result.GoMemLimit != 500000000 {
		t.Errorf("GoMemLimit = %d, want 500000000", result.GoMemLimit)
	}
}

func TestConfigureFromEnvRatioOutOfRange(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")

	for _, bad := range []string{"0", "-0.5", "1.5", "garbage"} {
		t.Setenv("MEMORY_RATIO", bad)
		result := ConfigureFromEnv()
		if result.Ratio != DefaultMemoryRatio {
			t.Errorf("MEMORY_RATIO=%q: Ratio = %v, want default %v", bad, result.Ratio, DefaultMemoryRatio)
		}
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "one gigabyte")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Configured = true with unparsable MEMORY_LIMIT, want false")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want %q", result.Source, "none")
	}
}

func TestConfigureFromEnvGoMemLimitPrecedence(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "512MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	debug.SetMemoryLimit(512 * 1024 * 1024)
	result := ConfigureFromEnv()

	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want %q", result.Source, "GOMEMLIMIT")
	}
	if !result.Configured {
		t.Error("Configured = false, want true")
	}
	// MEMORY_LIMIT must not override the runtime's own setting.
	if actual := debug.SetMemoryLimit(-1); actual != 512*1024*1024 {
		t.Errorf("runtime limit = %d, want %d", actual, 512*1024*1024)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{1536, "1.5 KiB"},
		{1073741824, "1.0 GiB"},
		{805306368, "768.0 MiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
