package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("OS/Arch = %s/%s, want %s/%s", info.OS, info.Arch, runtime.GOOS, runtime.GOARCH)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV", "")
	if got := getEnv("TEST_GET_ENV", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want fallback", got)
	}

	t.Setenv("TEST_GET_ENV", "configured")
	if got := getEnv("TEST_GET_ENV", "fallback"); got != "configured" {
		t.Errorf("getEnv() = %q, want configured", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"false", true, false},
		{"1", false, true},
		{"0", true, false},
		{"nonsense", true, true},
		{"nonsense", false, false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_GET_ENV_BOOL", tt.value)
		if got := getEnvBool("TEST_GET_ENV_BOOL", tt.fallback); got != tt.want {
			t.Errorf("getEnvBool() with %q fallback %v = %v, want %v", tt.value, tt.fallback, got, tt.want)
		}
	}
}

func TestFindToolOverride(t *testing.T) {
	// A stat-able override is accepted without running it.
	fake := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake tool: %v", err)
	}

	if got := findTool("ffmpeg", fake); got != fake {
		t.Errorf("findTool() = %q, want override %q", got, fake)
	}

	if got := findTool("ffmpeg", filepath.Join(t.TempDir(), "missing")); got != "" {
		t.Errorf("findTool() = %q for missing override, want empty", got)
	}
}

func TestEnsureDirectory(t *testing.T) {
	base := t.TempDir()

	// Creates missing directories.
	dir := filepath.Join(base, "sub", "dir")
	if err := ensureDirectory(dir, "cache"); err != nil {
		t.Fatalf("ensureDirectory() failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory was not created: %v", err)
	}

	// Accepts an existing directory.
	if err := ensureDirectory(dir, "cache"); err != nil {
		t.Errorf("ensureDirectory() on existing dir failed: %v", err)
	}

	// Rejects a file in the way.
	file := filepath.Join(base, "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := ensureDirectory(file, "cache"); err == nil {
		t.Error("ensureDirectory() accepted a regular file")
	}
}

func TestSetupOptionalDir(t *testing.T) {
	if !setupOptionalDir(filepath.Join(t.TempDir(), "thumbs"), "thumbnails") {
		t.Error("setupOptionalDir() = false for a writable location")
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Errorf("testWriteAccess() failed on writable dir: %v", err)
	}

	// No leftover probe file.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("write probe left %d files behind", len(entries))
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet)
	router.HandleFunc("/api/browse/{path:.*}", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet)
	router.HandleFunc("/stream/{path:.*}", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet, http.MethodHead)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() failed: %v", err)
	}

	// The two-method route expands into two entries.
	if len(routes) != 4 {
		t.Fatalf("len(routes) = %d, want 4", len(routes))
	}

	found := map[string]bool{}
	for _, r := range routes {
		found[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /api/browse/{path:.*}",
		"GET /stream/{path:.*}",
		"HEAD /stream/{path:.*}",
	} {
		if !found[want] {
			t.Errorf("route %q not reported; got %v", want, found)
		}
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "health"},
		{"/api/browse/{path:.*}", "api/browse"},
		{"/api/save-position/{path:.*}", "api/save-position"},
		{"/stream/{path:.*}", "stream"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEnabledString(t *testing.T) {
	if enabledString(true) != "ENABLED" || enabledString(false) != "DISABLED" {
		t.Error("enabledString mapping broken")
	}
}
