package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("Platform = %q, want %q", info.Platform, want)
	}
}

func TestInfoString(t *testing.T) {
	s := Info{Version: "1.2.3", GitCommit: "abc1234", GoVersion: "go1.24.11", Platform: "linux/arm64"}.String()
	if !strings.HasPrefix(s, "rworker 1.2.3") || !strings.Contains(s, "abc1234") {
		t.Errorf("String() = %q", s)
	}
}
