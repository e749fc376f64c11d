package env

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/goplus/sdkoverlay/pkgs/sdk"
)

func TestWorkDir(t *testing.T) {
	dir, err := WorkDir()
	if err != nil {
		t.Fatalf("WorkDir() returned error: %v", err)
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		t.Fatalf("os.UserCacheDir() returned error: %v", err)
	}
	if want := filepath.Join(userCacheDir, ".sdkoverlay"); dir != want {
		t.Errorf("WorkDir() = %q, want %q", dir, want)
	}
}

func TestKindForGOOS(t *testing.T) {
	tests := []struct {
		goos string
		want sdk.Kind
		ok   bool
	}{
		{"linux", sdk.Linux, true},
		{"darwin", sdk.OSX, true},
		{"freebsd", sdk.FreeBSD, true},
		{"android", sdk.Android, true},
		{"windows", sdk.Windows, true},
		{"plan9", "", false},
	}
	for _, tt := range tests {
		got, ok := KindForGOOS(tt.goos)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindForGOOS(%q) = %q, %v; want %q, %v", tt.goos, got, ok, tt.want, tt.ok)
		}
	}
	if runtime.GOOS == "linux" {
		if k, ok := HostKind(); !ok || k != sdk.Linux {
			t.Errorf("HostKind() = %q, %v on linux", k, ok)
		}
	}
}

func TestParseMultiarch(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"x86_64-linux-gnu\n", "x86_64-linux-gnu"},
		{"aarch64-linux-gnu", "aarch64-linux-gnu"},
		{"\n", ""},
		{"", ""},
		{"clang: error: unknown argument\n", ""},
		{"x86_64\n", ""},
	}
	for _, tt := range tests {
		if got := parseMultiarch([]byte(tt.out)); got != tt.want {
			t.Errorf("parseMultiarch(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}

func TestTripleCandidates(t *testing.T) {
	if got := tripleCandidates("x86_64"); !slices.Equal(got, []string{"x86_64-linux-gnu"}) {
		t.Errorf("tripleCandidates(x86_64) = %v", got)
	}
	if got := tripleCandidates("armv7l"); got[0] != "arm-linux-gnueabihf" {
		t.Errorf("tripleCandidates(armv7l) = %v", got)
	}
	if got := tripleCandidates("mips64"); !slices.Equal(got, []string{"mips64-linux-gnu"}) {
		t.Errorf("tripleCandidates(mips64) = %v", got)
	}
}

func TestDetectHostTriple(t *testing.T) {
	// Keep the result well-formed whatever the host is.
	triple := DetectHostTriple(context.Background())
	if triple != "" && parseMultiarch([]byte(triple)) != triple {
		t.Errorf("DetectHostTriple() = %q is not a triple", triple)
	}
}

func TestDetectHostTriple_IncludeFallback(t *testing.T) {
	machine := hostMachine()
	if machine == "" {
		t.Skip("uname not available")
	}
	t.Setenv("PATH", t.TempDir())

	root := t.TempDir()
	if got := detectHostTriple(context.Background(), root); got != "" {
		t.Errorf("detectHostTriple() with empty include root = %q, want empty", got)
	}

	want := tripleCandidates(machine)[0]
	if err := os.MkdirAll(filepath.Join(root, want), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := detectHostTriple(context.Background(), root); got != want {
		t.Errorf("detectHostTriple() = %q, want %q", got, want)
	}
}
