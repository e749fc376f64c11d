// Package env inspects the host the tool runs on.
package env

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/goplus/sdkoverlay/pkgs/sdk"
)

// WorkDir returns the per-user directory holding stamps and materialized
// templates.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".sdkoverlay"), nil
}

var goosKinds = map[string]sdk.Kind{
	"linux":   sdk.Linux,
	"freebsd": sdk.FreeBSD,
	"openbsd": sdk.OpenBSD,
	"android": sdk.Android,
	"darwin":  sdk.OSX,
	"ios":     sdk.IOS,
	"windows": sdk.Windows,
}

// HostKind returns the SDK kind of the running host.
func HostKind() (sdk.Kind, bool) {
	return KindForGOOS(runtime.GOOS)
}

// KindForGOOS maps a GOOS value to an SDK kind.
func KindForGOOS(goos string) (sdk.Kind, bool) {
	k, ok := goosKinds[goos]
	return k, ok
}
