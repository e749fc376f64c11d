// Package sdk describes the target platform configurations an overlay can be
// built for.
package sdk

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Kind is the tag identifying an SDK (OS/ABI family).
type Kind string

const (
	Linux            Kind = "LINUX"
	FreeBSD          Kind = "FREEBSD"
	OpenBSD          Kind = "OPENBSD"
	Android          Kind = "ANDROID"
	Cygwin           Kind = "CYGWIN"
	Haiku            Kind = "HAIKU"
	Windows          Kind = "WINDOWS"
	OSX              Kind = "OSX"
	IOS              Kind = "IOS"
	IOSSimulator     Kind = "IOS_SIMULATOR"
	TVOS             Kind = "TVOS"
	TVOSSimulator    Kind = "TVOS_SIMULATOR"
	WatchOS          Kind = "WATCHOS"
	WatchOSSimulator Kind = "WATCHOS_SIMULATOR"
)

var knownKinds = []Kind{
	Linux, FreeBSD, OpenBSD, Android, Cygwin, Haiku, Windows,
	OSX, IOS, IOSSimulator, TVOS, TVOSSimulator, WatchOS, WatchOSSimulator,
}

// library subdirectory names that differ from the lower-cased kind.
var libSubdirs = map[Kind]string{
	OSX:              "macosx",
	IOS:              "iphoneos",
	IOSSimulator:     "iphonesimulator",
	TVOS:             "appletvos",
	TVOSSimulator:    "appletvsimulator",
	WatchOS:          "watchos",
	WatchOSSimulator: "watchsimulator",
}

// Kinds returns every known SDK kind.
func Kinds() []Kind {
	return append([]Kind(nil), knownKinds...)
}

// ParseKind converts s (case-insensitive) to a known Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range knownKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sdk kind %q", s)
}

func (k Kind) String() string {
	return string(k)
}

// DefaultLibSubdir returns the library subdirectory used for k when the
// configuration does not name one.
func (k Kind) DefaultLibSubdir() string {
	if dir, ok := libSubdirs[k]; ok {
		return dir
	}
	return strings.ToLower(string(k))
}

// -----------------------------------------------------------------------------

// Target is one configured SDK together with the architectures built for it.
type Target struct {
	Kind      Kind
	LibSubdir string
	Archs     []string
	// Path is the SDK root on disk, if the SDK ships its own sysroot.
	Path string
}

// NewTarget returns a Target for kind with the default library subdirectory.
func NewTarget(kind Kind, archs ...string) Target {
	return Target{
		Kind:      kind,
		LibSubdir: kind.DefaultLibSubdir(),
		Archs:     archs,
	}
}

// ArchSubdir joins the SDK's library subdirectory with arch.
func (t Target) ArchSubdir(arch string) string {
	subdir := t.LibSubdir
	if subdir == "" {
		subdir = t.Kind.DefaultLibSubdir()
	}
	return path.Join(subdir, arch)
}

// CheckPathElement reports an error unless s can name exactly one directory
// level: non-empty, no separators, not "." or "..".
func CheckPathElement(s string) error {
	switch {
	case s == "":
		return errors.New("empty path element")
	case s == "." || s == "..":
		return fmt.Errorf("path element %q refers to a parent or current directory", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("path element %q contains a separator", s)
	}
	return nil
}

// Pair is a single (SDK, architecture) combination.
type Pair struct {
	Target Target
	Arch   string
}

// ArchSubdir returns the architecture subdirectory of the pair.
func (p Pair) ArchSubdir() string {
	return p.Target.ArchSubdir(p.Arch)
}

// Pairs flattens targets into (SDK, architecture) pairs. Unlike a sorted
// matrix, the result keeps the insertion order of targets and of each
// target's architectures.
func Pairs(targets []Target) []Pair {
	n := 0
	for _, t := range targets {
		n += len(t.Archs)
	}
	if n == 0 {
		return nil
	}
	pairs := make([]Pair, 0, n)
	for _, t := range targets {
		for _, arch := range t.Archs {
			pairs = append(pairs, Pair{Target: t, Arch: arch})
		}
	}
	return pairs
}

// PairCount returns len(Pairs(targets)) without building the slice.
func PairCount(targets []Target) int {
	count := 0
	for _, t := range targets {
		count += len(t.Archs)
	}
	return count
}
