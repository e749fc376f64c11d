// Package variant selects which platform overlay library is built for a host.
package variant

import (
	"errors"
	"fmt"
	"slices"

	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/sdk"
)

// Variant is the overlay flavour. The zero value is not a valid variant.
type Variant int

const (
	Darwin Variant = iota + 1
	GlibcLike
)

// ErrUnsupportedHost is returned by Classify for hosts that match neither
// the Darwin-like nor the glibc-like family.
var ErrUnsupportedHost = errors.New("unsupported host platform")

var (
	darwinKinds = []sdk.Kind{
		sdk.OSX, sdk.IOS, sdk.IOSSimulator,
		sdk.TVOS, sdk.TVOSSimulator,
		sdk.WatchOS, sdk.WatchOSSimulator,
	}
	glibcKinds = []sdk.Kind{
		sdk.Linux, sdk.FreeBSD, sdk.OpenBSD, sdk.Android, sdk.Cygwin, sdk.Haiku,
	}
)

// Classify maps a host SDK kind to its overlay variant.
func Classify(host sdk.Kind) (Variant, error) {
	switch {
	case slices.Contains(darwinKinds, host):
		return Darwin, nil
	case slices.Contains(glibcKinds, host):
		return GlibcLike, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedHost, host)
}

func (v Variant) String() string {
	switch v {
	case Darwin:
		return "darwin"
	case GlibcLike:
		return "glibc"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// -----------------------------------------------------------------------------

// Library describes the overlay library target registered for a variant.
type Library struct {
	Name         string   `yaml:"name"`
	Sources      []string `yaml:"sources"`
	CompileFlags []string `yaml:"compile_flags,omitempty"`
	// Depends lists build targets that must complete before the library.
	Depends []string `yaml:"depends,omitempty"`
	// APINotesNonOverlay marks that API notes are supplied out-of-band rather
	// than by this overlay.
	APINotesNonOverlay bool `yaml:"api_notes_non_overlay,omitempty"`
}

var commonSources = []string{"Platform.swift", "TiocConstants.swift"}

// Library returns the library target for v. It panics on an invalid variant.
func (v Variant) Library() Library {
	switch v {
	case Darwin:
		return Library{
			Name:    "Darwin",
			Sources: concat([]string{"Darwin.swift"}, commonSources, []string{"POSIXError.swift", "MachError.swift"}),
			CompileFlags: []string{
				"-Xfrontend", "-disable-objc-attr-requires-foundation-module",
			},
			APINotesNonOverlay: true,
		}
	case GlibcLike:
		return Library{
			Name:    "Glibc",
			Sources: concat([]string{"Glibc.swift"}, commonSources),
			Depends: []string{modulemap.AggregateTarget},
		}
	}
	panic(fmt.Sprintf("variant: invalid variant %d", int(v)))
}

// Select classifies host and returns the library for its variant.
func Select(host sdk.Kind) (Variant, Library, error) {
	v, err := Classify(host)
	if err != nil {
		return 0, Library{}, err
	}
	return v, v.Library(), nil
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
