package modulemap

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/goplus/sdkoverlay/pkgs/tmpl"
)

// DefaultTemplate is the module map template used when no template file is
// configured.
//
//go:embed glibc.modulemap.tmpl
var DefaultTemplate []byte

// DefaultTemplateName is the file name DefaultTemplate is materialized under.
const DefaultTemplateName = "glibc.modulemap.tmpl"

// Vars lists every substitution variable a step supplies.
var Vars = []string{VarSDK, VarArch, VarGlibcInclude, VarGlibcArchInclude}

// CheckTemplate reports an error when src substitutes a variable that no
// step supplies.
func CheckTemplate(src []byte) error {
	var unknown []string
	for _, name := range tmpl.Names(src) {
		if !slices.Contains(Vars, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("template refers to unknown variables %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(Vars, ", "))
	}
	return nil
}
