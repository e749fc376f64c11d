// Package modulemap plans the generation of glibc module maps, one per
// configured (SDK, architecture) pair.
package modulemap

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/goplus/sdkoverlay/pkgs/sdk"
)

const (
	// FileName is the name of every generated module map.
	FileName = "glibc.modulemap"

	// AggregateTarget gates on every expansion step of a plan.
	AggregateTarget = "glibc_modulemap"

	// DefaultSystemInclude is the include root for non-Android SDKs.
	DefaultSystemInclude = "/usr/include"

	DefaultComponent     = "sdk-overlay"
	DefaultInstallPrefix = "lib/swift"
)

// Substitution variables passed to the template.
const (
	VarSDK              = "CMAKE_SDK"
	VarArch             = "CMAKE_ARCH"
	VarGlibcInclude     = "GLIBC_INCLUDE_PATH"
	VarGlibcArchInclude = "GLIBC_ARCH_INCLUDE_PATH"
)

// ErrMissingAndroidSDKPath is returned when an Android SDK is configured
// without a path to its sysroot.
var ErrMissingAndroidSDKPath = errors.New("android sdk path is not set")

// Qualifies reports whether module maps are generated for SDKs of kind k.
func Qualifies(k sdk.Kind) bool {
	switch k {
	case sdk.Linux, sdk.FreeBSD, sdk.Android, sdk.Cygwin:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// IncludePaths holds the base and architecture-qualified include directories
// substituted into a module map.
type IncludePaths struct {
	Base string
	Arch string
}

// ResolveIncludePaths computes the include paths for kind.
//
// Android uses the include directory of its own sysroot for both paths. Other
// kinds use the system include directory; Linux and FreeBSD append
// hostTriple to the arch path when it is known.
//
// hostTriple is the library architecture of the machine building the
// toolchain, not of the SDK being targeted. Some distributions install headers
// in "/usr/include/x86_64-linux-gnu/sys/...", so cross-compiling from a distro
// that uses the triple in the path to one that does not will produce a wrong
// arch include path.
func ResolveIncludePaths(kind sdk.Kind, androidSDKPath, hostTriple string) (IncludePaths, error) {
	if !Qualifies(kind) {
		return IncludePaths{}, fmt.Errorf("no module map for sdk %s", kind)
	}
	if kind == sdk.Android {
		if androidSDKPath == "" {
			return IncludePaths{}, ErrMissingAndroidSDKPath
		}
		inc := path.Join(androidSDKPath, "usr", "include")
		return IncludePaths{Base: inc, Arch: inc}, nil
	}
	paths := IncludePaths{Base: DefaultSystemInclude, Arch: DefaultSystemInclude}
	if (kind == sdk.Linux || kind == sdk.FreeBSD) && hostTriple != "" {
		paths.Arch = path.Join(paths.Base, hostTriple)
	}
	return paths, nil
}

// -----------------------------------------------------------------------------

// InstallRule schedules a generated file for installation.
type InstallRule struct {
	Component   string `yaml:"component"`
	File        string `yaml:"file"`
	Destination string `yaml:"destination"`
}

// Step is the expansion of the template for a single (SDK, architecture) pair.
type Step struct {
	Target     string            `yaml:"target"`
	SDK        sdk.Kind          `yaml:"sdk"`
	Arch       string            `yaml:"arch"`
	ArchSubdir string            `yaml:"arch_subdir"`
	ModuleDir  string            `yaml:"module_dir"`
	Template   string            `yaml:"template"`
	Output     string            `yaml:"output"`
	Vars       map[string]string `yaml:"vars"`
	Install    InstallRule       `yaml:"install"`
}

// Aggregate is a target whose completion depends on every listed target.
type Aggregate struct {
	Name    string   `yaml:"name"`
	Depends []string `yaml:"depends"`
}

// Plan is the full set of expansion steps for a configuration.
type Plan struct {
	Steps     []Step    `yaml:"steps"`
	Aggregate Aggregate `yaml:"aggregate"`
}

// Options configures NewPlan.
type Options struct {
	SDKs []sdk.Target

	// LibraryDir is the build-tree root that module directories live under.
	LibraryDir string

	// Template is the path of the module map template.
	Template string

	HostTriple     string
	AndroidSDKPath string

	Component     string
	InstallPrefix string
}

// NewPlan computes one Step per qualifying (SDK, architecture) pair, in the
// order the SDKs and their architectures are configured.
func NewPlan(opts Options) (*Plan, error) {
	if opts.LibraryDir == "" {
		return nil, errors.New("library dir is not set")
	}
	if opts.Template == "" {
		return nil, errors.New("template is not set")
	}
	component := opts.Component
	if component == "" {
		component = DefaultComponent
	}
	prefix := opts.InstallPrefix
	if prefix == "" {
		prefix = DefaultInstallPrefix
	}

	p := &Plan{Aggregate: Aggregate{Name: AggregateTarget}}
	seen := make(map[string]bool)
	for _, pair := range sdk.Pairs(opts.SDKs) {
		kind := pair.Target.Kind
		if !Qualifies(kind) {
			continue
		}
		androidPath := opts.AndroidSDKPath
		if pair.Target.Path != "" {
			androidPath = pair.Target.Path
		}
		inc, err := ResolveIncludePaths(kind, androidPath, opts.HostTriple)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", kind, pair.Arch, err)
		}

		if err := checkArchSubdir(pair); err != nil {
			return nil, fmt.Errorf("%s/%s: %w", kind, pair.Arch, err)
		}
		archSubdir := pair.ArchSubdir()
		moduleDir := filepath.Join(opts.LibraryDir, filepath.FromSlash(archSubdir))
		if !within(opts.LibraryDir, moduleDir) {
			return nil, fmt.Errorf("%s/%s: module dir %s is outside %s", kind, pair.Arch, moduleDir, opts.LibraryDir)
		}
		output := filepath.Join(moduleDir, FileName)
		target := StepTarget(archSubdir)
		if seen[target] {
			return nil, fmt.Errorf("duplicate module map target %s", target)
		}
		seen[target] = true

		p.Steps = append(p.Steps, Step{
			Target:     target,
			SDK:        kind,
			Arch:       pair.Arch,
			ArchSubdir: archSubdir,
			ModuleDir:  moduleDir,
			Template:   opts.Template,
			Output:     output,
			Vars: map[string]string{
				VarSDK:              string(kind),
				VarArch:             pair.Arch,
				VarGlibcInclude:     inc.Base,
				VarGlibcArchInclude: inc.Arch,
			},
			Install: InstallRule{
				Component:   component,
				File:        output,
				Destination: path.Join(prefix, archSubdir),
			},
		})
		p.Aggregate.Depends = append(p.Aggregate.Depends, target)
	}
	return p, nil
}

// checkArchSubdir rejects library subdirectories and architectures that
// would not name exactly one directory level each.
func checkArchSubdir(pair sdk.Pair) error {
	if pair.Target.LibSubdir != "" {
		if err := sdk.CheckPathElement(pair.Target.LibSubdir); err != nil {
			return fmt.Errorf("lib subdir: %w", err)
		}
	}
	if err := sdk.CheckPathElement(pair.Arch); err != nil {
		return fmt.Errorf("arch: %w", err)
	}
	return nil
}

// within reports whether dir is root or lies below it.
func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// StepTarget returns the target name of the expansion step for archSubdir.
func StepTarget(archSubdir string) string {
	return AggregateTarget + "-" + strings.ReplaceAll(archSubdir, "/", "-")
}
