package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/sdk"
	"golang.org/x/mod/semver"
)

// SupportedMajor is the configuration schema major version this build reads.
const SupportedMajor = "v1"

type (
	// SDKConfig configures one SDK.
	SDKConfig struct {
		Kind      string   `mapstructure:"kind" yaml:"kind"`
		LibSubdir string   `mapstructure:"lib_subdir" yaml:"lib_subdir,omitempty"`
		Archs     []string `mapstructure:"archs" yaml:"archs"`
		Path      string   `mapstructure:"path" yaml:"path,omitempty"`
	}

	// InstallConfig configures where generated files are installed.
	InstallConfig struct {
		Component string `mapstructure:"component" yaml:"component"`
		Prefix    string `mapstructure:"prefix" yaml:"prefix"`
		DestDir   string `mapstructure:"destdir" yaml:"destdir,omitempty"`
	}

	// Config is the full build description.
	Config struct {
		Version string `mapstructure:"version" yaml:"version"`

		// HostVariant is the SDK kind of the host the overlay is built for.
		// Empty means the machine running the tool.
		HostVariant string `mapstructure:"host_variant" yaml:"host_variant,omitempty"`

		// HostTriple is the host library architecture triple. When empty and
		// DetectHostTriple is set, it is detected from the host.
		HostTriple       string `mapstructure:"host_triple" yaml:"host_triple,omitempty"`
		DetectHostTriple bool   `mapstructure:"detect_host_triple" yaml:"detect_host_triple"`

		LibraryDir     string `mapstructure:"library_dir" yaml:"library_dir"`
		AndroidSDKPath string `mapstructure:"android_sdk_path" yaml:"android_sdk_path,omitempty"`

		// Template is the module map template; empty selects the built-in one.
		Template string `mapstructure:"template" yaml:"template,omitempty"`
		// TemplateTool is an external expansion tool; empty selects the
		// built-in expander.
		TemplateTool            string `mapstructure:"template_tool" yaml:"template_tool,omitempty"`
		TemplateToolInterpreter string `mapstructure:"template_tool_interpreter" yaml:"template_tool_interpreter,omitempty"`

		StampDir string `mapstructure:"stamp_dir" yaml:"stamp_dir,omitempty"`
		Jobs     int    `mapstructure:"jobs" yaml:"jobs"`

		Install InstallConfig `mapstructure:"install" yaml:"install"`
		SDKs    []SDKConfig   `mapstructure:"sdks" yaml:"sdks"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Version:          SupportedMajor + ".0.0",
		DetectHostTriple: true,
		LibraryDir:       "lib/swift",
		Jobs:             runtime.NumCPU(),
		Install: InstallConfig{
			Component: modulemap.DefaultComponent,
			Prefix:    modulemap.DefaultInstallPrefix,
		},
	}
}

// Validate checks constraints the file format cannot express.
func (c *Config) Validate() error {
	if !semver.IsValid(c.Version) {
		return fmt.Errorf("version %q is not a semantic version", c.Version)
	}
	if major := semver.Major(c.Version); major != SupportedMajor {
		return fmt.Errorf("unsupported config version %s (want %s.x)", c.Version, SupportedMajor)
	}
	if c.HostVariant != "" {
		if _, err := sdk.ParseKind(c.HostVariant); err != nil {
			return fmt.Errorf("host_variant: %w", err)
		}
	}
	if c.LibraryDir == "" {
		return errors.New("library_dir must not be empty")
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	_, err := c.Targets()
	return err
}

// Targets converts the configured SDKs, keeping their order.
func (c *Config) Targets() ([]sdk.Target, error) {
	targets := make([]sdk.Target, 0, len(c.SDKs))
	seen := make(map[sdk.Kind]bool, len(c.SDKs))
	for i, s := range c.SDKs {
		kind, err := sdk.ParseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("sdks[%d]: %w", i, err)
		}
		if seen[kind] {
			return nil, fmt.Errorf("sdks[%d]: %s configured more than once", i, kind)
		}
		seen[kind] = true
		if len(s.Archs) == 0 {
			return nil, fmt.Errorf("sdks[%d]: %s has no architectures", i, kind)
		}
		if s.LibSubdir != "" {
			if err := sdk.CheckPathElement(s.LibSubdir); err != nil {
				return nil, fmt.Errorf("sdks[%d].lib_subdir: %w", i, err)
			}
		}
		for j, arch := range s.Archs {
			if err := sdk.CheckPathElement(arch); err != nil {
				return nil, fmt.Errorf("sdks[%d].archs[%d]: %w", i, j, err)
			}
			if slices.Contains(s.Archs[:j], arch) {
				return nil, fmt.Errorf("sdks[%d]: architecture %s listed more than once", i, arch)
			}
		}
		t := sdk.NewTarget(kind, slices.Clone(s.Archs)...)
		if s.LibSubdir != "" {
			t.LibSubdir = s.LibSubdir
		}
		t.Path = s.Path
		targets = append(targets, t)
	}
	return targets, nil
}

// Host returns the configured host kind, or fallback when none is set.
func (c *Config) Host(fallback sdk.Kind) (sdk.Kind, error) {
	if c.HostVariant == "" {
		if fallback == "" {
			return "", errors.New("host_variant is not set and the host platform is unknown")
		}
		return fallback, nil
	}
	return sdk.ParseKind(c.HostVariant)
}
