package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "sdkoverlay"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = AppName
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "SDKOVERLAY"
)

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath is searched for sdkoverlay.yaml when ConfigFilePath is
	// empty. Defaults to the working directory.
	ConfigDirPath string
}

// Load reads and validates the configuration. It returns the path of the file
// that was read, or "" when only defaults and the environment were used.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetConfigType(ConfigFileExt)
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(candidate) {
			resolvedPath = candidate
		}
	}

	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if resolvedPath != "" {
		if err := resolvePaths(v, &cfg, resolvedPath); err != nil {
			return nil, "", err
		}
	}
	if err := cfg.Validate(); err != nil {
		if resolvedPath != "" {
			return nil, "", fmt.Errorf("invalid config %s: %w", resolvedPath, err)
		}
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("host_variant", d.HostVariant)
	v.SetDefault("host_triple", d.HostTriple)
	v.SetDefault("detect_host_triple", d.DetectHostTriple)
	v.SetDefault("library_dir", d.LibraryDir)
	v.SetDefault("android_sdk_path", d.AndroidSDKPath)
	v.SetDefault("template", d.Template)
	v.SetDefault("template_tool", d.TemplateTool)
	v.SetDefault("template_tool_interpreter", d.TemplateToolInterpreter)
	v.SetDefault("stamp_dir", d.StampDir)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("install.component", d.Install.Component)
	v.SetDefault("install.prefix", d.Install.Prefix)
	v.SetDefault("install.destdir", d.Install.DestDir)
	v.SetDefault("sdks", []map[string]any{})
}

// resolvePaths makes relative paths set in the config file relative to the
// file's directory. Defaults and environment values stay relative to the
// working directory.
func resolvePaths(v *viper.Viper, cfg *Config, configFile string) error {
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return err
	}
	base := filepath.Dir(abs)
	fields := []struct {
		key string
		val *string
	}{
		{"library_dir", &cfg.LibraryDir},
		{"stamp_dir", &cfg.StampDir},
		{"template", &cfg.Template},
		{"android_sdk_path", &cfg.AndroidSDKPath},
		{"install.destdir", &cfg.Install.DestDir},
	}
	for _, f := range fields {
		if fromFile(v, f.key) {
			*f.val = rebase(base, *f.val)
		}
	}
	for i := range cfg.SDKs {
		cfg.SDKs[i].Path = rebase(base, cfg.SDKs[i].Path)
	}
	return nil
}

// fromFile reports whether the value of key comes from the config file.
func fromFile(v *viper.Viper, key string) bool {
	env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if _, ok := os.LookupEnv(env); ok {
		return false
	}
	return v.InConfig(key)
}

func rebase(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
