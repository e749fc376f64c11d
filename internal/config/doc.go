// Package config loads the build description: the host to build the overlay
// for, the configured SDKs and their architectures, and where generated files
// go.
//
// Configuration is read with Viper from a YAML file (sdkoverlay.yaml in the
// working directory unless a path is given). Every scalar key can be
// overridden from the environment with the SDKOVERLAY_ prefix, dots replaced
// by underscores (SDKOVERLAY_INSTALL_PREFIX for install.prefix).
//
// Relative paths written in the config file (library_dir, stamp_dir,
// template, android_sdk_path, install.destdir and sdks[].path) are relative
// to the directory holding the file. Defaults and environment overrides are
// relative to the working directory.
package config
