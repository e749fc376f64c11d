package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/goplus/sdkoverlay/pkgs/modulemap"
)

// InstallOptions selects what is installed where.
type InstallOptions struct {
	// DestDir is prepended to every install destination.
	DestDir string
	// Component restricts installation to rules of this component; empty
	// installs every rule.
	Component string
}

// installPath returns where rule installs its file under destDir.
func installPath(destDir string, rule modulemap.InstallRule) string {
	return filepath.Join(destDir, filepath.FromSlash(rule.Destination), filepath.Base(rule.File))
}

func (b *Builder) installAction(rule modulemap.InstallRule) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.opts.Install.DestDir == "" {
			return errors.New("install destdir is not set")
		}
		data, err := os.ReadFile(rule.File)
		if err != nil {
			return err
		}
		dest := installPath(b.opts.Install.DestDir, rule)
		written, err := writeFileIfChanged(dest, data, 0o644)
		if err != nil {
			return err
		}
		if written {
			b.logger.Info("installed", "file", dest, "component", rule.Component)
		} else {
			b.logger.Debug("up to date", "file", dest)
		}
		return nil
	}
}
