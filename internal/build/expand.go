package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/sdkoverlay/pkgs/buildsys"
	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/tmpl"
)

// Expander is the built-in template tool backed by tmpl.Expand.
type Expander struct{}

var _ buildsys.TemplateTool = Expander{}

func (Expander) Name() string {
	return "builtin"
}

// Fingerprint is constant: the expander has no settings.
func (Expander) Fingerprint() string {
	return "builtin/1"
}

// Render expands src into out. out is left untouched when its content would
// not change, so its modification time only moves when the inputs do.
func (Expander) Render(ctx context.Context, src, out string, defines buildsys.Defines) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	expanded, err := tmpl.Expand(data, defines)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	_, err = writeFileIfChanged(out, expanded, 0o644)
	return err
}

// writeFileIfChanged writes data to path unless path already holds exactly
// data. It reports whether the file was written.
func writeFileIfChanged(path string, data []byte, perm os.FileMode) (bool, error) {
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, err
	}
	return true, nil
}

// MaterializeTemplate writes the built-in module map template into dir and
// returns its path, so that file-based tools can read it.
func MaterializeTemplate(dir string) (string, error) {
	path := filepath.Join(dir, modulemap.DefaultTemplateName)
	if _, err := writeFileIfChanged(path, modulemap.DefaultTemplate, 0o644); err != nil {
		return "", fmt.Errorf("materialize template: %w", err)
	}
	return path, nil
}
