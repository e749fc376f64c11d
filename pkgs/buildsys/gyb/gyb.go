// Package gyb drives an external template expansion tool.
package gyb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/goplus/sdkoverlay/pkgs/buildsys"
)

// Gyb wraps an external template tool with chainable configuration. The tool
// is invoked as:
//
//	<bin> [extra args] -DNAME=VALUE... -o <out> <src>
type Gyb struct {
	bin           string
	interpreter   string
	lineDirective *string
	extra         []string
	env           map[string]string
}

var _ buildsys.TemplateTool = (*Gyb)(nil)

// New returns a Gyb running bin.
func New(bin string) *Gyb {
	return &Gyb{bin: bin, env: map[string]string{}}
}

// Interpreter runs bin through interpreter (for example "python3") instead of
// executing it directly.
func (g *Gyb) Interpreter(path string) *Gyb {
	g.interpreter = path
	return g
}

// LineDirective sets the line directive format; an empty string disables
// line directives in the output.
func (g *Gyb) LineDirective(format string) *Gyb {
	g.lineDirective = &format
	return g
}

// Arg appends extra arguments passed before the defines.
func (g *Gyb) Arg(args ...string) *Gyb {
	g.extra = append(g.extra, args...)
	return g
}

// Env sets an environment variable for the tool process only.
func (g *Gyb) Env(key, value string) *Gyb {
	if g.env == nil {
		g.env = map[string]string{}
	}
	g.env[key] = value
	return g
}

func (g *Gyb) Name() string {
	return filepath.Base(g.bin)
}

// Fingerprint hashes the resolved program and interpreter paths, the fixed
// arguments, the tool environment and the content of the tool file.
func (g *Gyb) Fingerprint() string {
	h := sha256.New()
	bin, args := g.Command("", "", nil)
	fmt.Fprintf(h, "%s\x00%q\x00%s\x00", resolve(bin), args, resolve(g.bin))
	keys := make([]string, 0, len(g.env))
	for k := range g.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x00", k, g.env[k])
	}
	if data, err := os.ReadFile(resolve(g.bin)); err == nil {
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// resolve returns the absolute path bin runs as, or bin itself when it
// cannot be found.
func resolve(bin string) string {
	if bin == "" {
		return ""
	}
	p, err := exec.LookPath(bin)
	if err != nil {
		return bin
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Command returns the program and arguments Render would run.
func (g *Gyb) Command(src, out string, defines buildsys.Defines) (string, []string) {
	var args []string
	if g.lineDirective != nil {
		args = append(args, "--line-directive", *g.lineDirective)
	}
	args = append(args, g.extra...)
	args = append(args, defines.Args()...)
	args = append(args, "-o", out, src)
	if g.interpreter != "" {
		return g.interpreter, append([]string{g.bin}, args...)
	}
	return g.bin, args
}

// Render runs the tool. The output directory is created first.
func (g *Gyb) Render(ctx context.Context, src, out string, defines buildsys.Defines) error {
	if g.bin == "" {
		return fmt.Errorf("gyb: no tool configured")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	bin, args := g.Command(src, out, defines)
	if err := buildsys.Run(ctx, bin, args, g.env); err != nil {
		return fmt.Errorf("%s %s: %w", g.Name(), src, err)
	}
	return nil
}
