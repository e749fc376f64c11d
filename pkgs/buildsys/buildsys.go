package buildsys

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// TemplateTool renders a single template source into a single output file.
// Implementations must not share mutable state between Render calls so that
// independent expansions can run concurrently.
type TemplateTool interface {
	// Name identifies the tool in logs.
	Name() string

	// Fingerprint changes whenever the tool would produce different output
	// for the same src and defines: another program, interpreter, fixed
	// argument or environment value.
	Fingerprint() string

	// Render expands src with defines and writes the result to out.
	Render(ctx context.Context, src, out string, defines Defines) error
}

// Defines holds the named variables passed to a template tool.
type Defines map[string]string

// Args renders d as "-DNAME=VALUE" flags sorted by name.
func (d Defines) Args() []string {
	if len(d) == 0 {
		return nil
	}
	keys := d.Keys()
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, "-D"+k+"="+d[k])
	}
	return args
}

// Keys returns the variable names in sorted order.
func (d Defines) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of d.
func (d Defines) Clone() Defines {
	if d == nil {
		return nil
	}
	c := make(Defines, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Run executes bin with args, forwarding its output to the process's
// stdout and stderr. env entries override the inherited environment.
func Run(ctx context.Context, bin string, args []string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), env)
	}
	return cmd.Run()
}

// MergeEnv applies override on top of base ("KEY=VALUE" entries) and returns
// the result sorted by key.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
