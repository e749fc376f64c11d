package internal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goplus/sdkoverlay/internal/build"
	"github.com/goplus/sdkoverlay/internal/config"
	"github.com/goplus/sdkoverlay/internal/env"
	"github.com/goplus/sdkoverlay/pkgs/buildsys"
	"github.com/goplus/sdkoverlay/pkgs/buildsys/gyb"
	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/sdk"
)

// session is everything a command needs after the configuration is loaded.
type session struct {
	cfg     *config.Config
	host    sdk.Kind
	jobs    int
	triple  string
	plan    *modulemap.Plan
	builder *build.Builder
}

// loadConfig reads the configuration and resolves the host kind from --host,
// host_variant or the running platform, in that order.
func loadConfig(ctx context.Context) (*config.Config, sdk.Kind, error) {
	cfg, path, err := config.Load(ctx, config.LoadOptions{ConfigFilePath: configPath})
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	if hostFlag != "" {
		cfg.HostVariant = hostFlag
	}
	fallback, _ := env.HostKind()
	host, err := cfg.Host(fallback)
	if err != nil {
		return nil, "", err
	}
	return cfg, host, nil
}

// newSession loads the configuration and assembles the plan and builder.
// destDir is only used by install.
func newSession(ctx context.Context, destDir string) (*session, error) {
	cfg, host, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, host: host, jobs: cfg.Jobs}
	if jobsFlag > 0 {
		s.jobs = jobsFlag
	}

	libDir, err := filepath.Abs(cfg.LibraryDir)
	if err != nil {
		return nil, err
	}
	stampDir, err := resolveStampDir(cfg.StampDir, libDir)
	if err != nil {
		return nil, err
	}

	template := cfg.Template
	if template == "" {
		if template, err = build.MaterializeTemplate(stampDir); err != nil {
			return nil, err
		}
	} else {
		src, err := os.ReadFile(template)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		if err := modulemap.CheckTemplate(src); err != nil {
			return nil, fmt.Errorf("%s: %w", template, err)
		}
	}

	s.triple = cfg.HostTriple
	if s.triple == "" && cfg.DetectHostTriple {
		s.triple = env.DetectHostTriple(ctx)
		logger.Debug("detected host triple", "triple", s.triple)
	}

	targets, err := cfg.Targets()
	if err != nil {
		return nil, err
	}
	s.plan, err = modulemap.NewPlan(modulemap.Options{
		SDKs:           targets,
		LibraryDir:     libDir,
		Template:       template,
		HostTriple:     s.triple,
		AndroidSDKPath: cfg.AndroidSDKPath,
		Component:      cfg.Install.Component,
		InstallPrefix:  cfg.Install.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("plan module maps: %w", err)
	}
	logger.Debug("planned module maps", "pairs", sdk.PairCount(targets), "steps", len(s.plan.Steps))

	if destDir == "" {
		destDir = cfg.Install.DestDir
	}
	s.builder, err = build.NewBuilder(build.Options{
		Host:     host,
		Plan:     s.plan,
		Tool:     templateTool(cfg),
		StampDir: stampDir,
		Install: build.InstallOptions{
			DestDir:   destDir,
			Component: cfg.Install.Component,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// resolveStampDir returns dir, or a directory under the work dir keyed by the
// library root so that separate build trees keep separate stamps.
func resolveStampDir(dir, libDir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	work, err := env.WorkDir()
	if err != nil {
		return "", fmt.Errorf("failed to get work dir: %w", err)
	}
	sum := sha256.Sum256([]byte(libDir))
	return filepath.Join(work, "stamps", hex.EncodeToString(sum[:8])), nil
}

// templateTool returns the external tool configured by template_tool, or nil
// for the built-in expander.
func templateTool(cfg *config.Config) buildsys.TemplateTool {
	if cfg.TemplateTool == "" {
		return nil
	}
	return gyb.New(cfg.TemplateTool).
		Interpreter(cfg.TemplateToolInterpreter).
		LineDirective("")
}

// tripleWarnings lists the steps whose arch include path was derived from the
// host triple while targeting a different SDK than the host.
func (s *session) tripleWarnings() []modulemap.Step {
	if s.triple == "" {
		return nil
	}
	var out []modulemap.Step
	for _, step := range s.plan.Steps {
		if step.SDK == s.host {
			continue
		}
		if step.SDK == sdk.Linux || step.SDK == sdk.FreeBSD {
			out = append(out, step)
		}
	}
	return out
}

// run builds target and reports each expansion step.
func (s *session) run(ctx context.Context, w io.Writer, target string) error {
	for _, step := range s.tripleWarnings() {
		logger.Warn("arch include path uses the host triple",
			"target", step.Target,
			"host", s.host,
			"triple", s.triple)
	}
	results, err := s.builder.Build(ctx, target, s.jobs)
	for _, r := range results {
		if r.Status != build.StepPending {
			logger.Debug("step", "target", r.Target, "status", r.Status)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, summary(results))
	return nil
}

// targets lists every target the build graph can run, in registration order.
func (s *session) targets() []string {
	nodes := s.builder.Graph().Nodes()
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}
