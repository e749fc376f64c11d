// Package build turns a module map plan and the selected overlay library into
// a build graph and runs it.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goplus/sdkoverlay/internal/graph"
	"github.com/goplus/sdkoverlay/pkgs/buildsys"
	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/sdk"
	"github.com/goplus/sdkoverlay/pkgs/variant"
)

// Well-known targets.
const (
	TargetAll     = "all"
	TargetInstall = "install"

	installPrefix = "install-"
)

// Options configures a Builder.
type Options struct {
	// Host is the SDK kind the overlay library is built for.
	Host sdk.Kind
	Plan *modulemap.Plan

	// Tool renders the template; nil selects Expander.
	Tool buildsys.TemplateTool

	// StampDir holds per-step stamps. Empty disables up-to-date checks.
	StampDir string

	Install InstallOptions
	Logger  *log.Logger
}

// StepStatus is the outcome of an expansion step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepGenerated
	StepUpToDate
)

func (s StepStatus) String() string {
	switch s {
	case StepGenerated:
		return "generated"
	case StepUpToDate:
		return "up to date"
	}
	return "pending"
}

// StepResult reports what happened to one expansion step.
type StepResult struct {
	Target string
	Output string
	Status StepStatus
}

// Builder owns the build graph for one configuration.
type Builder struct {
	opts    Options
	logger  *log.Logger
	variant variant.Variant
	library variant.Library
	graph   *graph.Graph

	// results has one slot per plan step; each step only writes its own slot.
	results []StepResult
}

// NewBuilder selects the overlay library for opts.Host and registers every
// target: one expansion per plan step, the module map aggregate, the library,
// one install per step and the install and all aggregates.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Plan == nil {
		return nil, errors.New("build: no plan")
	}
	if opts.Tool == nil {
		opts.Tool = Expander{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	v, lib, err := variant.Select(opts.Host)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		opts:    opts,
		logger:  logger,
		variant: v,
		library: lib,
		graph:   graph.New(),
		results: make([]StepResult, len(opts.Plan.Steps)),
	}
	if err := b.register(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) register() error {
	plan := b.opts.Plan
	var installs []string
	for i, step := range plan.Steps {
		b.results[i] = StepResult{Target: step.Target, Output: step.Output}
		if err := b.graph.Add(&graph.Node{
			Name:   step.Target,
			Action: b.expandAction(i, step),
		}); err != nil {
			return err
		}
		if c := b.opts.Install.Component; c != "" && c != step.Install.Component {
			continue
		}
		name := installPrefix + step.Target
		if err := b.graph.Add(&graph.Node{
			Name:   name,
			Deps:   []string{step.Target},
			Action: b.installAction(step.Install),
		}); err != nil {
			return err
		}
		installs = append(installs, name)
	}

	nodes := []*graph.Node{
		{Name: plan.Aggregate.Name, Deps: plan.Aggregate.Depends},
		{Name: b.library.Name, Deps: b.library.Depends, Action: b.libraryAction()},
		{Name: TargetInstall, Deps: installs},
		{Name: TargetAll, Deps: []string{b.library.Name, plan.Aggregate.Name}},
	}
	for _, n := range nodes {
		if err := b.graph.Add(n); err != nil {
			return err
		}
	}
	return nil
}

// Variant returns the selected overlay variant.
func (b *Builder) Variant() variant.Variant {
	return b.variant
}

// Library returns the selected overlay library.
func (b *Builder) Library() variant.Library {
	return b.library
}

// Graph returns the build graph.
func (b *Builder) Graph() *graph.Graph {
	return b.graph
}

// Build runs target and everything it depends on with up to jobs actions in
// parallel. It returns the status of every expansion step, including those
// outside target's closure (reported as pending).
func (b *Builder) Build(ctx context.Context, target string, jobs int) ([]StepResult, error) {
	for i := range b.results {
		b.results[i].Status = StepPending
	}
	err := b.graph.Run(ctx, target, jobs)
	out := make([]StepResult, len(b.results))
	copy(out, b.results)
	return out, err
}

func (b *Builder) libraryAction() graph.Action {
	return func(ctx context.Context) error {
		b.logger.Info("library target ready",
			"name", b.library.Name,
			"variant", b.variant,
			"sources", len(b.library.Sources))
		return nil
	}
}

func (b *Builder) expandAction(i int, step modulemap.Step) graph.Action {
	return func(ctx context.Context) error {
		tool := b.opts.Tool
		defines := buildsys.Defines(step.Vars).Clone()

		var want *stamp
		if b.opts.StampDir != "" {
			tmplHash, err := hashFile(step.Template)
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			want = &stamp{
				Tool:         tool.Name(),
				Fingerprint:  tool.Fingerprint(),
				TemplateHash: tmplHash,
				Defines:      defines,
			}
			if upToDate(b.opts.StampDir, step, want) {
				b.results[i].Status = StepUpToDate
				b.logger.Debug("up to date", "target", step.Target, "output", step.Output)
				return nil
			}
		}

		if err := tool.Render(ctx, step.Template, step.Output, defines); err != nil {
			return err
		}
		b.results[i].Status = StepGenerated
		b.logger.Info("generated", "target", step.Target, "output", step.Output, "tool", tool.Name())

		if want == nil {
			return nil
		}
		outHash, err := hashFile(step.Output)
		if err != nil {
			return err
		}
		want.OutputHash = outHash
		want.BuildTime = time.Now()
		return saveStamp(b.opts.StampDir, step.Target, want)
	}
}

// upToDate reports whether step's output was produced from want's inputs and
// has not been modified since.
func upToDate(dir string, step modulemap.Step, want *stamp) bool {
	have, err := loadStamp(dir, step.Target)
	if err != nil || !have.matches(want) {
		return false
	}
	if _, err := os.Stat(step.Output); err != nil {
		return false
	}
	outHash, err := hashFile(step.Output)
	return err == nil && outHash == have.OutputHash
}
