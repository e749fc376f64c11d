package build

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/goplus/sdkoverlay/pkgs/buildsys"
	"github.com/goplus/sdkoverlay/pkgs/buildsys/gyb"
	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/sdk"
	"github.com/goplus/sdkoverlay/pkgs/variant"
)

type testEnv struct {
	root     string
	libDir   string
	stampDir string
	template string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:     root,
		libDir:   filepath.Join(root, "lib", "swift"),
		stampDir: filepath.Join(root, "stamps"),
	}
	tmplPath, err := MaterializeTemplate(env.stampDir)
	if err != nil {
		t.Fatalf("MaterializeTemplate() error = %v", err)
	}
	env.template = tmplPath
	return env
}

func (e *testEnv) plan(t *testing.T, targets ...sdk.Target) *modulemap.Plan {
	t.Helper()
	p, err := modulemap.NewPlan(modulemap.Options{
		SDKs:           targets,
		LibraryDir:     e.libDir,
		Template:       e.template,
		HostTriple:     "x86_64-linux-gnu",
		AndroidSDKPath: "/opt/ndk/sysroot",
	})
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	return p
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newBuilder(t *testing.T, opts Options) *Builder {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func statuses(results []StepResult) []StepStatus {
	out := make([]StepStatus, len(results))
	for i, r := range results {
		out[i] = r.Status
	}
	return out
}

func TestBuildGeneratesModuleMaps(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t,
		sdk.NewTarget(sdk.Linux, "x86_64", "aarch64"),
		sdk.NewTarget(sdk.OSX, "x86_64"),
		sdk.NewTarget(sdk.Android, "armv7"),
	)
	b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan, StampDir: env.stampDir})

	results, err := b.Build(context.Background(), TargetAll, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []StepStatus{StepGenerated, StepGenerated, StepGenerated}
	if got := statuses(results); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	for _, rel := range []string{"linux/x86_64", "linux/aarch64", "android/armv7"} {
		out := filepath.Join(env.libDir, filepath.FromSlash(rel), modulemap.FileName)
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if bytes.Contains(data, []byte("${")) {
			t.Errorf("%s: unexpanded variable:\n%s", rel, data)
		}
	}
	if _, err := os.Stat(filepath.Join(env.libDir, "macosx")); !os.IsNotExist(err) {
		t.Errorf("module map generated for OSX: %v", err)
	}

	linux, _ := os.ReadFile(filepath.Join(env.libDir, "linux", "x86_64", modulemap.FileName))
	if !bytes.Contains(linux, []byte("/usr/include/features.h")) {
		t.Errorf("linux module map does not reference the system include dir:\n%s", linux)
	}
	android, _ := os.ReadFile(filepath.Join(env.libDir, "android", "armv7", modulemap.FileName))
	if !bytes.Contains(android, []byte("/opt/ndk/sysroot/usr/include")) {
		t.Errorf("android module map does not reference the sysroot:\n%s", android)
	}
}

func TestBuildIdempotent(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan, StampDir: env.stampDir})
	ctx := context.Background()

	if _, err := b.Build(ctx, modulemap.AggregateTarget, 1); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	out := plan.Steps[0].Output
	first, _ := os.ReadFile(out)
	info1, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}

	results, err := b.Build(ctx, modulemap.AggregateTarget, 1)
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if results[0].Status != StepUpToDate {
		t.Errorf("second build status = %v, want %v", results[0].Status, StepUpToDate)
	}
	second, _ := os.ReadFile(out)
	if !bytes.Equal(first, second) {
		t.Error("second build changed the output")
	}
	info2, _ := os.Stat(out)
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("second build touched the output")
	}
}

func TestBuildRegeneratesModifiedOutput(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan, StampDir: env.stampDir})
	ctx := context.Background()

	if _, err := b.Build(ctx, modulemap.AggregateTarget, 1); err != nil {
		t.Fatal(err)
	}
	out := plan.Steps[0].Output
	want, _ := os.ReadFile(out)
	if err := os.WriteFile(out, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	results, err := b.Build(ctx, modulemap.AggregateTarget, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Status != StepGenerated {
		t.Errorf("status = %v, want %v", results[0].Status, StepGenerated)
	}
	got, _ := os.ReadFile(out)
	if !bytes.Equal(got, want) {
		t.Error("modified output was not restored")
	}
}

func TestBuildSingleStep(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64", "aarch64"))
	b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan})

	results, err := b.Build(context.Background(), plan.Steps[1].Target, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []StepStatus{StepPending, StepGenerated}
	if got := statuses(results); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	if _, err := os.Stat(plan.Steps[0].Output); !os.IsNotExist(err) {
		t.Errorf("unrequested step produced output: %v", err)
	}
}

func TestBuildLibraryDependencies(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))

	tests := []struct {
		host    sdk.Kind
		variant variant.Variant
		deps    []string
	}{
		{sdk.Linux, variant.GlibcLike, []string{modulemap.AggregateTarget}},
		{sdk.Android, variant.GlibcLike, []string{modulemap.AggregateTarget}},
		{sdk.OSX, variant.Darwin, nil},
		{sdk.IOSSimulator, variant.Darwin, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.host), func(t *testing.T) {
			b := newBuilder(t, Options{Host: tt.host, Plan: plan})
			if b.Variant() != tt.variant {
				t.Errorf("Variant() = %v, want %v", b.Variant(), tt.variant)
			}
			n, ok := b.Graph().Node(b.Library().Name)
			if !ok {
				t.Fatalf("library target %s not registered", b.Library().Name)
			}
			if !slices.Equal(n.Deps, tt.deps) {
				t.Errorf("library deps = %v, want %v", n.Deps, tt.deps)
			}
		})
	}
}

func TestBuildDarwinLibrarySkipsModuleMaps(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	b := newBuilder(t, Options{Host: sdk.OSX, Plan: plan})

	results, err := b.Build(context.Background(), b.Library().Name, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Status != StepPending {
		t.Errorf("darwin library built a module map: %v", results[0].Status)
	}
}

func TestNewBuilderErrors(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))

	if _, err := NewBuilder(Options{Host: sdk.Linux}); err == nil {
		t.Error("NewBuilder() without plan expected error")
	}
	_, err := NewBuilder(Options{Host: sdk.Windows, Plan: plan, Logger: quietLogger()})
	if !errors.Is(err, variant.ErrUnsupportedHost) {
		t.Errorf("NewBuilder(windows) error = %v, want ErrUnsupportedHost", err)
	}
}

func TestBuildMissingTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.template = filepath.Join(env.root, "missing.tmpl")
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))

	for _, stampDir := range []string{"", env.stampDir} {
		b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan, StampDir: stampDir})
		_, err := b.Build(context.Background(), TargetAll, 1)
		if err == nil {
			t.Fatalf("Build(stampDir=%q) expected error", stampDir)
		}
		if !strings.Contains(err.Error(), plan.Steps[0].Target) {
			t.Errorf("error %q does not name the failing target", err)
		}
	}
}

type fakeTool struct {
	calls   int
	version string
}

func (f *fakeTool) Name() string { return "fake" }

func (f *fakeTool) Fingerprint() string { return "fake/" + f.version }

func (f *fakeTool) Render(_ context.Context, src, out string, defines buildsys.Defines) error {
	f.calls++
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte(strings.Join(defines.Args(), "\n")), 0o644)
}

func TestBuildCustomTool(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.FreeBSD, "x86_64"))
	tool := &fakeTool{}
	b := newBuilder(t, Options{Host: sdk.FreeBSD, Plan: plan, Tool: tool, StampDir: env.stampDir})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := b.Build(ctx, TargetAll, 1); err != nil {
			t.Fatal(err)
		}
	}
	if tool.calls != 1 {
		t.Errorf("tool ran %d times, want 1", tool.calls)
	}
	data, _ := os.ReadFile(plan.Steps[0].Output)
	want := "-DCMAKE_ARCH=x86_64\n" +
		"-DCMAKE_SDK=FREEBSD\n" +
		"-DGLIBC_ARCH_INCLUDE_PATH=/usr/include/x86_64-linux-gnu\n" +
		"-DGLIBC_INCLUDE_PATH=/usr/include"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
}

func TestBuildToolChangeRegenerates(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	ctx := context.Background()

	run := func(tool buildsys.TemplateTool) StepStatus {
		t.Helper()
		b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan, Tool: tool, StampDir: env.stampDir})
		results, err := b.Build(ctx, modulemap.AggregateTarget, 1)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		return results[0].Status
	}

	tool := &fakeTool{version: "1"}
	if got := run(tool); got != StepGenerated {
		t.Fatalf("first build = %v", got)
	}
	if got := run(tool); got != StepUpToDate {
		t.Errorf("same tool = %v, want %v", got, StepUpToDate)
	}
	tool.version = "2"
	if got := run(tool); got != StepGenerated {
		t.Errorf("changed tool = %v, want %v", got, StepGenerated)
	}
	if got := run(Expander{}); got != StepGenerated {
		t.Errorf("switch to builtin = %v, want %v", got, StepGenerated)
	}
}

func TestBuildInterpreterChangeRegenerates(t *testing.T) {
	for _, sh := range []string{"sh", "bash"} {
		if _, err := exec.LookPath(sh); err != nil {
			t.Skipf("%s not found in PATH", sh)
		}
	}
	env := newTestEnv(t)
	script := filepath.Join(env.root, "render.sh")
	body := "#!/bin/sh\nwhile [ $# -gt 1 ]; do [ \"$1\" = -o ] && out=\"$2\"; shift; done\ncat \"$1\" > \"$out\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	ctx := context.Background()

	var got []StepStatus
	for _, interp := range []string{"sh", "sh", "bash"} {
		tool := gyb.New(script).Interpreter(interp).LineDirective("")
		b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan, Tool: tool, StampDir: env.stampDir})
		results, err := b.Build(ctx, modulemap.AggregateTarget, 1)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", interp, err)
		}
		got = append(got, results[0].Status)
	}
	want := []StepStatus{StepGenerated, StepUpToDate, StepGenerated}
	if !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestInstall(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t,
		sdk.NewTarget(sdk.Linux, "x86_64"),
		sdk.NewTarget(sdk.Cygwin, "x86_64"),
	)
	destDir := filepath.Join(env.root, "dest")
	b := newBuilder(t, Options{
		Host:    sdk.Linux,
		Plan:    plan,
		Install: InstallOptions{DestDir: destDir, Component: modulemap.DefaultComponent},
	})
	if _, err := b.Build(context.Background(), TargetInstall, 2); err != nil {
		t.Fatalf("Build(install) error = %v", err)
	}
	for _, rel := range []string{"lib/swift/linux/x86_64", "lib/swift/cygwin/x86_64"} {
		path := filepath.Join(destDir, filepath.FromSlash(rel), modulemap.FileName)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("not installed: %v", err)
		}
	}
}

func TestInstallComponentFilter(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	b := newBuilder(t, Options{
		Host:    sdk.Linux,
		Plan:    plan,
		Install: InstallOptions{DestDir: filepath.Join(env.root, "dest"), Component: "other"},
	})
	n, ok := b.Graph().Node(TargetInstall)
	if !ok {
		t.Fatal("install target not registered")
	}
	if len(n.Deps) != 0 {
		t.Errorf("install deps = %v, want none", n.Deps)
	}
}

func TestInstallRequiresDestDir(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, sdk.NewTarget(sdk.Linux, "x86_64"))
	b := newBuilder(t, Options{Host: sdk.Linux, Plan: plan})
	if _, err := b.Build(context.Background(), TargetInstall, 1); err == nil {
		t.Error("Build(install) without destdir expected error")
	}
}

func TestWriteFileIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b.txt")
	written, err := writeFileIfChanged(path, []byte("x"), 0o644)
	if err != nil || !written {
		t.Fatalf("first write = %v, %v", written, err)
	}
	written, err = writeFileIfChanged(path, []byte("x"), 0o644)
	if err != nil || written {
		t.Errorf("same content write = %v, %v", written, err)
	}
	written, err = writeFileIfChanged(path, []byte("y"), 0o644)
	if err != nil || !written {
		t.Errorf("changed content write = %v, %v", written, err)
	}
}

func TestStampRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := &stamp{Tool: "gyb", Fingerprint: "f1", TemplateHash: hashBytes([]byte("t")), Defines: map[string]string{"A": "1"}}
	if err := saveStamp(dir, "step", s); err != nil {
		t.Fatal(err)
	}
	got, err := loadStamp(dir, "step")
	if err != nil {
		t.Fatal(err)
	}
	if !got.matches(s) {
		t.Errorf("loaded stamp %+v does not match %+v", got, s)
	}
	other := &stamp{Tool: "gyb", Fingerprint: "f1", TemplateHash: s.TemplateHash, Defines: map[string]string{"A": "2"}}
	if got.matches(other) {
		t.Error("stamp with different defines matched")
	}
	retooled := &stamp{Tool: "gyb", Fingerprint: "f2", TemplateHash: s.TemplateHash, Defines: s.Defines}
	if got.matches(retooled) {
		t.Error("stamp with a different tool fingerprint matched")
	}
}
