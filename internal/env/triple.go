package env

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// multiarchCompilers are asked for their multiarch triple, in order.
var multiarchCompilers = []string{"cc", "gcc", "clang"}

// DetectHostTriple returns the library architecture triple of the host
// ("x86_64-linux-gnu" on Debian-style systems), or "" when the host does not
// use one. Headers for such hosts live under /usr/include/<triple>.
func DetectHostTriple(ctx context.Context) string {
	return detectHostTriple(ctx, "/usr/include")
}

func detectHostTriple(ctx context.Context, includeRoot string) string {
	for _, cc := range multiarchCompilers {
		bin, err := exec.LookPath(cc)
		if err != nil {
			continue
		}
		out, err := exec.CommandContext(ctx, bin, "-print-multiarch").Output()
		if err != nil {
			continue
		}
		if triple := parseMultiarch(out); triple != "" {
			return triple
		}
	}

	machine := hostMachine()
	if machine == "" {
		return ""
	}
	for _, candidate := range tripleCandidates(machine) {
		if isDir(filepath.Join(includeRoot, candidate)) {
			return candidate
		}
	}
	return ""
}

// parseMultiarch extracts the triple from the output of
// "cc -print-multiarch". Compilers without multiarch support print an empty
// line.
func parseMultiarch(out []byte) string {
	line, _, _ := bytes.Cut(out, []byte("\n"))
	triple := strings.TrimSpace(string(line))
	if strings.Count(triple, "-") < 2 || strings.ContainsAny(triple, " \t/") {
		return ""
	}
	return triple
}

// tripleCandidates lists the Debian multiarch names a uname machine maps to.
func tripleCandidates(machine string) []string {
	switch machine {
	case "x86_64", "amd64":
		return []string{"x86_64-linux-gnu"}
	case "aarch64", "arm64":
		return []string{"aarch64-linux-gnu"}
	case "armv7l", "armv6l", "arm":
		return []string{"arm-linux-gnueabihf", "arm-linux-gnueabi"}
	case "i386", "i486", "i586", "i686":
		return []string{"i386-linux-gnu"}
	case "ppc64le":
		return []string{"powerpc64le-linux-gnu"}
	case "s390x":
		return []string{"s390x-linux-gnu"}
	case "riscv64":
		return []string{"riscv64-linux-gnu"}
	}
	return []string{machine + "-linux-gnu"}
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
