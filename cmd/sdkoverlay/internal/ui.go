package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goplus/sdkoverlay/internal/build"
	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/variant"
)

var (
	accent = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(accent)
	successStyle = lipgloss.NewStyle().Foreground(green)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

type kv struct {
	key   string
	value string
}

// keyValues renders aligned "key: value" lines.
func keyValues(pairs ...kv) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p.key))
	}
	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", width+1, p.key+":")
		sb.WriteString(mutedStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}

func renderTable(headers []string, rows [][]string) string {
	header := lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

func formatLibrary(v variant.Variant, lib variant.Library) string {
	pairs := []kv{
		{"variant", accentStyle.Render(v.String())},
		{"library", boldStyle.Render(lib.Name)},
		{"sources", strings.Join(lib.Sources, " ")},
	}
	if len(lib.CompileFlags) > 0 {
		pairs = append(pairs, kv{"flags", strings.Join(lib.CompileFlags, " ")})
	}
	if len(lib.Depends) > 0 {
		pairs = append(pairs, kv{"depends", strings.Join(lib.Depends, " ")})
	}
	if lib.APINotesNonOverlay {
		pairs = append(pairs, kv{"api notes", "non-overlay"})
	}
	return keyValues(pairs...)
}

func formatPlan(p *modulemap.Plan) string {
	if len(p.Steps) == 0 {
		return mutedStyle.Render("no module maps to generate") + "\n"
	}
	rows := make([][]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		rows = append(rows, []string{
			s.Target,
			string(s.SDK),
			s.Arch,
			s.Vars[modulemap.VarGlibcArchInclude],
			s.Output,
		})
	}
	return renderTable([]string{"TARGET", "SDK", "ARCH", "INCLUDE", "OUTPUT"}, rows) + "\n" +
		keyValues(kv{p.Aggregate.Name, strings.Join(p.Aggregate.Depends, " ")})
}

func summary(results []build.StepResult) string {
	var generated, upToDate int
	for _, r := range results {
		switch r.Status {
		case build.StepGenerated:
			generated++
		case build.StepUpToDate:
			upToDate++
		}
	}
	return successStyle.Render("✓") + fmt.Sprintf(" %d generated, %d up to date", generated, upToDate)
}
