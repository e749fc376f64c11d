package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/goplus/sdkoverlay/pkgs/variant"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the module map plan without running it",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "text", "Output format: text or yaml")
	rootCmd.AddCommand(planCmd)
}

// planDocument is the yaml form of a plan.
type planDocument struct {
	Host       string          `yaml:"host"`
	Variant    string          `yaml:"variant"`
	HostTriple string          `yaml:"host_triple,omitempty"`
	Library    variant.Library `yaml:"library"`
	Plan       *modulemap.Plan `yaml:"plan"`
	Targets    []string        `yaml:"targets"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planFormat != "text" && planFormat != "yaml" {
		return fmt.Errorf("unknown format %q", planFormat)
	}
	s, err := newSession(cmd.Context(), "")
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if planFormat == "yaml" {
		return writePlanYAML(w, s)
	}
	fmt.Fprint(w, formatLibrary(s.builder.Variant(), s.builder.Library()))
	fmt.Fprintln(w)
	fmt.Fprint(w, formatPlan(s.plan))
	fmt.Fprint(w, keyValues(kv{"targets", strings.Join(s.targets(), " ")}))
	return nil
}

func writePlanYAML(w io.Writer, s *session) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := planDocument{
		Host:       string(s.host),
		Variant:    s.builder.Variant().String(),
		HostTriple: s.triple,
		Library:    s.builder.Library(),
		Plan:       s.plan,
		Targets:    s.targets(),
	}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
