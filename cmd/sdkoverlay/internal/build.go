package internal

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [target]",
	Short: "Build the overlay library and its dependencies",
	Long: `Build runs the selected overlay library target and everything it depends on.
An explicit target, such as a single module map, may be given instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.Context(), "")
	if err != nil {
		return err
	}
	target := s.builder.Library().Name
	if len(args) == 1 {
		target = args[0]
	}
	return s.run(cmd.Context(), cmd.OutOrStdout(), target)
}
