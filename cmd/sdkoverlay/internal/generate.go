package internal

import (
	"github.com/goplus/sdkoverlay/pkgs/modulemap"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate every module map",
	Long:  `Generate expands the module map template for every configured SDK and architecture.`,
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.Context(), "")
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), cmd.OutOrStdout(), modulemap.AggregateTarget)
}
