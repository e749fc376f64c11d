package internal

import (
	"path/filepath"

	"github.com/goplus/sdkoverlay/internal/build"
	"github.com/spf13/cobra"
)

var installDestDir string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Generate and install the module maps",
	Long:  `Install generates the module maps of the configured component and copies them under the destination directory.`,
	Args:  cobra.NoArgs,
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installDestDir, "destdir", "", "Destination root (default install.destdir)")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	destDir := installDestDir
	if destDir != "" {
		abs, err := filepath.Abs(destDir)
		if err != nil {
			return err
		}
		destDir = abs
	}
	s, err := newSession(cmd.Context(), destDir)
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), cmd.OutOrStdout(), build.TargetInstall)
}
