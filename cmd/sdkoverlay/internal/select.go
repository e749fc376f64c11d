package internal

import (
	"fmt"

	"github.com/goplus/sdkoverlay/pkgs/variant"
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Print the overlay library selected for the host",
	Args:  cobra.NoArgs,
	RunE:  runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	_, host, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	v, lib, err := variant.Select(host)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatLibrary(v, lib))
	return nil
}
