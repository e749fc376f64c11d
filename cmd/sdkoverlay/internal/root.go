package internal

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goplus/sdkoverlay/pkgs/sdk"
	"github.com/spf13/cobra"
)

var (
	configPath string
	hostFlag   string
	jobsFlag   int
	verbose    bool
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "sdkoverlay",
})

var rootCmd = &cobra.Command{
	Use:   "sdkoverlay",
	Short: "sdkoverlay generates platform overlay build descriptors",
	Long: `sdkoverlay selects the platform overlay library for a host and generates
one glibc module map per configured SDK and architecture.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		} else {
			logger.SetLevel(log.InfoLevel)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default ./sdkoverlay.yaml)")
	flags.StringVar(&hostFlag, "host", "", "Host SDK kind, overriding host_variant")
	flags.IntVarP(&jobsFlag, "jobs", "j", 0, "Maximum parallel actions (default from config)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	_ = rootCmd.RegisterFlagCompletionFunc("host", completeHost)
}

func completeHost(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, k := range sdk.Kinds() {
		name := strings.ToLower(string(k))
		if strings.HasPrefix(name, strings.ToLower(toComplete)) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
