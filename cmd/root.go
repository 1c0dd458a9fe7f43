package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/paycrest/e2e/config"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

// NewRootCommand wires every subcommand
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "e2e",
		Short:         "End-to-end harness for the payment platform",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			conf := config.ServerConfig()
			if loc, err := time.LoadLocation(conf.Timezone); err == nil {
				time.Local = loc
			}
		},
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newHealthcheckCommand())

	return root
}

// Execute runs the CLI and exits non-zero on error
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
