// Command wizardsim replays navigation scripts against a wizard definition.
//
// Usage:
//
//	wizardsim [--debug] <command> [flags]
//
// Commands:
//
//	schema  Print the JSON Schema of definition files
//	check   Validate a definition file
//	run     Replay a command script and print the emitted events
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set through ldflags at build time.
var version = "dev"

func main() {
	var debug bool

	root := &cobra.Command{
		Use:           "wizardsim",
		Short:         "Replay wizard navigation scripts",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newSchemaCmd(),
		newCheckCmd(),
		newRunCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMsg("%v", err))
		os.Exit(1)
	}
}
