package command

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the release version, set at build time with -ldflags "-X ...command.Version=v1.2.3".
var Version = "dev"

// NewVersionCommand creates the version subcommand.
func NewVersionCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: Highlight("oxy-bridge version") + "\n\n" +
			"Display the current version of oxy-bridge and the Go runtime it was built with.\n",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cli.Out, "oxy-bridge %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
