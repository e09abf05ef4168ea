package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRootCommand creates the oxy-bridge command tree around cli.
func NewRootCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oxy-bridge",
		Short: "Mirror authoring-tool scenes into the oxy renderer",
		Long: Highlight("Usage: oxy-bridge [global options] <subcommand> [args]") + "\n\n" +
			"oxy-bridge keeps a renderer scene graph in sync with an external host scene.\n" +
			"The CLI replays scripted host sessions to exercise the bridge without the host.\n",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				_ = cmd.Help()
			}
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&cli.ConfigPath, "config", "c", "", "Path to a bridge configuration file")
	cmd.PersistentFlags().IntVarP(&cli.Verbosity, "verbosity", "v", -1, "Log verbosity, overrides log.verbosity from the configuration")
	cmd.SetOut(cli.Out)
	cmd.SetErr(cli.Err)

	AddCommands(cmd, cli)
	setCobraUsageTemplate(cmd)
	cmd.SetVersionTemplate("{{.Version}}\n")
	return cmd
}

// AddCommands registers all subcommands to the root command.
func AddCommands(root *cobra.Command, cli *CLI) {
	root.AddCommand(
		NewVersionCommand(cli),
		NewReplayCommand(cli),
	)
}

func setCobraUsageTemplate(root *cobra.Command) {
	cobra.AddTemplateFunc("StyleHeading", color.RGB(50, 108, 229).SprintFunc())
	usageTemplate := root.UsageTemplate()
	usageTemplate = strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Examples:`, `{{StyleHeading "Examples:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(usageTemplate)
	root.SetUsageTemplate(usageTemplate)
}

// Execute runs the CLI against the process arguments and exits.
func Execute() {
	// Disable color output if NO_COLOR is set in the environment
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		color.NoColor = true
	}

	cli := NewCLI(os.Stdout, os.Stderr)
	if err := NewRootCommand(cli).Execute(); err != nil {
		fmt.Fprintln(cli.Err, color.RedString("Error:"), err)
		os.Exit(1)
	}
}
