// Package command implements the oxy-bridge CLI.
package command

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"
)

// CLI holds the state shared by every subcommand.
type CLI struct {
	Out io.Writer
	Err io.Writer

	ConfigPath string
	Verbosity  int
}

// NewCLI creates the shared state writing to out and err.
func NewCLI(out, err io.Writer) *CLI {
	return &CLI{Out: out, Err: err, Verbosity: -1}
}

// Logger returns a logger writing to the error stream. A negative flag value defers to fallback.
func (c *CLI) Logger(fallback int) logr.Logger {
	verbosity := fallback
	if c.Verbosity >= 0 {
		verbosity = c.Verbosity
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(c.Err, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(c.Err, args)
	}, funcr.Options{Verbosity: verbosity})
}

// Highlight applies a blue color to the given format and arguments.
func Highlight(format string, a ...any) string {
	return color.RGB(50, 108, 229).Sprintf(format, a...)
}

// ExactArgsWithUsage returns an error if there is not the exact number of args,
// and shows usage information for better user experience.
func ExactArgsWithUsage(number int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == number {
			return nil
		}
		_ = cmd.Usage()
		if number == 1 {
			return fmt.Errorf("requires exactly 1 argument")
		}
		return fmt.Errorf("requires exactly %d arguments", number)
	}
}
