// Package commands implements the importcheck cobra commands.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/importcheck/internal/config"
	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
	"github.com/Sumatoshi-tech/importcheck/pkg/mcp"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
}

// NewRootCommand creates the importcheck command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(pyexec.New)
}

func newRootCommandWithDeps(newExecutor mcp.ExecutorFactory) *cobra.Command {
	globals := &globalFlags{}
	check := &checkCommand{globals: globals, newExecutor: newExecutor}

	rootCmd := &cobra.Command{
		Use:   "importcheck <file>",
		Short: "Execute Python import statements from a file and report status",
		Long: `importcheck executes every statement of a file, one per line, in a shared
Python interpreter scope and reports which ones succeeded.

Blank lines are skipped and lines starting with '#' are printed as
separators. Statements run with full interpreter privileges: only use
input files you trust.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          check.run,
	}

	rootCmd.PersistentFlags().StringVar(&globals.configPath, "config", "",
		"Config file (default: .importcheck.yaml in the current or home directory)")
	rootCmd.PersistentFlags().BoolVarP(&globals.verbose, "verbose", "v", false, "Debug logging to stderr")

	check.registerFlags(rootCmd)

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newMCPCommand(globals, newExecutor))

	return rootCmd
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	return config.LoadConfig(g.configPath)
}

// FatalMessage renders a run-level error for stderr. Input file problems use
// the wording users of the tool expect; everything else is "Error: <err>".
func FatalMessage(err error) string {
	var pathErr *fs.PathError

	switch {
	case errors.Is(err, checker.ErrOpenInput) && errors.Is(err, fs.ErrNotExist) && errors.As(err, &pathErr):
		return fmt.Sprintf("\nError: The file '%s' was not found.", pathErr.Path)
	case errors.Is(err, checker.ErrOpenInput), errors.Is(err, checker.ErrReadInput):
		return fmt.Sprintf("\nAn unexpected error occurred while reading the file: %v", cause(err))
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// cause returns the innermost error joined by a "%w: %w" wrap.
func cause(err error) error {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := multi.Unwrap(); len(errs) > 0 {
			return errs[len(errs)-1]
		}
	}

	return err
}
