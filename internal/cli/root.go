// Package cli implements the strata command line tool.
package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/strata"
	"github.com/syssam/strata/config"
	"github.com/syssam/strata/store"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
)

type rootOptions struct {
	configFile string
	driver     string
	dsn        string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "Inspect and maintain strata stores",
		Long: `strata inspects the tables of a store and runs maintenance statements.

Connection settings are read from strata.yaml, STRATA_* environment
variables and the flags below, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default ./strata.yaml)")
	flags.StringVar(&opts.driver, "driver", "", "database driver (sqlite, sqlite3, mysql, postgres, sqlserver)")
	flags.StringVar(&opts.dsn, "dsn", "", "data source name")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newTablesCommand(opts))
	rootCmd.AddCommand(newDescribeCommand(opts))
	rootCmd.AddCommand(newCountCommand(opts))
	rootCmd.AddCommand(newTruncateCommand(opts))
	rootCmd.AddCommand(newDropCommand(opts))
	rootCmd.AddCommand(newExecCommand(opts))

	return rootCmd
}

// open loads the configuration, applies the flag overrides and opens the
// store. The caller closes it.
func (o *rootOptions) open() (*store.Store, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return config.Open(cfg)
}

// run opens the store and calls fn with it. A failed close is reported
// along with the error of fn.
func (o *rootOptions) run(cmd *cobra.Command, fn func(context.Context, *store.Store) error) error {
	s, err := o.open()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return strata.NewAggregateError(fn(ctx, s), s.Close())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			title := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()
			title.Fprint(out, "strata version: ")
			fmt.Fprintln(out, Version)
			title.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			title.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

func errorLabel(err error) string {
	switch {
	case strata.IsQueryError(err):
		return "Query error"
	case strata.IsNotFound(err):
		return "Not found"
	default:
		return "Error"
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "%s: %v\n", errorLabel(err), err)
		return err
	}
	return nil
}
