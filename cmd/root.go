package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/blockscan/cmd/check"
	"github.com/scan-io-git/blockscan/cmd/rules"
	"github.com/scan-io-git/blockscan/cmd/version"
	"github.com/scan-io-git/blockscan/cmd/watch"
	"github.com/scan-io-git/blockscan/internal/config"
	"github.com/scan-io-git/blockscan/pkg/shared/errors"
)

// NewRootCmd builds the blockscan command tree. Without a subcommand it runs
// the check over its arguments.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile   string
		appConfig = config.Default()
		opts      check.Options
	)
	getConfig := func() *config.Config { return appConfig }

	rootCmd := &cobra.Command{
		Use:   "blockscan [flags] PATH...",
		Short: "Blockscan finds blocking calls inside Python async functions.",
		Long: `Blockscan statically analyzes Python source and reports calls that block the
event loop when made from an 'async def' body, such as requests.get, time.sleep
or open, together with the non-blocking replacement to use.`,
		Example:               "  blockscan --summary src/",
		Args:                  cobra.ArbitraryArgs,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return errors.NewCommandError(err, errors.ExitCodeUsage)
			}
			appConfig = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return check.Execute(cmd, appConfig, &opts, args)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("Config file (default is %s when present)", config.DefaultConfigFile))
	check.RegisterFlags(rootCmd.Flags(), &opts)

	rootCmd.AddCommand(
		check.NewCheckCmd(getConfig),
		rules.NewRulesCmd(getConfig),
		watch.NewWatchCmd(getConfig),
		version.NewVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with os.Args and returns the process exit code.
func Execute() int {
	return ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs the command tree with args and returns the exit code.
// Errors other than reported findings are printed to stderr.
func ExecuteArgs(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	code := errors.ExitCode(err)
	if err != nil && code != errors.ExitCodeFindings {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if code == errors.ExitCodeUsage {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		}
	}
	return code
}
