package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/light-letter/lightletter/internal/config"
	"github.com/light-letter/lightletter/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var root string

	rootCmd := &cobra.Command{
		Use:   "lightletter",
		Short: "Multi-site blog server",
		Long: `lightletter serves a set of blog and static sites from one process.

Sites, themes and listen ports are declared in config.toml in the
sites root. The root is taken from --root, then the ` + config.RootEnv + `
or ` + config.LegacyRootEnv + ` environment variables, then the working
directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&root, "root", "r", "", "Sites root containing config.toml")

	resolveRoot := func() string { return config.ResolveRoot(root) }
	rootCmd.AddCommand(
		serveCmd(resolveRoot),
		checkCmd(resolveRoot),
		sessionsCmd(resolveRoot),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig loads and validates config.toml.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
