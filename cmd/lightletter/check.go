package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/light-letter/lightletter/internal/config"
	"github.com/light-letter/lightletter/internal/errors"
)

func checkCmd(root func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate config.toml and exit",
		Long: `Load and validate config.toml without opening databases or ports.
Every problem found is reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root())
			if err != nil {
				return err
			}
			if _, err := newLogger(cfg.Log, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if err := checkThemes(cfg); err != nil {
				return err
			}

			success(cmd, "%s is valid", cfg.Root())
			for _, s := range cfg.Sites {
				info(cmd, "%-6s %-16s %s", s.Type, s.Name, s.Host)
			}
			info(cmd, "listening on %v", cfg.Addrs())
			return nil
		},
	}
}

// checkThemes reports blog sites whose theme is not compiled in.
func checkThemes(cfg *config.Config) error {
	reg := themes()
	var errs []error
	for _, s := range cfg.Sites {
		if s.Type != config.TypeBlog {
			continue
		}
		if _, ok := reg.Lookup(s.Theme); !ok {
			errs = append(errs, errors.New(errors.CodeThemeUnknown).
				WithSubject(s.Theme).
				WithDetail(fmt.Sprintf("Compiled themes: %v.", reg.Names())))
		}
	}
	return errors.Join(errs...)
}
