package main

import (
	"github.com/spf13/cobra"

	"github.com/light-letter/lightletter/internal/errors"
	"github.com/light-letter/lightletter/pkg/session"
)

func sessionsCmd(root func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage session tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root())
			if err != nil {
				return err
			}
			store, err := session.NewFileStore(cfg.SessionDir())
			if err != nil {
				return errors.New(errors.CodeSessionDir).WithSubject(cfg.SessionDir()).Wrap(err)
			}
			defer store.Close()

			// Sweeping reads expiry from file times only; no key is needed.
			n, err := session.NewManager(store, nil).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			success(cmd, "removed %d expired tokens from %s", n, store.Dir())
			return nil
		},
	})
	return cmd
}
