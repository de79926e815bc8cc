package cli

import (
	"fmt"

	"github.com/me/cpsync/pkg/model"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var handle string

	cmd := &cobra.Command{
		Use:       "login <codeforces|spoj>",
		Short:     "Check that a handle and password are accepted",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"codeforces", "spoj"},
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := model.ParsePlatform(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.OutOrStdout())

			var ok bool
			switch platform {
			case model.PlatformCodeforces:
				if handle != "" {
					cfg.Codeforces.Handle = handle
				}
				if err := p.fill(cmd.Context(), &cfg.Codeforces.Handle, "Codeforces handle: ", false); err != nil {
					return err
				}
				if err := p.fill(cmd.Context(), &cfg.Codeforces.Password, "Codeforces password: ", true); err != nil {
					return err
				}
				cfg.Normalize()
				c, err := newCodeforcesClient(cfg)
				if err != nil {
					return err
				}
				ok, err = c.Login(cmd.Context())
				if err != nil {
					return fmt.Errorf("codeforces login: %w", err)
				}
			case model.PlatformSPOJ:
				if handle != "" {
					cfg.SPOJ.Handle = handle
				}
				if err := p.fill(cmd.Context(), &cfg.SPOJ.Handle, "SPOJ handle: ", false); err != nil {
					return err
				}
				if err := p.fill(cmd.Context(), &cfg.SPOJ.Password, "SPOJ password: ", true); err != nil {
					return err
				}
				cfg.Normalize()
				c, err := newSPOJClient(cfg)
				if err != nil {
					return err
				}
				ok, err = c.Login(cmd.Context())
				if err != nil {
					return fmt.Errorf("spoj login: %w", err)
				}
			}

			if !ok {
				return fmt.Errorf("%s: %w", platform, model.ErrAuthFailed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: login ok\n", platform)
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "Handle to log in with")
	return cmd
}
