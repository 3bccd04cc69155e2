package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bengobox/social-auth/internal/cache"
	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/database"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/bengobox/social-auth/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "providers",
		Short:        "Manage configured social sign-in providers",
		SilenceUsage: true,
	}
	root.AddCommand(newAddCmd(), newRemoveCmd(), newListCmd(), newRefreshCmd())
	return root
}

func openStore(ctx context.Context) (*store.Store, *config.Config, func(), error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	return store.New(db), cfg, func() { _ = db.Close() }, nil
}

// refresh drops the cached snapshot and tells running servers to reload.
func refresh(ctx context.Context, cfg *config.Config) error {
	client, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	c := providers.NewRedisCache(client, cfg.Redis.Namespace)
	if err := c.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate provider cache: %w", err)
	}
	if err := c.PublishReload(ctx); err != nil {
		return fmt.Errorf("publish provider reload: %w", err)
	}
	return nil
}

func newAddCmd() *cobra.Command {
	var (
		p         providers.Provider
		scopes    []string
		params    map[string]string
		noRefresh bool
	)
	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Create or update a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p.Slug = args[0]
			p.Scopes = scopes
			p.Parameters = params

			valid, err := providers.Validate(p)
			if err != nil {
				return err
			}
			s, cfg, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.UpsertProvider(ctx, valid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provider %s saved\n", valid.Slug)
			if noRefresh {
				return nil
			}
			return refresh(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&p.Label, "label", "", "button label (defaults to the slug)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "extra OAuth scopes")
	cmd.Flags().BoolVar(&p.OverrideScopes, "override-scopes", false, "replace the default scopes instead of extending them")
	cmd.Flags().StringToStringVar(&params, "param", nil, "extra authorization parameter key=value")
	cmd.Flags().BoolVar(&p.Stateless, "stateless", false, "skip state verification on callback")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "do not notify running servers")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var noRefresh bool
	cmd := &cobra.Command{
		Use:   "remove <slug>",
		Short: "Delete a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, cfg, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			removed, err := s.DeleteProvider(ctx, strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("provider %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provider %s removed\n", args[0])
			if noRefresh {
				return nil
			}
			return refresh(ctx, cfg)
		},
	}
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "do not notify running servers")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, _, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := s.ListProviders(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tLABEL\tSCOPES\tOVERRIDE\tSTATELESS")
			for _, p := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", p.Slug, p.Label, strings.Join(p.Scopes, " "), p.OverrideScopes, p.Stateless)
			}
			return tw.Flush()
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Clear the cached provider snapshot and reload running servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}
			if err := refresh(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "provider reload published")
			return nil
		},
	}
}
