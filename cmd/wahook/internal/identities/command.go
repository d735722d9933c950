// Package identities exposes operator maintenance of the identity cache:
// inspecting learned alias mappings and backfilling ones the resolver
// could not learn on its own.
package identities

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/wahook/cmd/wahook/internal"
	"github.com/tinyland-inc/wahook/pkg/identity"
)

func NewIdentitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identities",
		Aliases: []string{"id"},
		Short:   "Inspect and backfill the alias identity cache",
	}

	cmd.AddCommand(
		newListCommand(),
		newAddCommand(),
	)

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned alias → address mappings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			entries := store.Snapshot()
			if len(entries) == 0 {
				fmt.Println("No identity mappings recorded")
				return nil
			}

			aliases := make([]string, 0, len(entries))
			for alias := range entries {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)

			for _, alias := range aliases {
				fmt.Printf("%s -> %s\n", alias, entries[alias])
			}
			return nil
		},
	}
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <alias> <address>",
		Short: "Backfill an alias mapping (existing mappings are never overwritten)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			alias, address := args[0], args[1]
			if !store.Put(alias, address) {
				existing, _ := store.Get(alias)
				return fmt.Errorf("alias %s already mapped to %s", alias, existing)
			}
			fmt.Printf("Recorded %s -> %s\n", alias, address)
			return nil
		},
	}
}

func openStore() (*identity.Store, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	store := identity.NewStore(cfg.IdentityCachePath)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("error loading identity cache: %w", err)
	}
	return store, nil
}
