// wahook - WhatsApp verification-code webhook bridge
// License: MIT
//
// Copyright (c) 2026 wahook contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/wahook/cmd/wahook/internal"
	"github.com/tinyland-inc/wahook/cmd/wahook/internal/identities"
	"github.com/tinyland-inc/wahook/cmd/wahook/internal/serve"
	"github.com/tinyland-inc/wahook/cmd/wahook/internal/status"
	"github.com/tinyland-inc/wahook/cmd/wahook/internal/version"
)

func NewWahookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wahook",
		Short:   "wahook - WhatsApp verification-code webhook bridge v" + internal.GetVersion(),
		Example: "wahook serve",
	}

	cmd.AddCommand(
		serve.NewServeCommand(),
		identities.NewIdentitiesCommand(),
		status.NewStatusCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewWahookCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
