// Package cmd holds the subcommands of kakaotalk-to-doc.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dhcgn/kakaotalk-to-doc/config"
)

// Setup resolves the configuration and logger for a command invocation.
// The returned cleanup must be called when the command finishes.
type Setup func(cmd *cobra.Command) (config.Config, *slog.Logger, func() error, error)
