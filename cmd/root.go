package cmd

import (
	"github.com/spf13/cobra"

	"audionote-backend/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "audionote",
		Short:         "audio note upload and processing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(worker(config))
	rootCmd.AddCommand(token(config))
	return rootCmd
}
