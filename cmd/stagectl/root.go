package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var metadataPath string
	var envFile string

	ctx := newCommandContext(&metadataPath, &envFile)

	rootCmd := &cobra.Command{
		Use:           "stagectl",
		Short:         "Operate the staged-import service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&metadataPath, "metadata-path", "", "Data directory (default: ~/.stagehand)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file")

	rootCmd.AddCommand(newSweepCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}
