package main

import (
	"github.com/spf13/cobra"

	"github.com/conorfennell/tarottimer/internal/config"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newCommandContext())
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tarottimer",
		Short:         "Daily 24-hour tarot deck with midnight rollover",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newTodayCommand(ctx))
	rootCmd.AddCommand(newDrawCommand(ctx))
	rootCmd.AddCommand(newMemoCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newDeckCommand(ctx))

	return rootCmd
}
