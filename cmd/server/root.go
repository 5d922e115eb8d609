package main

import (
	"github.com/dkeye/callbridge/internal/config"
	"github.com/spf13/cobra"
)

// newRootCmd serves by default; migrate only touches the database.
func newRootCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:           "callbridge",
		Short:         "Call-session broker between voice clients and inference workers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), env)
		},
	}
	cmd.PersistentFlags().StringVar(&env, "config-env", config.Env(), "config environment (reads config/config.<env>.yaml)")

	cmd.AddCommand(
		newServeCmd(&env),
		newMigrateCmd(&env),
	)
	return cmd
}

func newServeCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *env)
		},
	}
}

func newMigrateCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), *env)
		},
	}
}
