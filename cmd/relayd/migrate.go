package main

import (
	"github.com/spf13/cobra"

	"github.com/tradecopy/relayd/internal/appconfig"
	"github.com/tradecopy/relayd/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply any pending additive schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config-dir")
			env, _ := cmd.Flags().GetString("env")
			cfg, err := appconfig.Load(dir, env)
			if err != nil {
				return err
			}
			st, err := store.New(store.Config{DataDir: cfg.Storage.DataDir})
			if err != nil {
				return err
			}
			return st.Close()
		},
	}
}
