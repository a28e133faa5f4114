/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tracklog/apiserver/config"
	"github.com/tracklog/apiserver/internal/logger"
)

var pruneMaxAge time.Duration

// pruneCmd deletes expired activities once and exits.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete activities older than the retention window",
	Long: `Deletes activities older than --max-age (default RETENTION_MAX_AGE),
archiving them first when ARCHIVE_BACKEND is set. Usage:

	tracklog prune --max-age 2160h
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log := logger.New(cfg)

		svc, dbConn, err := newRetentionService(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		_, err = svc.Prune(cmd.Context(), pruneMaxAge)
		return err
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 0, "retention window; zero uses RETENTION_MAX_AGE")
}
