/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"github.com/tracklog/apiserver/config"
	"github.com/tracklog/apiserver/internal/db"
	"github.com/tracklog/apiserver/internal/services"
	"github.com/tracklog/apiserver/internal/storage"
	"github.com/tracklog/apiserver/internal/store"
)

// newRetentionService opens the database and the optional archive storage
// and returns a RetentionService over them. Close the returned *sql.DB.
func newRetentionService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*services.RetentionService, *sql.DB, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	archive, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, err
	}

	var writer services.ArchiveWriter
	if archive != nil {
		writer = archive
		log.Info().Str("backend", cfg.ArchiveBackend).Str("bucket", archive.Bucket()).Msg("archiving pruned activities")
	}

	svc := services.NewRetentionService(store.NewActivityRepository(dbConn), writer, cfg.Retention.MaxAge, log)
	return svc, dbConn, nil
}
