package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/utils/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	connectAttempts = 3
	connectBackoff  = 2 * time.Second
)

// DBConnection opens a pgx-backed pool and waits until it answers a ping
func DBConnection(ctx context.Context, DSN string, conf *config.DatabaseConfiguration) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < connectAttempts; i++ { // Retry mechanism
		db, err = sql.Open("pgx", DSN)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				break
			}
			_ = db.Close()
		}
		logger.WithFields(logger.Fields{
			"Error":   fmt.Sprintf("%v", err),
			"Attempt": i + 1,
		}).Warnf("Database connection failed")
		time.Sleep(connectBackoff) // Wait before retrying
	}

	if err != nil {
		return nil, fmt.Errorf("DBConnection: %w", err)
	}

	db.SetMaxIdleConns(conf.MaxIdleConns)
	db.SetMaxOpenConns(conf.MaxOpenConns)
	db.SetConnMaxLifetime(conf.ConnMaxLifetime)

	logger.Infof("Connected to the database")

	return db, nil
}
