package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var recorderTables = []string{"link_events", "telemetry_samples"}

//goland:noinspection SqlWithoutWhere
func ClearDatabase(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear database tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range recorderTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+`;`); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear database tx: %w", err)
	}

	return nil
}

// Prune deletes recorder rows older than cutoff and returns how many went.
func Prune(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int64
	for _, table := range recorderTables {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE at < ?;`, timeToUnixMillis(cutoff))
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("prune %s rows: %w", table, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune tx: %w", err)
	}

	return total, nil
}
