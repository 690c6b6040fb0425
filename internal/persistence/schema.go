package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; the index+1 is stored as user_version.
var migrations = []string{
	`
	CREATE TABLE link_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		at         INTEGER NOT NULL,
		kind       TEXT    NOT NULL,
		state      TEXT,
		previous   TEXT,
		transport  TEXT,
		target     TEXT,
		severity   INTEGER,
		detail     TEXT
	);
	CREATE INDEX idx_link_events_at ON link_events(at);

	CREATE TABLE telemetry_samples (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		at                INTEGER NOT NULL,
		state             TEXT    NOT NULL,
		armed             INTEGER NOT NULL DEFAULT 0,
		system_status     INTEGER,
		lat               REAL,
		lon               REAL,
		alt_amsl          REAL,
		alt_relative      REAL,
		roll              REAL,
		pitch             REAL,
		yaw               REAL,
		ground_speed      REAL,
		climb             REAL,
		battery_voltage   REAL,
		battery_remaining INTEGER,
		gps_fix           INTEGER,
		satellites        INTEGER,
		packets_received  INTEGER NOT NULL DEFAULT 0,
		packets_lost      INTEGER NOT NULL DEFAULT 0,
		loss_rate         REAL    NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_telemetry_samples_at ON telemetry_samples(at);
	`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, i+1)); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
