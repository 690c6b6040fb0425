package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type EventKind string

const (
	EventKindState      EventKind = "state"
	EventKindStatusText EventKind = "statustext"
	EventKindCommandAck EventKind = "command_ack"
)

// LinkEvent is one row of the link event log: a connection state change, a
// STATUSTEXT line or a command acknowledgement.
type LinkEvent struct {
	ID        int64
	At        time.Time
	Kind      EventKind
	State     string
	Previous  string
	Transport string
	Target    string
	Severity  *int
	Detail    string
}

type LinkEventRepo struct {
	db *sql.DB
}

func NewLinkEventRepo(db *sql.DB) *LinkEventRepo {
	return &LinkEventRepo{db: db}
}

func (r *LinkEventRepo) Insert(ctx context.Context, e LinkEvent) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO link_events(at, kind, state, previous, transport, target, severity, detail)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`,
		timeToUnixMillis(e.At),
		string(e.Kind),
		nullableString(e.State),
		nullableString(e.Previous),
		nullableString(e.Transport),
		nullableString(e.Target),
		nullableInt(e.Severity),
		nullableString(e.Detail),
	)
	if err != nil {
		return 0, fmt.Errorf("insert link event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get link event id: %w", err)
	}

	return id, nil
}

// ListRecent returns up to limit newest events, oldest first.
func (r *LinkEventRepo) ListRecent(ctx context.Context, limit int) ([]LinkEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, at, kind, state, previous, transport, target, severity, detail
		FROM link_events
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list link events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []LinkEvent
	for rows.Next() {
		var (
			e                                     LinkEvent
			at                                    int64
			kind                                  string
			state, previous, transport, target, d sql.NullString
			severity                              sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &at, &kind, &state, &previous, &transport, &target, &severity, &d); err != nil {
			return nil, fmt.Errorf("scan link event: %w", err)
		}
		e.At = unixMillisToTime(at)
		e.Kind = EventKind(kind)
		e.State = state.String
		e.Previous = previous.String
		e.Transport = transport.String
		e.Target = target.String
		e.Severity = intPtr(severity)
		e.Detail = d.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link events: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}
