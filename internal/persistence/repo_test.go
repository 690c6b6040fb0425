package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "recorder.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "recorder.db")

	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		var version int
		if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
			t.Fatalf("read version: %v", err)
		}
		if version != len(migrations) {
			t.Fatalf("expected schema version %d, got %d", len(migrations), version)
		}
		_ = db.Close()
	}
}

func TestLinkEventRepo_InsertAndListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewLinkEventRepo(openTestDB(t))
	base := time.Now().UTC().Truncate(time.Millisecond)
	severity := 4

	events := []LinkEvent{
		{At: base, Kind: EventKindState, State: "connecting", Previous: "disconnected", Transport: "udp", Target: "0.0.0.0:14550"},
		{At: base.Add(time.Second), Kind: EventKindState, State: "error", Previous: "connecting", Detail: "connection refused"},
		{At: base.Add(2 * time.Second), Kind: EventKindStatusText, Severity: &severity, Detail: "PreArm: Battery below minimum"},
	}
	for _, e := range events {
		if _, err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].State != "error" || got[0].Detail != "connection refused" || got[0].Severity != nil {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[1].Kind != EventKindStatusText || got[1].Severity == nil || *got[1].Severity != 4 {
		t.Fatalf("unexpected second event %+v", got[1])
	}
	if !got[1].At.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("timestamp not preserved: %s", got[1].At)
	}
}

func TestSampleRepo_KeepsUnknownFieldsNull(t *testing.T) {
	ctx := context.Background()
	repo := NewSampleRepo(openTestDB(t))
	base := time.Now().UTC().Truncate(time.Millisecond)
	lat, lon := 47.3977419, 8.5455938
	remaining := 76

	full := TelemetrySample{
		At:               base,
		State:            "streaming",
		Armed:            true,
		Latitude:         &lat,
		Longitude:        &lon,
		BatteryRemaining: &remaining,
		PacketsReceived:  120,
		PacketsLost:      3,
		LossRate:         0.025,
	}
	empty := TelemetrySample{At: base.Add(time.Second), State: "connected"}
	outside := TelemetrySample{At: base.Add(time.Hour), State: "streaming"}
	for _, s := range []TelemetrySample{full, empty, outside} {
		if _, err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := repo.ListBetween(ctx, base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples in range, got %d", len(got))
	}
	first := got[0]
	if !first.Armed || first.Latitude == nil || *first.Latitude != lat || *first.BatteryRemaining != 76 {
		t.Fatalf("unexpected first sample %+v", first)
	}
	if first.PacketsLost != 3 || first.LossRate != 0.025 {
		t.Fatalf("unexpected link counters %+v", first)
	}
	second := got[1]
	if second.Armed || second.Latitude != nil || second.BatteryVoltage != nil || second.Satellites != nil {
		t.Fatalf("expected nulls to stay nil, got %+v", second)
	}
}
