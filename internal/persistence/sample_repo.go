package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TelemetrySample is one periodic row of the flight recorder. Nil fields
// were not known when the sample was taken.
type TelemetrySample struct {
	ID               int64
	At               time.Time
	State            string
	Armed            bool
	SystemStatus     *int
	Latitude         *float64
	Longitude        *float64
	AltitudeAMSL     *float64
	AltitudeRelative *float64
	Roll             *float64
	Pitch            *float64
	Yaw              *float64
	GroundSpeed      *float64
	Climb            *float64
	BatteryVoltage   *float64
	BatteryRemaining *int
	GPSFix           *int
	Satellites       *int
	PacketsReceived  uint64
	PacketsLost      uint64
	LossRate         float64
}

type SampleRepo struct {
	db *sql.DB
}

func NewSampleRepo(db *sql.DB) *SampleRepo {
	return &SampleRepo{db: db}
}

func (r *SampleRepo) Insert(ctx context.Context, s TelemetrySample) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO telemetry_samples(
			at, state, armed, system_status, lat, lon, alt_amsl, alt_relative,
			roll, pitch, yaw, ground_speed, climb, battery_voltage, battery_remaining,
			gps_fix, satellites, packets_received, packets_lost, loss_rate
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		timeToUnixMillis(s.At),
		s.State,
		s.Armed,
		nullableInt(s.SystemStatus),
		nullableFloat(s.Latitude),
		nullableFloat(s.Longitude),
		nullableFloat(s.AltitudeAMSL),
		nullableFloat(s.AltitudeRelative),
		nullableFloat(s.Roll),
		nullableFloat(s.Pitch),
		nullableFloat(s.Yaw),
		nullableFloat(s.GroundSpeed),
		nullableFloat(s.Climb),
		nullableFloat(s.BatteryVoltage),
		nullableInt(s.BatteryRemaining),
		nullableInt(s.GPSFix),
		nullableInt(s.Satellites),
		int64(s.PacketsReceived),
		int64(s.PacketsLost),
		s.LossRate,
	)
	if err != nil {
		return 0, fmt.Errorf("insert telemetry sample: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get telemetry sample id: %w", err)
	}

	return id, nil
}

// ListBetween returns samples with from <= at < to in time order.
func (r *SampleRepo) ListBetween(ctx context.Context, from, to time.Time) ([]TelemetrySample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, at, state, armed, system_status, lat, lon, alt_amsl, alt_relative,
			roll, pitch, yaw, ground_speed, climb, battery_voltage, battery_remaining,
			gps_fix, satellites, packets_received, packets_lost, loss_rate
		FROM telemetry_samples
		WHERE at >= ? AND at < ?
		ORDER BY at ASC, id ASC
	`, timeToUnixMillis(from), timeToUnixMillis(to))
	if err != nil {
		return nil, fmt.Errorf("list telemetry samples: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []TelemetrySample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry samples: %w", err)
	}

	return out, nil
}

func scanSample(rows *sql.Rows) (TelemetrySample, error) {
	var (
		s                                 TelemetrySample
		at, received, lost                int64
		status, remaining, fix, sats      sql.NullInt64
		lat, lon, amsl, rel               sql.NullFloat64
		roll, pitch, yaw, speed, climb, v sql.NullFloat64
	)
	if err := rows.Scan(
		&s.ID, &at, &s.State, &s.Armed, &status, &lat, &lon, &amsl, &rel,
		&roll, &pitch, &yaw, &speed, &climb, &v, &remaining,
		&fix, &sats, &received, &lost, &s.LossRate,
	); err != nil {
		return TelemetrySample{}, fmt.Errorf("scan telemetry sample: %w", err)
	}
	s.At = unixMillisToTime(at)
	s.SystemStatus = intPtr(status)
	s.Latitude = floatPtr(lat)
	s.Longitude = floatPtr(lon)
	s.AltitudeAMSL = floatPtr(amsl)
	s.AltitudeRelative = floatPtr(rel)
	s.Roll = floatPtr(roll)
	s.Pitch = floatPtr(pitch)
	s.Yaw = floatPtr(yaw)
	s.GroundSpeed = floatPtr(speed)
	s.Climb = floatPtr(climb)
	s.BatteryVoltage = floatPtr(v)
	s.BatteryRemaining = intPtr(remaining)
	s.GPSFix = intPtr(fix)
	s.Satellites = intPtr(sats)
	s.PacketsReceived = uint64(received)
	s.PacketsLost = uint64(lost)

	return s, nil
}
