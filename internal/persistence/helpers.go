package persistence

import (
	"database/sql"
	"time"
)

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(v)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}

	return v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

func nullableInt[T ~int8 | ~uint8 | ~int | ~int32](v *T) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64

	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)

	return &i
}
