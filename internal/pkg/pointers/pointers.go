package pointers

import "time"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func Int64(v int64) *int64 { return &v }

// Time returns nil for the zero time.
func Time(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

// Int64Or returns *p or def when p is nil.
func Int64Or(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}
