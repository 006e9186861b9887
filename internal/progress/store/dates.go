package store

import (
	"strings"
	"time"
)

// LegacyDateLayout is how the activity store writes dates into comment meta.
const LegacyDateLayout = "2006-01-02 15:04:05"

// MetaStart is the comment meta key holding started_at.
const MetaStart = "start"

func FormatLegacyDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(LegacyDateLayout)
}

func ParseLegacyDate(v string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(LegacyDateLayout, strings.TrimSpace(v), loc)
}

func ToEpoch(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}

func FromEpoch(v *int64, loc *time.Location) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0).In(loc)
	return &t
}
