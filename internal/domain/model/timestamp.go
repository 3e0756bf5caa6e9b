package model

import (
	"fmt"
	"time"
)

// timestampLayouts are the ISO-8601 forms the CI service is known to send.
// Values without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 instant. Empty input and the zero date,
// in any accepted layout, yield the zero time and no error.
func ParseTimestamp(raw string) (time.Time, error) {
	if raw == "" || raw == UnsetStartTime {
		return time.Time{}, nil
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if t.IsZero() {
			return time.Time{}, nil
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("parse timestamp %q: not an ISO-8601 instant", raw)
}
