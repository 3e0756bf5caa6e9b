package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "2024-05-01T10:00:00Z", want: want},
		{raw: "2024-05-01T12:00:00+02:00", want: want},
		{raw: "2024-05-01T10:00:00+0000", want: want},
		{raw: "2024-05-01T10:00:00", want: want},
		{raw: "2024-05-01T10:00:00.000250", want: want.Add(250 * time.Microsecond)},
		{raw: "", want: time.Time{}},
		{raw: UnsetStartTime, want: time.Time{}},
		{raw: "0001-01-01T00:00:00", want: time.Time{}},
		{raw: "0001-01-01T00:00:00.000Z", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTimestamp_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"yesterday", "2024-05-01", "10:00:00"} {
		_, err := ParseTimestamp(raw)
		assert.Error(t, err, raw)
	}
}
