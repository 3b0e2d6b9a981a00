package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name    string
		ts      time.Time
		weekend bool
		night   bool
	}{
		{"saturday midnight", time.Date(2018, 4, 7, 0, 0, 0, 0, time.UTC), true, true},
		{"sunday afternoon", time.Date(2018, 4, 8, 15, 30, 0, 0, time.UTC), true, false},
		{"monday hour six", time.Date(2018, 4, 9, 6, 59, 59, 0, time.UTC), false, true},
		{"monday hour seven", time.Date(2018, 4, 9, 7, 0, 0, 0, time.UTC), false, false},
		{"friday late", time.Date(2018, 4, 13, 23, 59, 59, 0, time.UTC), false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			weekend, night := Extract(tc.ts)
			assert.Equal(t, tc.weekend, weekend)
			assert.Equal(t, tc.night, night)
		})
	}
}

func TestExtractUsesTimestampLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	// 23:00 UTC Friday is 07:00 Saturday in UTC+8.
	ts := time.Date(2018, 4, 13, 23, 0, 0, 0, time.UTC).In(loc)

	weekend, night := Extract(ts)
	assert.True(t, weekend)
	assert.False(t, night)
}
