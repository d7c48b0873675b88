package blobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHTTPDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "epoch with single-digit day",
			raw:  "Thu, 1 Jan 1970 00:00:00 GMT",
			want: time.Unix(0, 0).UTC(),
		},
		{
			name: "two-digit day",
			raw:  "Mon, 16 Apr 2018 04:33:50 GMT",
			want: time.Date(2018, time.April, 16, 4, 33, 50, 0, time.UTC),
		},
		{
			name: "missing GMT suffix",
			raw:  "Mon, 16 Apr 2018 04:33:50",
			want: time.Date(2018, time.April, 16, 4, 33, 50, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHTTPDate(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseHTTPDateMalformed(t *testing.T) {
	for _, raw := range []string{"foo", "", "32 Jan 2018", "Mon, 16 Apr 2018"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseHTTPDate(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedTimestamp)
		})
	}
}

func TestFormatHTTPDateRoundTrip(t *testing.T) {
	want := time.Date(2024, time.February, 9, 18, 5, 0, 0, time.UTC)

	got, err := ParseHTTPDate(FormatHTTPDate(want))
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}
