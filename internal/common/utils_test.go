package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceDate_ColumnNames(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1/22/20", true},
		{"12/31/21", true},
		{"01/02/20", true},
		{"Lat", false},
		{"Province/State", false},
		{"2020-01-22", false},
		{"", false},
	}

	for _, tt := range tests {
		_, err := ParseSourceDate(tt.in)
		assert.Equal(t, tt.want, err == nil, tt.in)
	}
}

func TestParseSourceDate(t *testing.T) {
	d, err := ParseSourceDate("3/14/20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.March, 14, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2020-03-14T00:00:00Z", ISODate(d))
	assert.Equal(t, "3/14/20", FormatSourceDate(d))

	_, err = ParseSourceDate("14/3/20")
	assert.Error(t, err)
}

func TestEqualFoldAny(t *testing.T) {
	assert.True(t, EqualFoldAny("TRUE", "1", "true"))
	assert.False(t, EqualFoldAny("no", "1", "true"))
	assert.False(t, EqualFoldAny("x"))
}
