package location

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(DefaultSchema)

	rec, err := n.Normalize(row("Germany", "Bayern", "1/22/20", "1", "1/23/20", "", "1/24/20", "4"))
	require.NoError(t, err)

	assert.Equal(t, "Germany", rec.Country)
	assert.Equal(t, "Bayern", rec.Province)
	assert.Equal(t, Coordinates{Latitude: 10.5, Longitude: -20.25}, rec.Coordinates)
	assert.Equal(t, []HistoryEntry{
		{Date: "1/22/20", Count: 1},
		{Date: "1/23/20", Count: 0},
		{Date: "1/24/20", Count: 4},
	}, rec.History)
	assert.Equal(t, 4, rec.Latest)
}

func TestNormalizer_MetadataIsVerbatim(t *testing.T) {
	n := NewNormalizer(DefaultSchema)

	rec, err := n.Normalize(row("  Korea, South ", "", "1/22/20", "1"))
	require.NoError(t, err)
	assert.Equal(t, "  Korea, South ", rec.Country)
	assert.Equal(t, "", rec.Province)
}

func TestNormalizer_CountCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"empty", "", 0},
		{"blank", "  ", 0},
		{"integer", "42", 42},
		{"decimal", "3.0", 3},
		{"negative correction", "-2", 0},
	}

	n := NewNormalizer(DefaultSchema)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := n.Normalize(row("X", "", "1/1/20", tt.value))
			require.NoError(t, err)
			require.Len(t, rec.History, 1)
			assert.Equal(t, tt.want, rec.History[0].Count)
		})
	}
}

func TestNormalizer_InvalidCount(t *testing.T) {
	n := NewNormalizer(DefaultSchema)

	_, err := n.Normalize(row("X", "", "1/1/20", "many"))

	var nerr *NormalizationError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "1/1/20", nerr.Field)
}

func TestNormalizer_Coordinates(t *testing.T) {
	n := NewNormalizer(DefaultSchema)

	missing := RawRow{
		{Name: "Country/Region", Value: "X"},
		{Name: "Long", Value: "1"},
		{Name: "1/1/20", Value: "1"},
	}
	_, err := n.Normalize(missing)
	var nerr *NormalizationError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "Lat", nerr.Field)

	invalid := row("X", "")
	invalid[3].Value = "east"
	_, err = n.Normalize(invalid)
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "Long", nerr.Field)
	assert.Equal(t, "east", nerr.Value)
}

func TestNormalizer_LatestFollowsCalendar(t *testing.T) {
	n := NewNormalizer(DefaultSchema)

	// Columns out of calendar order.
	rec, err := n.Normalize(row("X", "", "1/3/20", "9", "1/1/20", "1", "1/2/20", "5"))
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Latest)
	assert.Equal(t, "1/3/20", rec.History[0].Date, "history keeps column order")
}

func TestNormalizer_CustomSchema(t *testing.T) {
	n := NewNormalizer(Schema{Country: "country", Province: "state", Latitude: "y", Longitude: "x"})

	rec, err := n.Normalize(RawRow{
		{Name: "country", Value: "Germany"},
		{Name: "state", Value: "Berlin"},
		{Name: "y", Value: "52.52"},
		{Name: "x", Value: "13.405"},
		{Name: "3/1/20", Value: "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Berlin", rec.Province)
	assert.Equal(t, 52.52, rec.Coordinates.Latitude)
	assert.Equal(t, 2, rec.Latest)
}

func TestNormalizer_NormalizeAll(t *testing.T) {
	n := NewNormalizer(DefaultSchema)

	recs, err := n.NormalizeAll([]RawRow{row("A", "", "1/1/20", "1"), row("B", "", "1/1/20", "2")})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "B", recs[1].Country)

	_, err = n.NormalizeAll([]RawRow{row("A", "", "1/1/20", "1"), row("B", "", "1/1/20", "x")})
	assert.Error(t, err)
}
