package location

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_JSONKeepsOrder(t *testing.T) {
	tl := NewTimeline([]Point{
		{day(2020, 3, 14), 3},
		{day(2020, 3, 15), 8},
		{day(2020, 3, 13), 1},
	})

	raw, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.Equal(t,
		`{"latest":8,"timeline":{"2020-03-14T00:00:00Z":3,"2020-03-15T00:00:00Z":8,"2020-03-13T00:00:00Z":1}}`,
		string(raw))

	var back Timeline
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, tl.Points(), back.Points())
	assert.Equal(t, 8, back.Latest())
}

func TestTimeline_Empty(t *testing.T) {
	var tl Timeline
	assert.Equal(t, 0, tl.Len())
	assert.Equal(t, 0, tl.Latest())

	raw, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.Equal(t, `{"latest":0,"timeline":{}}`, string(raw))

	var back Timeline
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 0, back.Len())
}

func TestTimeline_Count(t *testing.T) {
	tl := NewTimeline([]Point{{day(2020, 1, 1), 5}})

	n, ok := tl.Count(day(2020, 1, 1))
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = tl.Count(day(2020, 1, 2))
	assert.False(t, ok)
}

func TestTimeline_PointsIsACopy(t *testing.T) {
	tl := NewTimeline([]Point{{day(2020, 1, 1), 5}})

	pts := tl.Points()
	pts[0].Count = 100

	assert.Equal(t, 5, tl.Points()[0].Count)
}

func TestTimeline_UnmarshalRejectsBadDates(t *testing.T) {
	var tl Timeline
	err := json.Unmarshal([]byte(`{"latest":1,"timeline":{"1/1/20":1}}`), &tl)
	assert.Error(t, err)
}
