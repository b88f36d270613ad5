package backend

import (
	"testing"
	"time"
	"opacbridge/internal/opac"

	"github.com/stretchr/testify/require"
)

func TestNumberResults(t *testing.T) {
	results := NumberResults(make([]opac.SearchResult, 3), 2, 20)
	require.Equal(t, 21, results[0].Position)
	require.Equal(t, 23, results[2].Position)
	require.Equal(t, 2, results[2].Page)

	page, index := PageOf(21, 20)
	require.Equal(t, 2, page)
	require.Equal(t, 0, index)
	page, index = PageOf(20, 20)
	require.Equal(t, 1, page)
	require.Equal(t, 19, index)
}

func TestSearchCursor(t *testing.T) {
	var cursor SearchCursor
	_, err := cursor.Resolve(1)
	require.True(t, opac.IsReason(err, opac.ReasonNoSearch))
	require.True(t, opac.IsReason(cursor.CheckPage(1), opac.ReasonNoSearch))

	cursor.Begin(nil, 2)
	cursor.Record(opac.SearchRequestResult{
		Results: NumberResults([]opac.SearchResult{{ID: "a"}, {ID: "b"}}, 1, 2),
		Total:   3,
		Page:    1,
	})
	cursor.Record(opac.SearchRequestResult{
		Results: NumberResults([]opac.SearchResult{{ID: "c"}}, 2, 2),
		Total:   -1,
		Page:    2,
	})

	id, err := cursor.Resolve(3)
	require.NoError(t, err)
	require.Equal(t, "c", id)
	require.Equal(t, 3, cursor.Total)

	_, err = cursor.Resolve(4)
	require.True(t, opac.IsReason(err, opac.ReasonInvalidPosition))

	cursor.Begin(nil, 2)
	_, err = cursor.Resolve(1)
	require.True(t, opac.IsReason(err, opac.ReasonInvalidPosition))
}

func TestParseDate(t *testing.T) {
	loc := time.UTC
	require.Equal(t, time.Date(2024, 4, 12, 0, 0, 0, 0, loc), ParseDate("12.04.2024", loc))
	require.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, loc), ParseDate(" 2.4.2024 (verlängert)", loc))
	require.Equal(t, time.Date(2024, 4, 12, 0, 0, 0, 0, loc), ParseDate("2024-04-12", loc))
	require.True(t, ParseDate("bald", loc).IsZero())
}
