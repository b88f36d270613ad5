package opac

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsReason(t *testing.T) {
	err := fmt.Errorf("search: %w", NewOpacError(ReasonNoCriteria, "enter a search term"))
	require.True(t, IsReason(err, ReasonNoCriteria))
	require.False(t, IsReason(err, ReasonTooManyCriteria))
	require.False(t, IsReason(errors.New("plain"), ReasonNoCriteria))

	var opacErr *OpacError
	require.True(t, errors.As(TooManyCriteria(4), &opacErr))
	require.Equal(t, 4, opacErr.Limit)
}

func TestUserMessage(t *testing.T) {
	testCases := []struct {
		err      error
		expected string
	}{
		{
			err:      fmt.Errorf("login: %w", &CredentialError{Message: "Ausweisnummer oder Passwort falsch"}),
			expected: "Ausweisnummer oder Passwort falsch",
		},
		{
			err:      &CredentialError{},
			expected: "login rejected",
		},
		{
			err:      NewOpacError(ReasonNotReservable, "Dieses Medium ist nicht vormerkbar"),
			expected: "Dieses Medium ist nicht vormerkbar",
		},
		{
			err:      &ProtocolError{Adapter: "sisis", Op: "start", Marker: "CSId"},
			expected: "sisis: start: could not find CSId",
		},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, UserMessage(tc.err))
	}
}

func TestUnreachableUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("fetch: %w", &UnreachableError{Endpoint: "http://opac", Err: inner})
	require.ErrorIs(t, err, inner)

	var unreachable *UnreachableError
	require.True(t, errors.As(err, &unreachable))
	require.Equal(t, "http://opac", unreachable.Endpoint)
}

func TestSortLent(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
	}
	items := []LentItem{
		{Title: "undated"},
		{Title: "late", Due: day(20)},
		{Title: "early", Due: day(2)},
	}
	sorted := SortLent(items)

	var titles []string
	for _, item := range sorted {
		titles = append(titles, item.Title)
	}
	require.Equal(t, []string{"early", "late", "undated"}, titles)
	require.Equal(t, "undated", items[0].Title)

	data := AccountData{Lent: items}
	require.Len(t, data.DueWithin(day(1), 72*time.Hour), 1)
}
