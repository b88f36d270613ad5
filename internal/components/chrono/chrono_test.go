package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("no tzdata:", err)
	}
	start := time.Date(2026, time.March, 28, 23, 0, 0, 0, berlin)
	clock := NewManualTime(start)
	require.Equal(t, start, clock.Now())
	require.Equal(t, berlin, clock.Location())

	clock.Advance(3 * time.Minute)
	require.Equal(t, start.Add(3*time.Minute), clock.Now())

	later := time.Date(2026, time.April, 1, 8, 0, 0, 0, berlin)
	clock.Set(later)
	require.Equal(t, later, clock.Now())
}

func TestStandardTime(t *testing.T) {
	require.Equal(t, time.Local, NewStandardTime(nil).Location())
	require.Equal(t, time.Local, StandardTime{}.Location())

	_, err := NewStandardTimeIn("Not/AZone")
	require.Error(t, err)

	utc, err := NewStandardTimeIn("UTC")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, time.UTC, utc.Now().Location())
}
