package opac

import (
	"sort"
	"time"
)

type LentItem struct {
	Title   string
	Author  string
	Format  string
	MediaID string
	Barcode string
	Branch  string
	Status  string

	// DueText is the due date as the site printed it, Due is the parsed value
	// used for sorting and is zero when it could not be parsed.
	DueText string
	Due     time.Time

	Renewable    bool
	ProlongToken string
}

type ReservedItem struct {
	Title   string
	Author  string
	Format  string
	MediaID string
	Branch  string
	Status  string

	// Ready is the site's text for when the item is ready or expires.
	Ready  string
	Expiry string

	CancelToken string
	BookingURL  string
}

type AccountData struct {
	AccountID    string
	Lent         []LentItem
	Reservations []ReservedItem

	PendingFees string
	ValidUntil  string
	Warning     string
}

// SortLent orders loans by due date with undated loans last, it returns a
// new slice.
func SortLent(items []LentItem) []LentItem {
	out := make([]LentItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Due, out[j].Due
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.Before(b)
	})
	return out
}

// DueWithin returns the loans due before now + d.
func (a AccountData) DueWithin(now time.Time, d time.Duration) []LentItem {
	var out []LentItem
	limit := now.Add(d)
	for _, l := range a.Lent {
		if !l.Due.IsZero() && l.Due.Before(limit) {
			out = append(out, l)
		}
	}
	return out
}
