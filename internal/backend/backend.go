// Package backend defines the operations every catalogue adapter implements
// and the helpers adapters share: query validation, search field meaning
// inference, media type classification, loan status heuristics, result
// numbering and the http client.

package backend

import (
	"context"
	"strings"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
)

// API is implemented once per catalogue software. An instance serves one
// user session and is not safe for concurrent use, different instances share
// nothing and may run in parallel.
//
// note: fault injection point
type API interface {
	// SearchFields returns the fields of the library's search form. The result
	// may be cached by the caller for the lifetime of the library.
	SearchFields(ctx context.Context) ([]opac.SearchField, error)

	// Search fails with opac.ReasonNoCriteria or opac.ReasonTooManyCriteria
	// without touching the network when the query is empty or too long.
	Search(ctx context.Context, query []opac.SearchQuery) (opac.SearchRequestResult, error)
	// SearchPage returns the 1-based page of the last search.
	SearchPage(ctx context.Context, page int) (opac.SearchRequestResult, error)

	// Detail fetches an item by id or by its position in the last search,
	// positions become invalid with the next search.
	Detail(ctx context.Context, ref opac.ItemRef) (opac.DetailedItem, error)

	// Account returns nil data and a nil error when the site rejected the
	// login without saying why.
	Account(ctx context.Context, acc opac.Account) (*opac.AccountData, error)

	Reserve(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error)
	Prolong(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error)
	ProlongAll(ctx context.Context, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error)
	Cancel(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error)
	Book(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error)

	// Features is static, it never touches the network.
	Features() Features
	// ShareURL returns a permalink for an item, ok is false if the site has none.
	ShareURL(id, title string) (url string, ok bool)
}

// Features advertises optional capabilities of an adapter.
type Features uint32

const (
	FeatureEndlessScrolling Features = 1 << iota
	FeatureChangeAccount
	FeatureProlongAll
	FeatureWarnReservationFees
	FeatureBooking
	FeatureAccountExtendableInfo
)

var featureNames = []struct {
	flag Features
	name string
}{
	{FeatureEndlessScrolling, "endless-scrolling"},
	{FeatureChangeAccount, "change-account"},
	{FeatureProlongAll, "prolong-all"},
	{FeatureWarnReservationFees, "warn-reservation-fees"},
	{FeatureBooking, "booking"},
	{FeatureAccountExtendableInfo, "account-extendable-info"},
}

func (f Features) Has(flag Features) bool {
	return f&flag == flag
}

func (f Features) String() string {
	var names []string
	for _, n := range featureNames {
		if f.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Deps are the collaborators every adapter is constructed with.
type Deps struct {
	Time chrono.TimeAPI
	Tel  telemetry.API
}

// Unsupported is returned for operations a site does not offer.
func Unsupported() error {
	return opac.NewOpacError(opac.ReasonNotSupported, "this library does not support this operation")
}
