package koha

import (
	"context"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
)

var tracer = telemetry.Tracer("opacbridge/internal/adapters/koha")

func (a *API) SearchFields(ctx context.Context) ([]opac.SearchField, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.SearchFields", a.lib)
	fields, err := a.searchFields(ctx)
	backend.EndSpan(span, err)
	return fields, err
}

func (a *API) Search(ctx context.Context, query []opac.SearchQuery) (opac.SearchRequestResult, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.Search", a.lib)
	res, err := a.search(ctx, query)
	backend.EndSpan(span, err)
	return res, err
}

func (a *API) SearchPage(ctx context.Context, page int) (opac.SearchRequestResult, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.SearchPage", a.lib)
	res, err := a.searchPage(ctx, page)
	backend.EndSpan(span, err)
	return res, err
}

func (a *API) Detail(ctx context.Context, ref opac.ItemRef) (opac.DetailedItem, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.Detail", a.lib)
	item, err := a.detail(ctx, ref)
	backend.EndSpan(span, err)
	return item, err
}

func (a *API) Account(ctx context.Context, acc opac.Account) (*opac.AccountData, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.Account", a.lib)
	data, err := a.account(ctx, acc)
	backend.EndSpan(span, err)
	return data, err
}

func (a *API) Reserve(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.Reserve", a.lib)
	res, err := a.reserve(ctx, item, acc, step)
	backend.EndStepSpan(span, res, err)
	return res, err
}

func (a *API) Prolong(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.Prolong", a.lib)
	res, err := a.prolong(ctx, token, acc, step)
	backend.EndStepSpan(span, res, err)
	return res, err
}

// Cancel takes the "biblionumber:reserve_id" token of a reservation.
func (a *API) Cancel(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	ctx, span := backend.StartSpan(ctx, tracer, "koha.Cancel", a.lib)
	res, err := a.cancel(ctx, token, acc, step)
	backend.EndStepSpan(span, res, err)
	return res, err
}
