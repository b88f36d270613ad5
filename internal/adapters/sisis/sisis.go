// Package sisis talks to SISIS SunRise web OPACs (start.do, search.do,
// hitList.do, singleHit.do, userAccount.do).

package sisis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
	"opacbridge/internal/session"

	"github.com/PuerkitoBio/goquery"
)

const Name = "sisis"

const (
	report_api_start         = "api.start"
	report_api_login         = "api.login"
	report_api_search_fields = "api.search-fields"
	report_api_search        = "api.search"
	report_api_detail        = "api.detail"
	report_api_account       = "api.account"
	report_api_reserve       = "api.reserve"
	report_api_prolong       = "api.prolong"
	report_api_cancel        = "api.cancel"
)

const (
	defaultMaxCriteria = 4
	defaultPageSize    = 10
)

// API implements backend.API for one SISIS library.
type API struct {
	lib         opac.Library
	client      *backend.Client
	session     *session.State
	classifier  backend.Classifier
	rules       backend.QueryRules
	cursor      backend.SearchCursor
	startParams url.Values
	pageSize    int

	time chrono.TimeAPI
	tel  telemetry.API
}

var _ backend.API = (*API)(nil)

func Register(registry *backend.Registry) {
	registry.Register(Name, New)
}

// New is the backend.Factory of this adapter.
func New(lib opac.Library, deps backend.Deps) (backend.API, error) {
	return NewAPI(lib, deps)
}

func NewAPI(lib opac.Library, deps backend.Deps) (*API, error) {
	assert.NotNil(deps.Time)
	assert.NotNil(deps.Tel)

	tel := telemetry.NewScopedAPI(Name, deps.Tel)

	opts := backend.ClientOptionsFor(lib)
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("sisis: library %s has no baseurl", lib.Ident)
	}
	client, err := backend.NewClient(opts, tel)
	if err != nil {
		return nil, fmt.Errorf("sisis: %w", err)
	}

	startParams, err := url.ParseQuery(lib.DataString("startparams"))
	if err != nil {
		return nil, fmt.Errorf("sisis: parse startparams: %w", err)
	}

	overrides, invalid := backend.OverridesFromConfig(lib.DataStringMap("mediatypes"))
	if len(invalid) > 0 {
		tel.ReportWarning(report_api_start, fmt.Errorf("unknown media types in configuration"), lib.Ident, invalid)
	}

	a := &API{
		lib:         lib,
		client:      client,
		classifier:  backend.NewClassifier(overrides, DefaultMediaTypes()),
		startParams: startParams,
		pageSize:    lib.DataInt("page_size", defaultPageSize),
		rules: backend.QueryRules{
			Max:     lib.DataInt("max_criteria", defaultMaxCriteria),
			Counted: backend.CountTextFields,
		},
		time: deps.Time,
		tel:  tel,
	}
	a.session = session.New(session.Options{
		Adapter:   Name,
		BaseURL:   opts.BaseURL,
		Start:     a.start,
		Login:     a.login,
		Time:      deps.Time,
		Tel:       tel,
		Freshness: sessionFreshness(lib),
	})
	return a, nil
}

func sessionFreshness(lib opac.Library) time.Duration {
	seconds := lib.DataInt("session_lifetime_seconds", 0)
	return time.Duration(seconds) * time.Second
}

// Session exposes the session state, mostly for tests.
func (a *API) Session() *session.State {
	return a.session
}

func (a *API) withStartParams(values url.Values) url.Values {
	out := url.Values{}
	for k, v := range a.startParams {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

func (a *API) start(ctx context.Context) (string, error) {
	doc, _, err := a.client.GetDocument(ctx, "/start.do", a.startParams)
	if err != nil {
		a.tel.ReportWarning(report_api_start, err)
		return "", err
	}
	return doc.Find("input[name=CSId]").AttrOr("value", ""), nil
}

func (a *API) login(ctx context.Context, acc opac.Account) error {
	doc, _, err := a.client.PostFormDocument(ctx, "/login.do", url.Values{
		"username":     {acc.Name},
		"password":     {acc.Password},
		"CSId":         {a.session.Token()},
		"methodToCall": {"submit"},
	})
	if err != nil {
		a.tel.ReportWarning(report_api_login, err)
		return err
	}
	if errorBox := doc.Find(".error"); errorBox.Length() > 0 {
		return &opac.CredentialError{Message: strings.TrimSpace(errorBox.First().Text())}
	}
	return nil
}

// loginRequired reports whether a page shows the login form, which is what
// SISIS answers with once the session expired.
func loginRequired(doc *goquery.Document) bool {
	return doc.Find("input[name=username]").Length() > 0 &&
		doc.Find("input[name=password]").Length() > 0
}

func sessionExpired() error {
	return opac.NewOpacError(opac.ReasonSessionExpired, "the session expired")
}

func (a *API) Features() backend.Features {
	return 0
}

// quotedQuery builds a start.do query for term in category, the query
// language has no escape for quotes so they are dropped from term.
func quotedQuery(category, term string) string {
	return category + `="` + strings.ReplaceAll(term, `"`, "") + `"`
}

func idQuery(id string) string {
	return quotedQuery("0", id)
}

func (a *API) ShareURL(id, title string) (string, bool) {
	query := quotedQuery("-1", title)
	if id != "" {
		query = idQuery(id)
	}
	values := a.withStartParams(url.Values{
		"searchType": {"1"},
		"Query":      {query},
	})
	return a.session.BaseURL() + "/start.do?" + values.Encode(), true
}

func (a *API) ProlongAll(ctx context.Context, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	return opac.MultiStepResult{}, backend.Unsupported()
}

func (a *API) Book(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	return opac.MultiStepResult{}, backend.Unsupported()
}
