// Package koha talks to the OPAC of the Koha integrated library system
// (the /cgi-bin/koha/opac-*.pl pages).

package koha

import (
	"context"
	"fmt"
	"net/url"
	"time"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
	"opacbridge/internal/session"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const Name = "koha"

const (
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
	defaultPageSize = 20
	opacPath        = "/cgi-bin/koha"
	// notRenewable prefixes the prolong token of a loan that cannot be
	// renewed, the rest of the token is the site's reason.
	notRenewable = "NOT_RENEWABLE"
)

func DefaultMediaTypes() map[string]opac.MediaType {
	return map[string]opac.MediaType{
		"book":      opac.MediaBook,
		"film":      opac.MediaMovie,
		"sound":     opac.MediaCDMusic,
		"newspaper": opac.MediaMagazine,
	}
}

// API implements backend.API for one Koha library. Koha keeps its session in
// a cookie, there is no token to bootstrap.
type API struct {
	lib        opac.Library
	client     *backend.Client
	session    *session.State
	classifier backend.Classifier
	rules      backend.QueryRules
	cursor     backend.SearchCursor
	pageSize   int

	time chrono.TimeAPI
	tel  telemetry.API
}

var _ backend.API = (*API)(nil)

func Register(registry *backend.Registry) {
	registry.Register(Name, New)
}

func New(lib opac.Library, deps backend.Deps) (backend.API, error) {
	return NewAPI(lib, deps)
}

func NewAPI(lib opac.Library, deps backend.Deps) (*API, error) {
	assert.NotNil(deps.Time)
	assert.NotNil(deps.Tel)

	tel := telemetry.NewScopedAPI(Name, deps.Tel)

	opts := backend.ClientOptionsFor(lib)
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("koha: library %s has no baseurl", lib.Ident)
	}
	client, err := backend.NewClient(opts, tel)
	if err != nil {
		return nil, fmt.Errorf("koha: %w", err)
	}

	overrides, invalid := backend.OverridesFromConfig(lib.DataStringMap("mediatypes"))
	if len(invalid) > 0 {
		tel.ReportWarning(report_api_search, fmt.Errorf("unknown media types in configuration"), lib.Ident, invalid)
	}

	a := &API{
		lib:        lib,
		client:     client,
		classifier: backend.NewClassifier(overrides, DefaultMediaTypes()),
		pageSize:   lib.DataInt("page_size", defaultPageSize),
		rules: backend.QueryRules{
			Max:     lib.DataInt("max_criteria", 0),
			Counted: backend.CountTextFields,
		},
		time: deps.Time,
		tel:  tel,
	}
	a.session = session.New(session.Options{
		Adapter:       Name,
		BaseURL:       opts.BaseURL,
		Start:         a.start,
		Login:         a.login,
		Time:          deps.Time,
		Tel:           tel,
		Freshness:     time.Duration(lib.DataInt("session_lifetime_seconds", 0)) * time.Second,
		TokenOptional: true,
	})
	return a, nil
}

func (a *API) Session() *session.State {
	return a.session
}

func (a *API) start(ctx context.Context) (string, error) {
	return "", nil
}

func loginForm(acc opac.Account) url.Values {
	return url.Values{
		// koha expects the context twice
		"koha_login_context": {"opac", "opac"},
		"userid":             {acc.Name},
		"password":           {acc.Password},
	}
}

func (a *API) login(ctx context.Context, acc opac.Account) error {
	doc, _, err := a.client.PostFormDocument(ctx, opacPath+"/opac-user.pl", loginForm(acc))
	if err != nil {
		a.tel.ReportWarning(report_api_login, err)
		return err
	}
	if alert := doc.Find(".alert"); alert.Length() > 0 && doc.Find("#opac-auth").Length() > 0 {
		return &opac.CredentialError{Message: htmlutil.Text(alert)}
	}
	return nil
}

// userPage fetches a page that needs a login, the login form in its place
// means the session cookie expired.
func (a *API) userPage(ctx context.Context, path string, query url.Values) (*goquery.Document, error) {
	doc, _, err := a.client.GetDocument(ctx, opacPath+path, query)
	if err != nil {
		return nil, err
	}
	if doc.Find("#opac-auth").Length() > 0 {
		return nil, opac.NewOpacError(opac.ReasonSessionExpired, "the session expired")
	}
	return doc, nil
}

func (a *API) Features() backend.Features {
	return backend.FeatureEndlessScrolling
}

func (a *API) ShareURL(id, title string) (string, bool) {
	if id == "" {
		return "", false
	}
	return a.session.BaseURL() + opacPath + "/opac-detail.pl?" + url.Values{"biblionumber": {id}}.Encode(), true
}

func (a *API) ProlongAll(ctx context.Context, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	return opac.MultiStepResult{}, backend.Unsupported()
}

func (a *API) Book(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	return opac.MultiStepResult{}, backend.Unsupported()
}

func (a *API) absolute(src string) string {
	if src == "" {
		return ""
	}
	link, err := url.Parse(src)
	if err != nil {
		return src
	}
	return a.client.BaseURL.ResolveReference(link).String()
}
