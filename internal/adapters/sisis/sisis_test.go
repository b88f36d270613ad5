package sisis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"

	"github.com/stretchr/testify/require"
)

const startPage = `<html><body><form action="search.do">
<input type="hidden" name="CSId" value="cs123">
<select name="searchCategories[0]">
<option value="-1">Freie Suche</option>
<option value="331">Titel</option>
<option value="100">Verfasser</option>
<option value="540">ISBN</option>
</select>
<select id="selectedSearchBranchlib" name="selectedSearchBranchlib">
<option value="">Alle Zweigstellen</option>
<option value="22">Zentralbibliothek</option>
</select>
</form></body></html>`

const hitListPage = `<html><body>
<div class="box-header"><h2>Treffer (3)</h2></div>
<table class="data"><tbody>
<tr><td>1</td><td><img src="/img/mediatypes/0.gif"></td><td><div><a href="singleHit.do?methodToCall=showHit&amp;curPos=1&amp;identifier=abc">Momo</a><br>Ende, Michael<br>1973<br><span class="textgruen">verfügbar</span></div></td></tr>
<tr><td>2</td><td><img src="/img/mediatypes/15.gif"></td><td><div><a href="singleHit.do?methodToCall=showHit&amp;curPos=2&amp;identifier=abc">Die unendliche Geschichte</a><br>Ende, Michael<br><span class="textrot">entliehen</span></div></td></tr>
</tbody></table>
</body></html>`

const hitListPage2 = `<html><body>
<div class="box-header"><h2>Treffer (3)</h2></div>
<table class="data"><tbody>
<tr><td>3</td><td><img src="/img/mediatypes/0.gif"></td><td><div><a href="singleHit.do?methodToCall=showHit&amp;curPos=3&amp;identifier=abc">Jim Knopf</a><br>Ende, Michael</div></td></tr>
</tbody></table>
</body></html>`

const redirectPage = `<html><body>
<div class="box-header"><h2>Treffer 1/1</h2></div>
<span id="bibtip_id">4711</span>
<table class="data"><tr><td><strong>Das Einzelstück</strong></td></tr></table>
</body></html>`

const noHitsPage = `<html><body><p class="nohits">Keine Treffer</p></body></html>`

const exemplarPage = `<html><body>
<span id="bibtip_id">1234</span>
<div id="tab-content"><table class="data">
<tr id="bg2"><th>Signatur</th><th>Mediennummer</th><th>Standort</th><th>Zweigstelle</th><th>Status</th></tr>
<tr><td>Ende</td><td>M0001</td><td>Kinder</td><td>Zentralbibliothek</td><td>entliehen bis 24.12.2026</td></tr>
<tr><td>Ende</td><td>M0002</td><td>Kinder</td><td>Stadtteil Nord</td><td>verfügbar</td></tr>
</table></div>
</body></html>`

const titlePage = `<html><body>
<div id="tab-content"><table class="data">
<tr><td colspan="2"><strong>Momo</strong></td></tr>
<tr><td>Verfasser:</td><td>Ende, Michael</td></tr>
<tr><td>Verlag:</td><td>Thienemann</td></tr>
</table></div>
</body></html>`

const availabilityTab = `<html><body>
<div id="vormerkung"><a href="availability.do?methodToCall=doVormerkung&amp;katkey=1234">Vormerken</a></div>
<p><a href="search.do?methodToCall=volumeSearch&amp;dbIdentifier=-1&amp;catKey=900">Alle Bände</a></p>
</body></html>`

const branchPage = `<html><body><form action="reservation.do"><table><tr>
<td><input type="radio" name="issuepoint" value="zb"> Zentralbibliothek</td>
<td><input type="radio" name="issuepoint" value="nord"> Stadtteil Nord</td>
</tr></table></form></body></html>`

const confirmationPage = `<html><body><form id="CirculationForm">
<p>Titel: Momo<br/>Abholort: Stadtteil Nord<br/>Gebühr: 1,00 EUR</p>
</form></body></html>`

const loginPage = `<html><body><form action="login.do">
<input name="username"><input name="password" type="password">
</form></body></html>`

const lentPage = `<html><body>
<a id="label1">Ausleihen (2)</a>
<div class="box-right"></div>
<table class="data">
<tr><th>Nr</th><th>Titel</th><th>Frist</th><th></th></tr>
<tr><td>1</td><td><strong>Momo</strong><br/>Ende, Michael</td><td>01.10.2026 - 29.10.2026<br/>Zentralbibliothek</td><td><a href="userAccount.do?methodToCall=renewalPossible&amp;key=1">verlängern</a></td></tr>
<tr><td>2</td><td><strong>Krabat</strong><br/>Preußler, Otfried</td><td>01.10.2026 - 22.10.2026<br/>Zentralbibliothek</td><td><span class="textrot">bereits verlängert</span></td></tr>
</table></body></html>`

const orderedPage = `<html><body>
<div class="box-right"></div>
<table class="data">
<tr><th>Nr</th><th>Titel</th><th>Status</th></tr>
<tr><td colspan="3">keine Daten</td></tr>
</table></body></html>`

const reservedPage = `<html><body>
<a id="label7">Vormerkungen (1)</a>
<div class="box-right"></div>
<table class="data">
<tr><th>Nr</th><th>Titel</th><th>Status</th><th></th></tr>
<tr><td>1</td><td><strong>Jim Knopf</strong><br/>Ende, Michael</td><td>vorgemerkt am 01.10.2026<br/>Position 1<br/>Stadtteil Nord</td><td><a href="userAccount.do?methodToCall=cancel&amp;key=9">löschen</a></td></tr>
</table></body></html>`

type fixtureSite struct {
	mutex    sync.Mutex
	requests map[string]int
	queries  map[string][]string
	// expireNext makes the next account page show the login form.
	expireNext bool
}

func (f *fixtureSite) count(key string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.requests[key]
}

func (f *fixtureSite) total() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

func (f *fixtureSite) lastQuery(key string) []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.queries[key]
}

func (f *fixtureSite) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(key string, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.requests[key]++
		f.queries[key] = append(f.queries[key], r.Form.Encode())
	}
	page := func(w http.ResponseWriter, body string) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}

	mux.HandleFunc("/start.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("searchType") == "1" {
			record("start.do:query", r)
			page(w, exemplarPage)
			return
		}
		record("start.do", r)
		page(w, startPage)
	})
	mux.HandleFunc("/search.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("search.do", r)
		switch r.Form.Get("searchString[0]") {
		case "einzel":
			page(w, redirectPage)
		case "nichts":
			page(w, noHitsPage)
		default:
			page(w, hitListPage)
		}
	})
	mux.HandleFunc("/hitList.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("hitList.do", r)
		page(w, hitListPage2)
	})
	mux.HandleFunc("/singleHit.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("singleHit.do:"+r.Form.Get("tab"), r)
		switch r.Form.Get("tab") {
		case "showExemplarActive":
			page(w, exemplarPage)
		case "showTitleActive":
			page(w, titlePage)
		default:
			page(w, availabilityTab)
		}
	})
	mux.HandleFunc("/login.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("login.do", r)
		switch r.PostForm.Get("password") {
		case "geheim":
			page(w, `<html><body><p>Willkommen</p></body></html>`)
		case "stumm":
			page(w, `<html><body><p class="error"></p></body></html>`)
		default:
			page(w, `<html><body><p class="error">Ausweis ungültig</p></body></html>`)
		}
	})
	mux.HandleFunc("/availability.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("availability.do", r)
		page(w, branchPage)
	})
	mux.HandleFunc("/reservation.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("reservation.do", r)
		if r.PostForm.Get("issuepoint") != "" {
			page(w, confirmationPage)
			return
		}
		page(w, `<html><body><p>Ihre Vormerkung wurde gespeichert</p></body></html>`)
	})
	mux.HandleFunc("/userAccount.do", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		record("userAccount.do:"+r.Form.Get("methodToCall"), r)
		f.mutex.Lock()
		expired := f.expireNext
		f.expireNext = false
		f.mutex.Unlock()
		if expired {
			page(w, loginPage)
			return
		}
		switch r.Form.Get("methodToCall") {
		case "showAccount":
			switch r.Form.Get("typ") {
			case "1":
				page(w, lentPage)
			case "6":
				page(w, orderedPage)
			default:
				page(w, reservedPage)
			}
		case "renewalPossible":
			page(w, `<html><body><p>Verlängert bis 12.11.2026</p></body></html>`)
		case "cancel":
			page(w, `<html><body><p class="error">Vormerkung kann nicht gelöscht werden</p></body></html>`)
		default:
			page(w, `<html><body></body></html>`)
		}
	})
	return mux
}

func newFixture(t *testing.T) (*API, *fixtureSite, *telemetry.Recorder) {
	site := &fixtureSite{
		requests: map[string]int{},
		queries:  map[string][]string{},
	}
	server := httptest.NewServer(site.handler())
	t.Cleanup(server.Close)

	tel := telemetry.NewRecorder()
	api, err := NewAPI(opac.Library{
		Ident: "Testhausen",
		API:   Name,
		Data:  map[string]any{"baseurl": server.URL},
	}, backend.Deps{
		Time: chrono.NewManualTime(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)),
		Tel:  tel,
	})
	if err != nil {
		t.Fatal(err)
	}
	return api, site, tel
}

var testAccount = opac.Account{ID: "acc1", Library: "Testhausen", Name: "12345", Password: "geheim"}

func textField(id string) opac.SearchField {
	return opac.NewTextField(id, id)
}

func TestSearchValidationMakesNoRequests(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	_, err := api.Search(ctx, nil)
	require.True(t, opac.IsReason(err, opac.ReasonNoCriteria))

	_, err = api.Search(ctx, []opac.SearchQuery{{Field: textField("331"), Value: "   "}})
	require.True(t, opac.IsReason(err, opac.ReasonNoCriteria))

	query := []opac.SearchQuery{}
	for _, id := range []string{"-1", "331", "100", "540", "902"} {
		query = append(query, opac.SearchQuery{Field: textField(id), Value: "x"})
	}
	_, err = api.Search(ctx, query)
	require.True(t, opac.IsReason(err, opac.ReasonTooManyCriteria))

	require.Equal(t, 0, site.total())
}

func TestSearchFields(t *testing.T) {
	api, site, _ := newFixture(t)

	fields, err := api.SearchFields(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	again, err := api.SearchFields(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, fields, again)

	byID := map[string]opac.SearchField{}
	for _, f := range fields {
		byID[f.ID] = f
	}
	require.Len(t, fields, 5)
	require.Equal(t, opac.MeaningTitle, byID["331"].Meaning)
	require.True(t, byID["-1"].FreeSearch)
	require.Equal(t, opac.FieldBarcode, byID["540"].Type)
	require.Equal(t, opac.FieldDropdown, byID["selectedSearchBranchlib"].Type)
	require.Len(t, byID["selectedSearchBranchlib"].Options, 2)
	// one bootstrap plus one request per call
	require.Equal(t, 3, site.count("start.do"))
}

func TestSearchAndPaging(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	branch := opac.NewDropdownField("selectedSearchBranchlib", "Zweigstelle", nil)
	res, err := api.Search(ctx, []opac.SearchQuery{
		{Field: textField("331"), Value: "momo"},
		{Field: textField("100"), Value: "ende"},
		{Field: branch, Value: "22"},
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, res.Total)
	require.Len(t, res.Results, 2)
	require.Equal(t, 1, res.Results[0].Position)
	require.Equal(t, 2, res.Results[1].Position)
	require.Contains(t, res.Results[0].Description, "<b>Momo</b>")
	require.Equal(t, opac.StatusGreen, res.Results[0].Status)
	require.Equal(t, opac.StatusRed, res.Results[1].Status)
	require.Equal(t, opac.MediaBook, res.Results[0].Type)
	require.Equal(t, opac.MediaDVD, res.Results[1].Type)

	sent := site.lastQuery("search.do")[0]
	require.Contains(t, sent, "searchCategories%5B1%5D=100")
	require.Contains(t, sent, "combinationOperator%5B1%5D=AND")
	require.Contains(t, sent, "selectedSearchBranchlib=22")
	require.Contains(t, sent, "CSId=cs123")

	page2, err := api.SearchPage(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, page2.Results, 1)
	require.Equal(t, 3, page2.Results[0].Position)
	require.Equal(t, 2, page2.Page)
	require.Contains(t, site.lastQuery("hitList.do")[0], "curPos=3")
	require.Contains(t, site.lastQuery("hitList.do")[0], "identifier=abc")

	page3, err := api.SearchPage(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, page3.Results)
	require.Equal(t, 1, site.count("hitList.do"))
}

func TestSearchPageWithoutSearch(t *testing.T) {
	api, _, _ := newFixture(t)
	_, err := api.SearchPage(context.Background(), 2)
	require.True(t, opac.IsReason(err, opac.ReasonNoSearch))

	_, err = api.Detail(context.Background(), opac.ByPosition(1))
	require.True(t, opac.IsReason(err, opac.ReasonNoSearch))
}

func TestNoHits(t *testing.T) {
	api, _, _ := newFixture(t)
	res, err := api.Search(context.Background(), []opac.SearchQuery{{Field: textField("-1"), Value: "nichts"}})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 0, res.Total)
	require.Empty(t, res.Results)
}

func TestSearchRedirectIsNotRequestedAgain(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	res, err := api.Search(ctx, []opac.SearchQuery{{Field: textField("-1"), Value: "einzel"}})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, res.Total)
	require.Len(t, res.Results, 1)
	require.Equal(t, "4711", res.Results[0].ID)
	require.Equal(t, "<b>Das Einzelstück</b>", res.Results[0].Description)

	item, err := api.Detail(ctx, opac.ByPosition(1))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "4711", item.ID)
	require.Equal(t, 0, site.count("singleHit.do:showExemplarActive"))

	// the buffer is consumed, asking again looks the hit up by its id since
	// there is no result list to page into
	_, err = api.Detail(ctx, opac.ByPosition(1))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 0, site.count("singleHit.do:showExemplarActive"))
	require.Equal(t, 1, site.count("start.do:query"))
	require.Contains(t, site.lastQuery("start.do:query")[0], "Query=0%3D%224711%22")
}

func TestSearchRedirectSurvivesRelogin(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	_, err := api.Search(ctx, []opac.SearchQuery{{Field: textField("-1"), Value: "einzel"}})
	if err != nil {
		t.Fatal(err)
	}

	site.mutex.Lock()
	site.expireNext = true
	site.mutex.Unlock()
	data, err := api.Account(ctx, testAccount)
	if err != nil {
		t.Fatal(err)
	}
	require.NotNil(t, data)
	require.Equal(t, 2, site.count("login.do"))

	item, err := api.Detail(ctx, opac.ByPosition(1))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "4711", item.ID)
	require.Equal(t, 0, site.count("singleHit.do:showExemplarActive"))
	require.Equal(t, 0, site.count("start.do:query"))
}

func TestDetail(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	_, err := api.Search(ctx, []opac.SearchQuery{{Field: textField("331"), Value: "momo"}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = api.Detail(ctx, opac.ByPosition(7))
	require.True(t, opac.IsReason(err, opac.ReasonInvalidPosition))

	item, err := api.Detail(ctx, opac.ByPosition(2))
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, site.lastQuery("singleHit.do:showExemplarActive")[0], "curPos=2")
	require.Equal(t, "1234", item.ID)
	require.Equal(t, "Momo", item.Title)
	author, ok := item.Detail("Verfasser")
	require.True(t, ok)
	require.Equal(t, "Ende, Michael", author)
	require.Len(t, item.Copies, 2)
	require.Equal(t, "M0001", item.Copies[0].Get(opac.CopyBarcode))
	require.Equal(t, "24.12.2026", item.Copies[0].Get(opac.CopyReturnDate))
	require.Equal(t, "Stadtteil Nord", item.Copies[1].Get(opac.CopyBranch))
	require.True(t, item.Reservable)
	require.Equal(t, "methodToCall=doVormerkung&katkey=1234", item.ReservationToken)

	byID, err := api.Detail(ctx, opac.ByID("1234"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, item.Copies, byID.Copies)
	require.Contains(t, site.lastQuery("start.do:query")[0], "Query=0%3D%221234%22")
}

func TestVolumeSearch(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	item, err := api.Detail(ctx, opac.ByID("1234"))
	if err != nil {
		t.Fatal(err)
	}
	require.NotNil(t, item.Volume)
	require.Equal(t, "900", item.Volume.ID)
	require.Equal(t, "Alle Bände", item.Volume.Title)

	res, err := api.Search(ctx, opac.VolumeQuery(*item.Volume))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, res.Total)
	query := site.lastQuery("search.do")[0]
	require.Contains(t, query, "methodToCall=volumeSearch")
	require.Contains(t, query, "catKey=900")
	require.Contains(t, query, "dbIdentifier=-1")
}

func TestReservationWithBranchAndConfirmation(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()
	item := opac.DetailedItem{
		ID:               "1234",
		Reservable:       true,
		ReservationToken: "methodToCall=doVormerkung&katkey=1234",
	}

	res, err := api.Reserve(ctx, item, testAccount, opac.StepInput{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepSelectionNeeded, res.Status)
	require.Equal(t, opac.ActionBranch, res.ActionID)
	require.Equal(t, []opac.Option{
		{Key: "zb", Label: "Zentralbibliothek"},
		{Key: "nord", Label: "Stadtteil Nord"},
	}, res.Options)

	res, err = api.Reserve(ctx, item, testAccount, opac.StepInput{Action: opac.ActionBranch, Selection: "nord"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepConfirmationNeeded, res.Status)
	require.Equal(t, []opac.Detail{
		{Label: "Titel:", Value: "Momo"},
		{Label: "Abholort:", Value: "Stadtteil Nord"},
		{Label: "Gebühr:", Value: "1,00 EUR"},
	}, res.Details)
	require.Contains(t, site.lastQuery("reservation.do")[0], "issuepoint=nord")

	res, err = api.Reserve(ctx, item, testAccount, opac.StepInput{Action: opac.ActionConfirmation})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepOK, res.Status)
	require.Equal(t, 1, site.count("login.do"))

	_, err = api.Reserve(ctx, opac.DetailedItem{ID: "1"}, testAccount, opac.StepInput{})
	require.True(t, opac.IsReason(err, opac.ReasonNotReservable))
}

func TestReservationRejectsUnknownBranch(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()
	item := opac.DetailedItem{Reservable: true, ReservationToken: "methodToCall=doVormerkung&katkey=1"}

	_, err := api.Reserve(ctx, item, testAccount, opac.StepInput{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := api.Reserve(ctx, item, testAccount, opac.StepInput{Action: opac.ActionBranch, Selection: "mond"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepError, res.Status)
	require.Equal(t, 0, site.count("reservation.do"))
}

func TestAccount(t *testing.T) {
	api, _, _ := newFixture(t)

	data, err := api.Account(context.Background(), testAccount)
	if err != nil {
		t.Fatal(err)
	}
	require.NotNil(t, data)
	require.Equal(t, "acc1", data.AccountID)
	require.Len(t, data.Lent, 2)

	// sorted by due date
	require.Equal(t, "Krabat", data.Lent[0].Title)
	require.Equal(t, "22.10.2026", data.Lent[0].DueText)
	require.False(t, data.Lent[0].Renewable)
	require.Equal(t, "§bereits verlängert", data.Lent[0].ProlongToken)

	require.Equal(t, "Momo", data.Lent[1].Title)
	require.Equal(t, "Ende, Michael", data.Lent[1].Author)
	require.Equal(t, "Zentralbibliothek", data.Lent[1].Branch)
	require.True(t, data.Lent[1].Renewable)
	require.Equal(t, "1$methodToCall=renewalPossible&key=1", data.Lent[1].ProlongToken)

	require.Len(t, data.Reservations, 1)
	require.Equal(t, "Jim Knopf", data.Reservations[0].Title)
	require.Equal(t, "Stadtteil Nord", data.Reservations[0].Branch)
	require.Equal(t, "7$1$methodToCall=cancel&key=9", data.Reservations[0].CancelToken)
}

func TestAccountLoginRejected(t *testing.T) {
	api, _, _ := newFixture(t)
	ctx := context.Background()

	wrong := testAccount
	wrong.Password = "falsch"
	_, err := api.Account(ctx, wrong)
	var credErr *opac.CredentialError
	require.ErrorAs(t, err, &credErr)
	require.Equal(t, "Ausweis ungültig", credErr.Message)
	require.Equal(t, "", api.Session().Principal())

	silent := testAccount
	silent.Password = "stumm"
	data, err := api.Account(ctx, silent)
	require.NoError(t, err)
	require.Nil(t, data)

	unconfigured := opac.Account{ID: "acc2"}
	_, err = api.Account(ctx, unconfigured)
	require.True(t, opac.IsReason(err, opac.ReasonNotConfigured))
}

func TestSessionExpiredLogsInAgain(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	_, err := api.Account(ctx, testAccount)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, site.count("login.do"))

	site.mutex.Lock()
	site.expireNext = true
	site.mutex.Unlock()

	data, err := api.Account(ctx, testAccount)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, data.Lent, 2)
	require.Equal(t, 2, site.count("login.do"))
	require.Equal(t, 2, site.count("start.do"))
}

func TestProlongAndCancel(t *testing.T) {
	api, site, _ := newFixture(t)
	ctx := context.Background()

	res, err := api.Prolong(ctx, "§bereits verlängert", testAccount, opac.StepInput{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepError, res.Status)
	require.Equal(t, "bereits verlängert", res.Message)
	require.Equal(t, 0, site.total())

	res, err = api.Prolong(ctx, "1$methodToCall=renewalPossible&key=1", testAccount, opac.StepInput{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepOK, res.Status)
	require.Equal(t, 1, site.count("userAccount.do:renewalPossible"))
	require.Equal(t, 0, site.count("userAccount.do:pos"))

	res, err = api.Cancel(ctx, "7$11$methodToCall=cancel&key=9", testAccount, opac.StepInput{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepError, res.Status)
	require.Equal(t, "Vormerkung kann nicht gelöscht werden", res.Message)
	require.Contains(t, site.lastQuery("userAccount.do:pos")[0], "anzPos=11")

	_, err = api.Cancel(ctx, "kaputt", testAccount, opac.StepInput{})
	require.Error(t, err)
}

func TestUnsupportedAndShare(t *testing.T) {
	api, _, _ := newFixture(t)
	_, err := api.ProlongAll(context.Background(), testAccount, opac.StepInput{})
	require.True(t, opac.IsReason(err, opac.ReasonNotSupported))
	require.Equal(t, backend.Features(0), api.Features())

	link, ok := api.ShareURL("1234", "Momo")
	require.True(t, ok)
	require.True(t, strings.HasSuffix(link, "/start.do?Query=0%3D%221234%22&searchType=1"))

	link, ok = api.ShareURL("", `Der "Zauberberg"`)
	require.True(t, ok)
	require.True(t, strings.HasSuffix(link, "/start.do?Query=-1%3D%22Der+Zauberberg%22&searchType=1"))

	link, _ = api.ShareURL(`12"34`, "Momo")
	require.True(t, strings.HasSuffix(link, "/start.do?Query=0%3D%221234%22&searchType=1"))
}
