package sisis

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	accountLent      = "1"
	accountOrdered   = "6"
	accountReserved  = "7"
	accountLentTyp   = "AUSLEIHEN"
	unavailableToken = "§"
)

var countRegex = regexp.MustCompile(`\(([0-9]+)\)`)

// account returns nil data and a nil error when the login was rejected
// without a message.
func (a *API) account(ctx context.Context, acc opac.Account) (*opac.AccountData, error) {
	var data *opac.AccountData
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		var err error
		data, err = a.fetchAccount(ctx, acc)
		return err
	})
	var credErr *opac.CredentialError
	if errors.As(err, &credErr) && credErr.Message == "" {
		a.tel.ReportDebug("login rejected without message", acc.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// accountPage fetches a page of the account and reports an expired session
// when the site shows the login form instead.
func (a *API) accountPage(ctx context.Context, path string, query url.Values) (*goquery.Document, *url.URL, error) {
	doc, res, err := a.client.GetDocument(ctx, path, query)
	if err != nil {
		return nil, nil, err
	}
	if loginRequired(doc) {
		return nil, nil, sessionExpired()
	}
	return doc, backend.FinalURL(res), nil
}

// eachPage calls fn for the first page of an account list and then for every
// further page linked from its pager with the page's offset.
func (a *API) eachPage(ctx context.Context, typ string, fn func(doc *goquery.Document, offset int)) (*goquery.Document, error) {
	doc, base, err := a.accountPage(ctx, "/userAccount.do", url.Values{
		"methodToCall": {"showAccount"},
		"typ":          {typ},
	})
	if err != nil {
		return nil, err
	}
	fn(doc, 1)

	for _, anchor := range htmlutil.GetAnchors(base, doc.Find(".box-right").First().Find("a")) {
		query := anchor.Url.Query()
		if query.Get("methodToCall") != "pos" {
			continue
		}
		offset, err := strconv.Atoi(query.Get("anzPos"))
		if err != nil {
			a.tel.ReportWarning(report_api_account, err, anchor.Url.String())
			continue
		}
		page, _, err := a.accountPage(ctx, anchor.Url.String(), nil)
		if err != nil {
			return nil, err
		}
		fn(page, offset)
	}
	return doc, nil
}

func (a *API) fetchAccount(ctx context.Context, acc opac.Account) (*opac.AccountData, error) {
	data := &opac.AccountData{
		AccountID:    acc.ID,
		Lent:         []opac.LentItem{},
		Reservations: []opac.ReservedItem{},
	}

	doc, err := a.eachPage(ctx, accountLent, func(doc *goquery.Document, offset int) {
		data.Lent = append(data.Lent, a.parseLent(doc, offset)...)
	})
	if err != nil {
		return nil, err
	}
	a.checkCount(doc, "#label1", len(data.Lent))

	for _, typ := range []string{accountOrdered, accountReserved} {
		before := len(data.Reservations)
		doc, err := a.eachPage(ctx, typ, func(doc *goquery.Document, offset int) {
			data.Reservations = append(data.Reservations, a.parseReservations(doc, typ, offset)...)
		})
		if err != nil {
			return nil, err
		}
		a.checkCount(doc, "#label"+typ, len(data.Reservations)-before)
	}

	data.Lent = opac.SortLent(data.Lent)
	return data, nil
}

// checkCount compares the number of parsed rows to the count the site prints
// in a tab label.
func (a *API) checkCount(doc *goquery.Document, selector string, parsed int) {
	label := doc.Find(selector)
	if label.Length() == 0 {
		return
	}
	match := countRegex.FindStringSubmatch(label.Text())
	if match == nil {
		return
	}
	expected, _ := strconv.Atoi(match[1])
	if expected != parsed {
		a.tel.ReportWarning(report_api_account, "parsed row count differs from site count", a.lib.Ident, selector, expected, parsed)
	}
}

// accountRows calls fn for every data row of an account list, the header row
// is skipped and the "keine Daten" placeholder ends the list.
func accountRows(doc *goquery.Document, fn func(row *goquery.Selection, cells *goquery.Selection)) {
	doc.Find(".data tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		if strings.Contains(row.Text(), "keine Daten") {
			return false
		}
		cells := row.Children()
		if cells.Length() < 3 {
			return true
		}
		fn(row, cells)
		return true
	})
}

func titleAndAuthor(cell *goquery.Selection) (string, string) {
	title := htmlutil.Text(cell.Find("strong"))
	author := ""
	if parts := htmlutil.SplitBreaks(cell); len(parts) > 1 {
		author = parts[1]
	}
	return title, author
}

func (a *API) parseLent(doc *goquery.Document, offset int) []opac.LentItem {
	items := []opac.LentItem{}
	accountRows(doc, func(row *goquery.Selection, cells *goquery.Selection) {
		item := opac.LentItem{}
		item.Title, item.Author = titleAndAuthor(cells.Eq(1))

		parts := htmlutil.SplitBreaks(cells.Eq(2))
		if len(parts) > 0 {
			due := parts[0]
			if i := strings.Index(due, "-"); i >= 0 {
				due = strings.TrimSpace(due[i+1:])
			}
			item.DueText = due
			item.Due = backend.ParseDate(due, nil)
		}
		if len(parts) > 1 {
			item.Branch = parts[1]
		}

		row.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			parsed, err := url.Parse(link.AttrOr("href", ""))
			if err != nil || parsed.Query().Get("methodToCall") != "renewalPossible" {
				return true
			}
			item.Renewable = true
			item.ProlongToken = strconv.Itoa(offset) + "$" + parsed.RawQuery
			return false
		})
		if !item.Renewable {
			marks := row.Find(".textrot, .textgruen")
			if marks.Length() == 1 {
				item.Status = htmlutil.Text(marks)
				item.ProlongToken = unavailableToken + item.Status
			}
		}
		items = append(items, item)
	})
	return items
}

func (a *API) parseReservations(doc *goquery.Document, typ string, offset int) []opac.ReservedItem {
	items := []opac.ReservedItem{}
	accountRows(doc, func(row *goquery.Selection, cells *goquery.Selection) {
		item := opac.ReservedItem{}
		item.Title, item.Author = titleAndAuthor(cells.Eq(1))

		parts := htmlutil.SplitBreaks(cells.Eq(2))
		if len(parts) > 0 {
			item.Ready = parts[0]
		}
		if len(parts) > 2 {
			item.Branch = parts[2]
		}
		switch typ {
		case accountOrdered:
			item.Status = "bestellt"
		case accountReserved:
			item.Status = "vorgemerkt"
		}

		if links := row.Find("a"); links.Length() == 1 {
			parsed, err := url.Parse(links.AttrOr("href", ""))
			if err == nil {
				item.CancelToken = typ + "$" + strconv.Itoa(offset) + "$" + parsed.RawQuery
			}
		}
		items = append(items, item)
	})
	return items
}
