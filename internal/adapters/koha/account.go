package koha

import (
	"context"
	"errors"
	"strings"
	"time"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func (a *API) account(ctx context.Context, acc opac.Account) (*opac.AccountData, error) {
	var data *opac.AccountData
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		doc, err := a.userPage(ctx, "/opac-user.pl", nil)
		if err != nil {
			return err
		}
		feesDoc, err := a.userPage(ctx, "/opac-account.pl", nil)
		if err != nil {
			return err
		}
		data = a.parseAccount(doc, feesDoc, acc)
		return nil
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

func (a *API) parseAccount(doc, feesDoc *goquery.Document, acc opac.Account) *opac.AccountData {
	data := &opac.AccountData{
		AccountID:    acc.ID,
		Lent:         []opac.LentItem{},
		Reservations: []opac.ReservedItem{},
	}

	accountRows(doc, "#checkoutst", func(cells map[string]*goquery.Selection) {
		item := opac.LentItem{}
		if cell, ok := cells["itype"]; ok {
			item.Format = htmlutil.Text(cell)
		}
		if cell, ok := cells["title"]; ok {
			item.Title = htmlutil.Text(cell)
			item.MediaID = biblionumber(cell)
		}
		if cell, ok := cells["date_due"]; ok {
			item.Due = isoDate(cell)
			item.DueText = htmlutil.Text(cell)
		}
		if cell, ok := cells["branch"]; ok {
			item.Branch = htmlutil.Text(cell)
		}
		if cell, ok := cells["status"]; ok {
			item.Status = htmlutil.Text(cell)
		}
		if cell, ok := cells["renew"]; ok {
			if input := cell.Find("input[name=item]").First(); input.Length() > 0 {
				item.Renewable = true
				item.ProlongToken = input.AttrOr("value", "")
			} else {
				item.ProlongToken = notRenewable + htmlutil.Text(cell)
			}
		}
		data.Lent = append(data.Lent, item)
	})

	accountRows(doc, "#holdst", func(cells map[string]*goquery.Selection) {
		item := opac.ReservedItem{}
		if cell, ok := cells["itype"]; ok {
			item.Format = htmlutil.Text(cell)
		}
		if cell, ok := cells["title"]; ok {
			item.Title = htmlutil.Text(cell)
			item.MediaID = biblionumber(cell)
		}
		if cell, ok := cells["branch"]; ok {
			item.Branch = htmlutil.Text(cell)
		}
		if cell, ok := cells["expirationdate"]; ok {
			if expiry := isoDate(cell); !expiry.IsZero() {
				item.Expiry = expiry.Format("02.01.2006")
			}
		}
		if cell, ok := cells["status"]; ok {
			item.Status = htmlutil.Text(cell)
		}
		if cell, ok := cells["modify"]; ok {
			bib := cell.Find("input[name=biblionumber]").AttrOr("value", "")
			reserveID := cell.Find("input[name=reserve_id]").AttrOr("value", "")
			if bib != "" && reserveID != "" {
				item.CancelToken = bib + ":" + reserveID
			}
		}
		data.Reservations = append(data.Reservations, item)
	})

	data.Lent = opac.SortLent(data.Lent)
	data.PendingFees = htmlutil.Text(feesDoc.Find("td.sum"))
	if alert := doc.Find(".alert"); alert.Length() > 0 {
		data.Warning = htmlutil.Text(alert)
	}
	return data
}

// accountRows calls fn for every body row of the table with the given id,
// cells are keyed by their first class.
func accountRows(doc *goquery.Document, table string, fn func(cells map[string]*goquery.Selection)) {
	doc.Find(table).First().Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := map[string]*goquery.Selection{}
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			classes := strings.Fields(cell.AttrOr("class", ""))
			if len(classes) == 0 {
				return
			}
			if _, ok := cells[classes[0]]; !ok {
				cells[classes[0]] = cell
			}
		})
		fn(cells)
	})
}

func biblionumber(cell *goquery.Selection) string {
	href, ok := cell.Find("a[href]").First().Attr("href")
	if !ok {
		return ""
	}
	if match := biblionumberRegex.FindStringSubmatch(href); match != nil {
		return match[1]
	}
	return ""
}

// isoDate reads the machine readable date Koha puts in a span's title,
// "2018-11-02T23:59:00" or "2018-11-02 23:59:00".
func isoDate(cell *goquery.Selection) time.Time {
	title, ok := cell.Find("span[title]").First().Attr("title")
	if !ok || strings.HasPrefix(title, "0000-00-00") {
		return time.Time{}
	}
	title = strings.Replace(title, " ", "T", 1)
	t, err := time.ParseInLocation("2006-01-02T15:04:05", title, time.Local)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02", title, time.Local)
		if err != nil {
			return time.Time{}
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
