package koha

import (
	"context"
	"net/url"
	"strings"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// copyColumns maps the classes of the holdings table cells.
var copyColumns = map[string]opac.CopyKey{
	"location":    opac.CopyBranch,
	"collection":  opac.CopyLocation,
	"call_no":     opac.CopyShelfmark,
	"status":      opac.CopyStatus,
	"date_due":    opac.CopyReturnDate,
	"holds_count": opac.CopyReservations,
	"itembarcode": opac.CopyBarcode,
}

// detail resolves positions through the last search, every Koha result has
// a biblionumber.
func (a *API) detail(ctx context.Context, ref opac.ItemRef) (opac.DetailedItem, error) {
	id := ref.ID
	if id == "" {
		var err error
		id, err = a.cursor.Resolve(ref.Position)
		if err != nil {
			return opac.DetailedItem{}, err
		}
	}

	doc, _, err := a.client.GetDocument(ctx, opacPath+"/opac-detail.pl", url.Values{"biblionumber": {id}})
	if err != nil {
		return opac.DetailedItem{}, err
	}
	item := a.parseDetail(doc, id)
	if item.Title == "" {
		a.tel.ReportWarning(report_api_detail, "detail page without title", a.lib.Ident, id)
	}
	return item, nil
}

func (a *API) parseDetail(doc *goquery.Document, id string) opac.DetailedItem {
	item := opac.DetailedItem{ID: id}

	title := doc.Find("h1.title").First()
	item.Title = htmlutil.OwnText(title)
	if item.Title == "" {
		item.Title = htmlutil.Text(title)
	}

	doc.Find("h5.author, span.results_summary").Each(func(_ int, row *goquery.Selection) {
		label, value, _ := strings.Cut(htmlutil.Text(row), ":")
		item.AddDetail(strings.TrimSpace(label), strings.TrimSpace(value))
	})

	if img := doc.Find(".materialtype").First(); img.Length() > 0 {
		item.Type = a.classifier.Classify(img.AttrOr("src", ""))
	}
	item.Cover = a.absolute(doc.Find("#bookcover img").First().AttrOr("src", ""))

	doc.Find(".holdingst > tbody > tr").Each(func(_ int, row *goquery.Selection) {
		row.Find(".branch-info-tooltip").Remove()
		cp := opac.Copy{}
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			for _, class := range strings.Fields(cell.AttrOr("class", "")) {
				if key, ok := copyColumns[class]; ok {
					cp.Set(key, htmlutil.Text(cell))
					break
				}
			}
		})
		item.Copies = append(item.Copies, cp)
	})

	if doc.Find("a.reserve").Length() > 0 {
		item.Reservable = true
		item.ReservationToken = id
	}
	return item
}
