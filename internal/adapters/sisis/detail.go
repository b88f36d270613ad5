package sisis

import (
	"context"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"
	"opacbridge/internal/session"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func (a *API) detail(ctx context.Context, ref opac.ItemRef) (opac.DetailedItem, error) {
	token, err := a.session.EnsureStarted(ctx)
	if err != nil {
		return opac.DetailedItem{}, err
	}

	var doc *goquery.Document
	id := ref.ID
	if id == "" {
		resolved, err := a.cursor.Resolve(ref.Position)
		if err != nil {
			return opac.DetailedItem{}, err
		}
		if ref.Position == 1 {
			if body, ok := a.session.Take(session.FlowSearchRedirect); ok {
				doc, err = backend.ParseBody(body)
				if err != nil {
					return opac.DetailedItem{}, err
				}
			}
		}
		// a redirected search leaves no result list to address positions in
		if doc == nil && a.cursor.Handle == "" {
			id = resolved
		}
	}
	switch {
	case doc != nil:
	case id != "":
		doc, _, err = a.client.GetDocument(ctx, "/start.do", a.withStartParams(url.Values{
			"searchType": {"1"},
			"Query":      {idQuery(id)},
		}))
	default:
		doc, _, err = a.client.GetDocument(ctx, "/singleHit.do", url.Values{
			"CSId":         {token},
			"tab":          {"showExemplarActive"},
			"methodToCall": {"showHit"},
			"curPos":       {strconv.Itoa(ref.Position)},
			"identifier":   {a.cursor.Handle},
		})
	}
	if err != nil {
		return opac.DetailedItem{}, err
	}

	titleDoc, _, err := a.client.GetDocument(ctx, "/singleHit.do", url.Values{
		"methodToCall": {"activateTab"},
		"tab":          {"showTitleActive"},
	})
	if err != nil {
		return opac.DetailedItem{}, err
	}
	availabilityDoc, _, err := a.client.GetDocument(ctx, "/singleHit.do", url.Values{
		"methodToCall": {"activateTab"},
		"tab":          {"showAvailabilityActive"},
	})
	if err != nil {
		return opac.DetailedItem{}, err
	}

	item := a.parseDetail(doc, titleDoc, availabilityDoc)
	if item.ID == "" && id != "" {
		item.ID = id
	}
	if item.Title == "" {
		a.tel.ReportWarning(report_api_detail, "detail page without title", a.lib.Ident, ref.String())
	}
	return item, nil
}

var returnDateRegex = regexp.MustCompile(`[0-9]{1,2}\.[0-9]{1,2}\.[0-9]{2,4}`)

func (a *API) parseDetail(exemplarDoc, titleDoc, availabilityDoc *goquery.Document) opac.DetailedItem {
	item := opac.DetailedItem{}
	docs := []*goquery.Document{titleDoc, exemplarDoc, availabilityDoc}

	for _, doc := range docs {
		if item.ID = htmlutil.Text(doc.Find("#bibtip_id").First()); item.ID != "" {
			break
		}
		doc.Find("a[href*=katkey]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			item.ID = htmlutil.QueryParam(link.AttrOr("href", ""), "katkey")
			return item.ID == ""
		})
		if item.ID != "" {
			break
		}
	}

	for _, doc := range docs {
		if item.Title = htmlutil.Text(doc.Find(".data td strong").First()); item.Title != "" {
			break
		}
	}

	titleDoc.Find(".data td img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src == "" {
			return
		}
		if t := a.classifier.Classify(src); t != opac.MediaUnknown {
			if item.Type == opac.MediaNone {
				item.Type = t
			}
			return
		}
		if item.Cover == "" {
			item.Cover = a.absolute(src)
		}
	})

	titleDoc.Find("#tab-content .data tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSuffix(htmlutil.Text(cells.Eq(0)), ":")
		if label == "" {
			return
		}
		item.AddDetail(label, htmlutil.Text(cells.Eq(1)))
	})

	exemplarDoc.Find("#tab-content .data tr:not(#bg2)").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() < 5 || goquery.NodeName(cells.First()) == "th" {
			return
		}
		cp := opac.Copy{}
		cp.Set(opac.CopyShelfmark, htmlutil.Text(cells.Eq(0)))
		cp.Set(opac.CopyBarcode, htmlutil.Text(cells.Eq(1)))
		cp.Set(opac.CopyLocation, htmlutil.Text(cells.Eq(2)))
		cp.Set(opac.CopyBranch, htmlutil.Text(cells.Eq(3)))
		status := htmlutil.Text(cells.Eq(4))
		cp.Set(opac.CopyStatus, status)
		cp.Set(opac.CopyReturnDate, returnDateRegex.FindString(status))
		item.Copies = append(item.Copies, cp)
	})

	reservationLinks := []string{}
	for _, doc := range []*goquery.Document{exemplarDoc, availabilityDoc} {
		doc.Find("#vormerkung a, #tab-content a").Each(func(_ int, link *goquery.Selection) {
			href := link.AttrOr("href", "")
			method := htmlutil.QueryParam(href, "methodToCall")
			if method != "doVormerkung" && method != "doBestellung" {
				return
			}
			parsed, err := url.Parse(href)
			if err != nil {
				return
			}
			if !slices.Contains(reservationLinks, parsed.RawQuery) {
				reservationLinks = append(reservationLinks, parsed.RawQuery)
			}
		})
	}
	if len(reservationLinks) > 0 {
		if len(reservationLinks) > 1 {
			a.tel.ReportWarning(report_api_detail, "several reservation links, using the first", a.lib.Ident, item.ID)
		}
		item.Reservable = true
		item.ReservationToken = reservationLinks[0]
	}

	for _, doc := range docs {
		link := doc.Find("a[href*=volumeSearch]").First()
		if link.Length() == 0 {
			continue
		}
		href := link.AttrOr("href", "")
		item.Volume = &opac.VolumeRef{
			ID:    htmlutil.QueryParam(href, "catKey"),
			Title: htmlutil.Text(link),
			Params: map[string]string{
				"dbIdentifier": htmlutil.QueryParam(href, "dbIdentifier"),
				"catKey":       htmlutil.QueryParam(href, "catKey"),
			},
		}
		break
	}

	return item
}

func (a *API) absolute(src string) string {
	link, err := url.Parse(src)
	if err != nil {
		return src
	}
	return a.client.BaseURL.ResolveReference(link).String()
}
