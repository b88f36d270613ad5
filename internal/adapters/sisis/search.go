package sisis

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"
	"opacbridge/internal/session"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// category codes of the searchCategories[i] parameter.
var categoryMeanings = map[string]opac.Meaning{
	"-1":   opac.MeaningFree,
	"331":  opac.MeaningTitle,
	"100":  opac.MeaningAuthor,
	"540":  opac.MeaningISBN,
	"902":  opac.MeaningKeyword,
	"710":  opac.MeaningKeyword,
	"425":  opac.MeaningYear,
	"412":  opac.MeaningPublisher,
	"700":  opac.MeaningSystem,
	"1001": opac.MeaningAudience,
}

var defaultCategories = []opac.Option{
	{Key: "-1", Label: "Freie Suche"},
	{Key: "331", Label: "Titel"},
	{Key: "100", Label: "Verfasser"},
	{Key: "540", Label: "ISBN"},
	{Key: "902", Label: "Schlagwort"},
	{Key: "425", Label: "Erscheinungsjahr"},
	{Key: "412", Label: "Verlag"},
}

func (a *API) searchFields(ctx context.Context) ([]opac.SearchField, error) {
	_, err := a.session.EnsureStarted(ctx)
	if err != nil {
		return nil, err
	}
	doc, _, err := a.client.GetDocument(ctx, "/start.do", a.startParams)
	if err != nil {
		return nil, err
	}

	categories := []opac.Option{}
	doc.Find(`select[name="searchCategories[0]"] option`).Each(func(_ int, option *goquery.Selection) {
		code := strings.TrimSpace(option.AttrOr("value", ""))
		if code == "" {
			return
		}
		categories = append(categories, opac.Option{Key: code, Label: htmlutil.Text(option)})
	})
	if len(categories) == 0 {
		categories = defaultCategories
	}

	fields := []opac.SearchField{}
	seen := map[string]bool{}
	for _, category := range categories {
		if seen[category.Key] {
			continue
		}
		seen[category.Key] = true

		field := opac.NewTextField(category.Key, category.Label)
		field.Meaning = categoryMeanings[category.Key]
		switch field.Meaning {
		case opac.MeaningFree:
			field.FreeSearch = true
		case opac.MeaningISBN:
			field.Type = opac.FieldBarcode
		case opac.MeaningYear:
			field.Number = true
		}
		fields = append(fields, field)
	}

	branchDropdowns := []struct {
		id, name string
		meaning  opac.Meaning
	}{
		{"selectedSearchBranchlib", "Zweigstelle", opac.MeaningBranch},
		{"selectedViewBranchlib", "Standort", opac.MeaningHomeBranch},
	}
	for _, dropdown := range branchDropdowns {
		options := []opac.Option{}
		doc.Find("#" + dropdown.id + " option").Each(func(_ int, option *goquery.Selection) {
			options = append(options, opac.Option{
				Key:   option.AttrOr("value", ""),
				Label: htmlutil.Text(option),
			})
		})
		if len(options) == 0 {
			continue
		}
		field := opac.NewDropdownField(dropdown.id, dropdown.name, options)
		field.Meaning = dropdown.meaning
		fields = append(fields, field)
	}

	fields = backend.AssignMeanings(fields)
	err = opac.ValidateFieldSet(fields)
	if err != nil {
		a.tel.ReportBroken(report_api_search_fields, err, a.lib.Ident)
		return nil, err
	}
	return fields, nil
}

func (a *API) search(ctx context.Context, query []opac.SearchQuery) (opac.SearchRequestResult, error) {
	if volume, ok := opac.VolumeParams(query); ok {
		return a.searchVolume(ctx, query, volume)
	}

	effective, err := backend.ValidateQuery(query, a.rules)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	token, err := a.session.EnsureStarted(ctx)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}

	a.cursor.Begin(effective, a.pageSize)
	a.session.Discard(session.FlowSearchRedirect)

	values := a.withStartParams(url.Values{
		"CSId":                  {token},
		"methodToCall":          {"submit"},
		"methodToCallParameter": {"submitSearch"},
		"callingPage":           {"searchParameters"},
		"submitSearch":          {"Suchen"},
	})
	index := 0
	for _, q := range effective {
		switch q.Field.Type {
		case opac.FieldText, opac.FieldBarcode:
			values.Set(fmt.Sprintf("searchCategories[%d]", index), q.Field.ID)
			values.Set(fmt.Sprintf("searchString[%d]", index), q.Value)
			if index > 0 {
				values.Set(fmt.Sprintf("combinationOperator[%d]", index), "AND")
			}
			index++
		default:
			values.Set(q.Field.ID, q.Value)
		}
	}

	return a.fetchResults(ctx, "/search.do", values, 1)
}

func (a *API) searchVolume(ctx context.Context, query []opac.SearchQuery, volume url.Values) (opac.SearchRequestResult, error) {
	token, err := a.session.EnsureStarted(ctx)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	a.cursor.Begin(query, a.pageSize)
	a.session.Discard(session.FlowSearchRedirect)

	catKey := volume.Get("catKey")
	if catKey == "" {
		catKey = volume.Get("id")
	}
	return a.fetchResults(ctx, "/search.do", url.Values{
		"CSId":         {token},
		"methodToCall": {"volumeSearch"},
		"dbIdentifier": {volume.Get("dbIdentifier")},
		"catKey":       {catKey},
		"periodical":   {"N"},
	}, 1)
}

func (a *API) searchPage(ctx context.Context, page int) (opac.SearchRequestResult, error) {
	err := a.cursor.CheckPage(page)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	if a.cursor.Total >= 0 && (page-1)*a.cursor.PageSize >= a.cursor.Total {
		return opac.SearchRequestResult{
			Results:  []opac.SearchResult{},
			Total:    a.cursor.Total,
			Page:     page,
			PageSize: a.cursor.PageSize,
		}, nil
	}
	if a.cursor.Handle == "" {
		return opac.SearchRequestResult{}, &opac.ProtocolError{
			Adapter: Name,
			Op:      "search page",
			Marker:  "result list identifier",
		}
	}

	return a.fetchResults(ctx, "/hitList.do", url.Values{
		"CSId":         {a.session.Token()},
		"methodToCall": {"pos"},
		"identifier":   {a.cursor.Handle},
		"curPos":       {strconv.Itoa((page-1)*a.cursor.PageSize + 1)},
	}, page)
}

func (a *API) fetchResults(ctx context.Context, path string, values url.Values, page int) (opac.SearchRequestResult, error) {
	res, err := a.client.Get(ctx, path, values)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	doc, err := backend.Document(res)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	result, err := a.parseSearch(doc, res.Body(), page)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	a.cursor.Record(result)
	a.tel.ReportCount(report_api_search, int64(len(result.Results)))
	return result, nil
}

var (
	totalRegex    = regexp.MustCompile(`\((\d+)\)`)
	yearRegex     = regexp.MustCompile(`^\D*[0-9]{4}\D*$`)
	yearOnlyRegex = regexp.MustCompile(`^\s*\([0-9]{4}\)$`)
)

type resultPart struct {
	element bool
	text    string
	class   string
	style   string
}

func (a *API) parseSearch(doc *goquery.Document, body []byte, page int) (opac.SearchRequestResult, error) {
	if errorBox := doc.Find(".error"); errorBox.Length() > 0 {
		return opac.SearchRequestResult{}, opac.NewOpacError(opac.ReasonSiteMessage, htmlutil.Text(errorBox.First()))
	}
	if doc.Find(".nohits").Length() > 0 {
		return opac.SearchRequestResult{
			Results:  []opac.SearchResult{},
			Total:    0,
			Page:     page,
			PageSize: a.cursor.PageSize,
		}, nil
	}

	header := htmlutil.Text(doc.Find(".box-header h2").First())
	if strings.Contains(header, "(1/1)") || strings.Contains(header, " 1/1") {
		return a.parseRedirect(doc, body), nil
	}

	total := -1
	if match := totalRegex.FindStringSubmatch(header); match != nil {
		total, _ = strconv.Atoi(match[1])
	} else {
		a.tel.ReportWarning(report_api_search, "no total in result header", a.lib.Ident, header)
	}

	results := []opac.SearchResult{}
	doc.Find("table.data > tbody > tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() < 3 {
			return
		}
		result, identifier := a.parseResultRow(row, cells)
		if identifier != "" && a.cursor.Handle == "" {
			a.cursor.Handle = identifier
		}
		results = append(results, result)
	})

	if page == 1 && len(results) > 0 && (total < 0 || len(results) < total) {
		a.cursor.PageSize = len(results)
	}
	return opac.SearchRequestResult{
		Results:  backend.NumberResults(results, page, a.cursor.PageSize),
		Total:    total,
		Page:     page,
		PageSize: a.cursor.PageSize,
	}, nil
}

// parseRedirect handles a search whose only hit the site answered with the
// hit's detail page. The page is kept so that Detail does not request it again.
func (a *API) parseRedirect(doc *goquery.Document, body []byte) opac.SearchRequestResult {
	a.session.Stash(session.FlowSearchRedirect, body)

	result := opac.SearchResult{
		ID:          htmlutil.Text(doc.Find("#bibtip_id").First()),
		Description: "<b>" + html.EscapeString(htmlutil.Text(doc.Find(".data td strong").First())) + "</b>",
	}
	doc.Find(".data td img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		result.Type = a.classifier.Classify(img.AttrOr("src", ""))
		return result.Type == opac.MediaUnknown
	})
	return opac.SearchRequestResult{
		Results:  backend.NumberResults([]opac.SearchResult{result}, 1, 1),
		Total:    1,
		Page:     1,
		PageSize: a.cursor.PageSize,
	}
}

func (a *API) parseResultRow(row *goquery.Selection, cells *goquery.Selection) (opac.SearchResult, string) {
	result := opac.SearchResult{}
	if img := row.Find("td img").First(); img.Length() > 0 {
		result.Type = a.classifier.Classify(img.AttrOr("src", ""))
	}

	container := cells.Eq(2)
	if divs := container.Find("div"); divs.Length() == 1 {
		container = divs
	} else if spans := container.Find("span.titleData"); spans.Length() == 1 {
		container = spans
	}

	parts := []resultPart{}
	identifier := ""
	container.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			text := strings.TrimSpace(node.Text())
			if len(text) > 3 {
				parts = append(parts, resultPart{text: text})
			}
			return
		}
		if len(node.Nodes) == 0 || node.Nodes[0].Type != xhtml.ElementNode {
			return
		}
		if href, ok := node.Attr("href"); ok && identifier == "" {
			identifier = htmlutil.QueryParam(href, "identifier")
		}
		if goquery.NodeName(node) == "br" {
			return
		}
		text := htmlutil.Text(node)
		if text == "" {
			return
		}
		parts = append(parts, resultPart{
			element: true,
			text:    text,
			class:   node.AttrOr("class", ""),
			style:   node.AttrOr("style", ""),
		})
	})

	if z3988 := cells.Eq(2).Find("span.Z3988"); z3988.Length() == 1 {
		result.Description = describeCoins(z3988.AttrOr("title", ""))
	}
	if result.Description == "" {
		result.Description = describeParts(parts)
	}
	result.Status = partsStatus(parts)
	return result, identifier
}

// describeCoins builds the description from an OpenURL COinS span.
func describeCoins(title string) string {
	values, err := url.ParseQuery(title)
	if err != nil {
		return ""
	}
	var description strings.Builder
	heading := values.Get("rft.btitle")
	if heading == "" {
		heading = values.Get("rft.title")
	}
	if heading == "" {
		heading = values.Get("rft.atitle")
	}
	if heading == "" {
		return ""
	}
	description.WriteString("<b>" + html.EscapeString(heading) + "</b>")
	if author := values.Get("rft.au"); author != "" {
		description.WriteString("<br />" + html.EscapeString(author))
	}
	if date := values.Get("rft.date"); date != "" {
		description.WriteString("<br />" + html.EscapeString(date))
	}
	return description.String()
}

func describeParts(parts []resultPart) string {
	var description strings.Builder
	lines := 0
	for _, part := range parts {
		text := html.EscapeString(part.text)
		switch {
		case lines == 0:
			description.WriteString("<b>" + text + "</b>")
			lines++
		case len(part.text) <= 10 && (yearRegex.MatchString(part.text) || yearOnlyRegex.MatchString(part.text)):
			description.WriteString(", " + text)
		case lines < 3:
			description.WriteString("<br />" + text)
			lines++
		}
	}
	return description.String()
}

func partsStatus(parts []resultPart) opac.LoanStatus {
	for _, part := range parts {
		if !part.element {
			continue
		}
		switch {
		case strings.Contains(part.class, "textgruen"):
			return opac.StatusGreen
		case strings.Contains(part.class, "textrot"):
			return opac.StatusRed
		case strings.Contains(part.style, "purple"):
			return opac.StatusYellow
		}
	}
	// the first part is the title
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if status := backend.StatusFromText(part.text); status != opac.StatusUnknown {
			return status
		}
	}
	return opac.StatusUnknown
}
