package koha

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const freeSearchIndex = "kw,wrdl"

// indexMeanings maps the part of a Koha search index before the first comma.
var indexMeanings = map[string]opac.Meaning{
	"kw": opac.MeaningFree,
	"ti": opac.MeaningTitle,
	"au": opac.MeaningAuthor,
	"su": opac.MeaningKeyword,
	"nb": opac.MeaningISBN,
	"ns": opac.MeaningISBN,
	"pb": opac.MeaningPublisher,
	"yr": opac.MeaningYear,
	"bc": opac.MeaningBarcode,
	"se": opac.MeaningTitle,
}

func indexMeaning(index string) opac.Meaning {
	prefix, _, _ := strings.Cut(index, ",")
	return indexMeanings[prefix]
}

func (a *API) searchFields(ctx context.Context) ([]opac.SearchField, error) {
	doc, _, err := a.client.GetDocument(ctx, opacPath+"/opac-search.pl", nil)
	if err != nil {
		return nil, err
	}

	free := opac.NewTextField(freeSearchIndex, "Freitext")
	free.FreeSearch = true
	free.Meaning = opac.MeaningFree
	fields := []opac.SearchField{free}

	doc.Find("#search-field_0").First().Find("option").Each(func(_ int, option *goquery.Selection) {
		index := option.AttrOr("value", "")
		if index == "" {
			return
		}
		field := opac.NewTextField(index, htmlutil.Text(option))
		if meaning := indexMeaning(index); meaning != opac.MeaningFree {
			field.Meaning = meaning
		}
		fields = append(fields, field)
	})

	tabs := doc.Find("#advsearches .ui-tabs-nav li")
	doc.Find("#advsearches fieldset").Each(func(i int, fieldset *goquery.Selection) {
		if i >= tabs.Length() {
			return
		}
		title := htmlutil.Text(tabs.Eq(i))
		checkboxes := fieldset.Find("input[type=checkbox]")
		if title == "" || checkboxes.Length() == 0 {
			return
		}
		options := []opac.Option{{Key: "", Label: ""}}
		checkboxes.Each(func(_ int, checkbox *goquery.Selection) {
			options = append(options, opac.Option{
				Key:   checkbox.AttrOr("value", ""),
				Label: htmlutil.Text(checkbox.Next()),
			})
		})
		// the inputs are all called "limit", the tab title is the only usable id
		field := opac.NewDropdownField(title, title, options)
		field.Advanced = true
		field.Data = map[string]any{"id": checkboxes.First().AttrOr("name", "limit")}
		fields = append(fields, field)
	})

	doc.Find("legend + label + select").Each(func(_ int, dropdown *goquery.Selection) {
		title := strings.TrimSuffix(htmlutil.Text(dropdown.Prev()), ":")
		if title == "" {
			return
		}
		options := []opac.Option{}
		dropdown.Find("option").Each(func(_ int, option *goquery.Selection) {
			options = append(options, opac.Option{
				Key:   option.AttrOr("value", ""),
				Label: htmlutil.Text(option),
			})
		})
		field := opac.NewDropdownField(title, title, options)
		field.Advanced = true
		field.Data = map[string]any{"id": dropdown.AttrOr("name", "limit")}
		fields = append(fields, field)
	})

	if available := doc.Find("#available-items").First(); available.Length() > 0 {
		field := opac.NewCheckboxField(available.AttrOr("value", ""), htmlutil.Text(available.Parent()))
		field.Meaning = opac.MeaningAvailable
		fields = append(fields, field)
	}

	out := []opac.SearchField{}
	seen := map[string]bool{}
	for _, field := range backend.AssignMeanings(fields) {
		if field.ID == "" || seen[field.ID] {
			a.tel.ReportWarning(report_api_search_fields, "duplicate or empty search field id", a.lib.Ident, field.ID)
			continue
		}
		seen[field.ID] = true
		out = append(out, field)
	}
	return out, nil
}

func searchValues(query []opac.SearchQuery) url.Values {
	values := url.Values{}
	for _, q := range query {
		switch q.Field.Type {
		case opac.FieldText, opac.FieldBarcode:
			values.Add("idx", q.Field.ID)
			values.Add("q", q.Value)
		case opac.FieldDropdown:
			key := q.Field.DataString("id")
			if key == "" {
				key = q.Field.ID
			}
			values.Add(key, q.Value)
		case opac.FieldCheckbox:
			values.Add("limit", q.Field.ID)
		}
	}
	return values
}

func (a *API) search(ctx context.Context, query []opac.SearchQuery) (opac.SearchRequestResult, error) {
	effective, err := backend.ValidateQuery(query, a.rules)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	a.cursor.Begin(effective, a.pageSize)
	return a.fetchPage(ctx, 1)
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
	return a.fetchPage(ctx, page)
}

func (a *API) fetchPage(ctx context.Context, page int) (opac.SearchRequestResult, error) {
	values := searchValues(a.cursor.Query)
	if page > 1 {
		values.Set("offset", strconv.Itoa((page-1)*a.cursor.PageSize))
	}
	doc, _, err := a.client.GetDocument(ctx, opacPath+"/opac-search.pl", values)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	result := a.parseSearch(doc, page)
	a.cursor.Record(result)
	a.tel.ReportCount(report_api_search, int64(len(result.Results)))
	return result, nil
}

var (
	numberRegex       = regexp.MustCompile(`\d+`)
	biblionumberRegex = regexp.MustCompile(`biblionumber=([^&]+)`)
)

func (a *API) parseSearch(doc *goquery.Document, page int) opac.SearchRequestResult {
	total := -1
	if count := doc.Find("#numresults").First(); count.Length() > 0 {
		numbers := numberRegex.FindAllString(count.Text(), -1)
		if len(numbers) > 0 {
			total, _ = strconv.Atoi(numbers[len(numbers)-1])
		} else {
			a.tel.ReportWarning(report_api_search, "no total in result count", a.lib.Ident)
		}
	}

	results := []opac.SearchResult{}
	doc.Find(".searchresults table tr").Each(func(_ int, row *goquery.Selection) {
		titleLink := row.Find("a.title").First()
		match := biblionumberRegex.FindStringSubmatch(titleLink.AttrOr("href", ""))
		if match == nil {
			return
		}

		title := htmlutil.OwnText(titleLink)
		author := htmlutil.Text(row.Find(".author").First())
		summary := ""
		if parts := strings.Split(htmlutil.Text(row.Find(".results_summary").First()), " | "); len(parts) > 1 {
			summary = strings.Join(parts[:len(parts)-1], " | ")
		}

		result := opac.SearchResult{
			ID:          match[1],
			Description: "<b>" + html.EscapeString(title) + "</b><br>" + html.EscapeString(author) + "<br>" + html.EscapeString(summary),
			Cover:       a.absolute(row.Find(".coverimages img").First().AttrOr("src", "")),
		}
		if img := row.Find(".materialtype").First(); img.Length() > 0 {
			result.Type = a.classifier.Classify(img.AttrOr("src", ""))
		}

		available := row.Find(".available").Length() > 0
		unavailable := row.Find(".unavailable").Length() > 0
		switch {
		case available && unavailable:
			result.Status = opac.StatusYellow
		case available:
			result.Status = opac.StatusGreen
		case unavailable:
			result.Status = opac.StatusRed
		}
		results = append(results, result)
	})

	seen := (page-1)*a.cursor.PageSize + len(results)
	switch {
	case total < 0 && len(results) == 0 && page == 1:
		total = 0
	case total >= 0 && total < seen:
		a.tel.ReportWarning(report_api_search, "result count below the results seen", a.lib.Ident, total, seen)
		total = seen
	}

	return opac.SearchRequestResult{
		Results:  backend.NumberResults(results, page, a.cursor.PageSize),
		Total:    total,
		Page:     page,
		PageSize: a.cursor.PageSize,
	}
}
