package sisis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"
	"opacbridge/internal/session"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const branchInput = "issuepoint"

func (a *API) reserve(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	if !item.Reservable || item.ReservationToken == "" {
		return opac.MultiStepResult{}, opac.NewOpacError(opac.ReasonNotReservable, "this item cannot be reserved")
	}
	action := "reservation"
	if strings.Contains(item.ReservationToken, "doBestellung") {
		action = "order"
	}

	var branches []opac.Option
	if step.Action == opac.ActionBranch {
		body, ok := a.session.Take(session.FlowReservationBranch)
		if ok {
			doc, err := backend.ParseBody(body)
			if err != nil {
				return opac.MultiStepResult{}, err
			}
			branches = branchOptions(doc)
		}
	}

	var result opac.MultiStepResult
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		var err error
		result, err = a.reserveStep(ctx, item.ReservationToken, action, branches, step)
		return err
	})
	if err != nil {
		a.tel.ReportWarning(report_api_reserve, err, a.lib.Ident, int(step.Action))
	}
	return result, err
}

func (a *API) reserveStep(ctx context.Context, token, action string, branches []opac.Option, step opac.StepInput) (opac.MultiStepResult, error) {
	var doc *goquery.Document
	var err error

	switch step.Action {
	case opac.ActionConfirmation:
		doc, _, err = a.client.PostFormDocument(ctx, "/"+action+".do", url.Values{
			"methodToCall": {action},
			"CSId":         {a.session.Token()},
		})

	case opac.ActionBranch:
		if branches != nil && !containsOption(branches, step.Selection) {
			return opac.Failed(fmt.Sprintf("%q is not a pickup branch of this library", step.Selection)), nil
		}
		doc, _, err = a.client.PostFormDocument(ctx, "/"+action+".do", url.Values{
			branchInput:    {step.Selection},
			"methodToCall": {action},
			"CSId":         {a.session.Token()},
		})

	default:
		a.session.Discard(session.FlowReservationBranch)
		query, parseErr := url.ParseQuery(token)
		if parseErr != nil {
			return opac.MultiStepResult{}, fmt.Errorf("sisis: malformed reservation token: %w", parseErr)
		}
		res, getErr := a.client.Get(ctx, "/availability.do", query)
		if getErr != nil {
			return opac.MultiStepResult{}, getErr
		}
		doc, err = backend.Document(res)
		if err != nil {
			return opac.MultiStepResult{}, err
		}
		if loginRequired(doc) {
			return opac.MultiStepResult{}, sessionExpired()
		}
		if options := branchOptions(doc); len(options) > 0 {
			a.session.Stash(session.FlowReservationBranch, res.Body())
			return opac.NeedsSelection("Abholort", options, opac.ActionBranch), nil
		}
	}
	if err != nil {
		return opac.MultiStepResult{}, err
	}
	if loginRequired(doc) {
		return opac.MultiStepResult{}, sessionExpired()
	}
	return reservationOutcome(doc), nil
}

func reservationOutcome(doc *goquery.Document) opac.MultiStepResult {
	if errorBox := doc.Find(".error"); errorBox.Length() > 0 {
		return opac.Failed(htmlutil.Text(errorBox.First()))
	}
	if summary := doc.Find("#CirculationForm p"); summary.Length() > 0 {
		details := []opac.Detail{}
		for _, row := range htmlutil.SplitBreaks(summary.First()) {
			if row == "" {
				continue
			}
			label, value, ok := strings.Cut(row, ":")
			if !ok {
				details = append(details, opac.Detail{Value: row})
				continue
			}
			details = append(details, opac.Detail{
				Label: strings.TrimSpace(label) + ":",
				Value: strings.TrimSpace(value),
			})
		}
		return opac.NeedsConfirmation(details, opac.ActionConfirmation)
	}
	return opac.OK("")
}

func branchOptions(doc *goquery.Document) []opac.Option {
	options := []opac.Option{}
	doc.Find("input[name=" + branchInput + "]").Each(func(_ int, input *goquery.Selection) {
		key := input.AttrOr("value", "")
		if key == "" {
			return
		}
		label := htmlutil.Text(input.Closest("td"))
		if label == "" {
			if id, ok := input.Attr("id"); ok {
				label = htmlutil.Text(doc.Find("label[for=" + id + "]"))
			}
		}
		if label == "" {
			label = key
		}
		options = append(options, opac.Option{Key: key, Label: label})
	})
	return options
}

func containsOption(options []opac.Option, key string) bool {
	for _, o := range options {
		if o.Key == key {
			return true
		}
	}
	return false
}

// prolong takes the token of a lent item, either "offset$query" of the
// renewal link or "§" followed by the reason the item cannot be renewed.
func (a *API) prolong(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	if reason, ok := strings.CutPrefix(token, unavailableToken); ok {
		return opac.Failed(reason), nil
	}
	offset, query, ok := strings.Cut(token, "$")
	if !ok {
		return opac.MultiStepResult{}, fmt.Errorf("sisis: malformed prolong token %q", token)
	}

	var result opac.MultiStepResult
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		var err error
		result, err = a.revisitAccountLink(ctx, url.Values{
			"methodToCall": {"showAccount"},
			"typ":          {accountLent},
		}, offset, url.Values{"accountTyp": {accountLentTyp}}, query)
		return err
	})
	if err != nil {
		a.tel.ReportWarning(report_api_prolong, err, a.lib.Ident)
	}
	return result, err
}

// cancel takes the "type$offset$query" token of a reservation.
func (a *API) cancel(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	parts := strings.SplitN(token, "$", 3)
	if len(parts) != 3 {
		return opac.MultiStepResult{}, fmt.Errorf("sisis: malformed cancel token %q", token)
	}
	typ, offset, query := parts[0], parts[1], parts[2]

	var result opac.MultiStepResult
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		var err error
		result, err = a.revisitAccountLink(ctx, url.Values{
			"methodToCall": {"showAccount"},
			"typ":          {typ},
		}, offset, url.Values{}, query)
		return err
	})
	if err != nil {
		a.tel.ReportWarning(report_api_cancel, err, a.lib.Ident)
	}
	return result, err
}

// revisitAccountLink follows a link found on an account list. The site only
// accepts it after the list and the page the link was on were shown again.
func (a *API) revisitAccountLink(ctx context.Context, list url.Values, offset string, pos url.Values, query string) (opac.MultiStepResult, error) {
	_, _, err := a.accountPage(ctx, "/userAccount.do", list)
	if err != nil {
		return opac.MultiStepResult{}, err
	}
	if offset != "1" {
		pos.Set("methodToCall", "pos")
		pos.Set("anzPos", offset)
		_, _, err = a.accountPage(ctx, "/userAccount.do", pos)
		if err != nil {
			return opac.MultiStepResult{}, err
		}
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return opac.MultiStepResult{}, fmt.Errorf("sisis: malformed account link: %w", err)
	}
	doc, _, err := a.accountPage(ctx, "/userAccount.do", values)
	if err != nil {
		return opac.MultiStepResult{}, err
	}
	if errorBox := doc.Find(".error"); errorBox.Length() > 0 {
		return opac.Failed(htmlutil.Text(errorBox.First())), nil
	}
	return opac.OK(""), nil
}
