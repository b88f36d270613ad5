package koha

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

func (a *API) reserve(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	if !item.Reservable || item.ID == "" {
		return opac.MultiStepResult{}, opac.NewOpacError(opac.ReasonNotReservable, "this item cannot be reserved")
	}

	var stashed *goquery.Document
	if step.Action == opac.ActionBranch {
		if body, ok := a.session.Take(session.FlowReservationBranch); ok {
			doc, err := backend.ParseBody(body)
			if err != nil {
				return opac.MultiStepResult{}, err
			}
			stashed = doc
		}
	} else {
		a.session.Discard(session.FlowReservationBranch)
	}

	var result opac.MultiStepResult
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		doc := stashed
		if doc == nil {
			res, err := a.client.Get(ctx, opacPath+"/opac-reserve.pl", url.Values{"biblionumber": {item.ID}})
			if err != nil {
				return err
			}
			doc, err = backend.Document(res)
			if err != nil {
				return err
			}
			if doc.Find("#opac-auth").Length() > 0 {
				return opac.NewOpacError(opac.ReasonSessionExpired, "the session expired")
			}
			if alert := doc.Find(".alert"); alert.Length() > 0 {
				result = opac.Failed(htmlutil.Text(alert))
				return nil
			}
			if step.Action != opac.ActionBranch {
				if branches := pickupBranches(doc); len(branches) > 1 {
					a.session.Stash(session.FlowReservationBranch, res.Body())
					result = opac.NeedsSelection("Abholort", branches, opac.ActionBranch)
					return nil
				}
			}
		}

		branch := ""
		if step.Action == opac.ActionBranch {
			branches := pickupBranches(doc)
			found := false
			for _, b := range branches {
				found = found || b.Key == step.Selection
			}
			if !found {
				result = opac.Failed(fmt.Sprintf("%q is not a pickup branch of this library", step.Selection))
				return nil
			}
			branch = step.Selection
		}

		var err error
		result, err = a.placeReservation(ctx, doc, item.ID, branch)
		return err
	})
	if err != nil {
		a.tel.ReportWarning(report_api_reserve, err, a.lib.Ident, item.ID)
	}
	return result, err
}

func pickupBranches(doc *goquery.Document) []opac.Option {
	options := []opac.Option{}
	doc.Find("select[name=branch] option").Each(func(_ int, option *goquery.Selection) {
		key := option.AttrOr("value", "")
		if key == "" {
			return
		}
		options = append(options, opac.Option{Key: key, Label: htmlutil.Text(option)})
	})
	return options
}

func (a *API) placeReservation(ctx context.Context, doc *goquery.Document, id, branch string) (opac.MultiStepResult, error) {
	form := url.Values{
		"place_reserve":         {"1"},
		"biblionumbers":         {id + "/"},
		"selecteditems":         {id + "///"},
		"reserve_mode":          {"multi"},
		"single_bib":            {id},
		"expiration_date_" + id: {""},
		"reqtype_" + id:         {"any"},
		"checkitem_" + id:       {doc.Find("input[name=checkitem_" + id + "]").First().AttrOr("value", "")},
	}
	if branch != "" {
		form.Set("branch", branch)
	}

	placed, _, err := a.client.PostFormDocument(ctx, opacPath+"/opac-reserve.pl", form)
	if err != nil {
		return opac.MultiStepResult{}, err
	}
	if placed.Find("#opac-auth").Length() > 0 {
		return opac.MultiStepResult{}, opac.NewOpacError(opac.ReasonSessionExpired, "the session expired")
	}
	if placed.Find("input[type=hidden][name=biblionumber][value=\""+id+"\"]").Length() > 0 {
		return opac.OK(""), nil
	}
	if alert := placed.Find(".alert"); alert.Length() > 0 {
		return opac.Failed(htmlutil.Text(alert)), nil
	}
	return opac.Failed("the reservation was not placed"), nil
}

func (a *API) prolong(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	if reason, ok := strings.CutPrefix(token, notRenewable); ok {
		return opac.Failed(reason), nil
	}

	var result opac.MultiStepResult
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		user, err := a.userPage(ctx, "/opac-user.pl", nil)
		if err != nil {
			return err
		}
		borrower := user.Find("input[name=borrowernumber]").First().AttrOr("value", "")
		doc, err := a.userPage(ctx, "/opac-renew.pl", url.Values{
			"from":           {"opac_user"},
			"item":           {token},
			"borrowernumber": {borrower},
		})
		if err != nil {
			return err
		}
		label := doc.Find(".blabel").First()
		switch {
		case label.HasClass("label-success"):
			result = opac.OK("")
		case label.Length() > 0:
			result = opac.Failed(htmlutil.Text(label))
		default:
			result = opac.Failed("the loan was not renewed")
		}
		return nil
	})
	if err != nil {
		a.tel.ReportWarning(report_api_prolong, err, a.lib.Ident)
	}
	return result, err
}

// cancel takes the "biblionumber:reserve_id" token of a reservation.
func (a *API) cancel(ctx context.Context, token string, acc opac.Account, step opac.StepInput) (opac.MultiStepResult, error) {
	bib, reserveID, ok := strings.Cut(token, ":")
	if !ok || bib == "" || reserveID == "" {
		return opac.MultiStepResult{}, fmt.Errorf("koha: malformed cancel token %q", token)
	}

	var result opac.MultiStepResult
	err := a.session.WithAuthentication(ctx, acc, func(ctx context.Context) error {
		doc, _, err := a.client.PostFormDocument(ctx, opacPath+"/opac-modrequest.pl", url.Values{
			"biblionumber": {bib},
			"reserve_id":   {reserveID},
			"submit":       {""},
		})
		if err != nil {
			return err
		}
		if doc.Find("#opac-auth").Length() > 0 {
			return opac.NewOpacError(opac.ReasonSessionExpired, "the session expired")
		}
		if doc.Find("input[name=reserve_id][value=\""+reserveID+"\"]").Length() > 0 {
			result = opac.Failed("the reservation is still there")
			return nil
		}
		result = opac.OK("")
		return nil
	})
	if err != nil {
		a.tel.ReportWarning(report_api_cancel, err, a.lib.Ident)
	}
	return result, err
}
