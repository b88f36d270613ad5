package backend

import (
	"strings"
	"opacbridge/internal/opac"
)

// checked in this order, the red list holds the negated forms of the green
// one so "nicht ausleihbar" never reads as available.
var (
	redStatusWords = []string{
		"nicht ausleihbar",
		"nicht verfügbar",
		"nicht bestellbar",
		"vormerkung ist leider nicht möglich",
		"not available",
		"unavailable",
		"verloren",
		"vermisst",
		"lost",
		"missing",
		"withdrawn",
	}
	yellowStatusWords = []string{
		"entliehen",
		"ausgeliehen",
		"verliehen",
		"vorgemerkt",
		"in bearbeitung",
		"unterwegs",
		"im transport",
		"anderen zweigstelle",
		"checked out",
		"on loan",
		"in transit",
		"on hold",
		"reserved",
		"due ",
	}
	greenStatusWords = []string{
		"verfügbar",
		"ausleihbar",
		"bestellbar",
		"vormerkbar",
		"im regal",
		"am standort",
		"available",
		"on shelf",
	}
)

// StatusFromText reads the traffic light off a site's free-text status.
func StatusFromText(text string) opac.LoanStatus {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return opac.StatusUnknown
	}
	for _, w := range redStatusWords {
		if strings.Contains(text, w) {
			return opac.StatusRed
		}
	}
	for _, w := range yellowStatusWords {
		if strings.Contains(text, w) {
			return opac.StatusYellow
		}
	}
	for _, w := range greenStatusWords {
		if strings.Contains(text, w) {
			return opac.StatusGreen
		}
	}
	return opac.StatusUnknown
}

// AggregateStatus combines the status of several copies. Only available
// copies are green, available next to unavailable or contended copies is
// yellow, and only unavailable copies are red.
func AggregateStatus(statuses []opac.LoanStatus) opac.LoanStatus {
	var green, yellow, red int
	for _, s := range statuses {
		switch s {
		case opac.StatusGreen:
			green++
		case opac.StatusYellow:
			yellow++
		case opac.StatusRed:
			red++
		}
	}
	switch {
	case green > 0 && yellow == 0 && red == 0:
		return opac.StatusGreen
	case green > 0 || yellow > 0:
		return opac.StatusYellow
	case red > 0:
		return opac.StatusRed
	}
	return opac.StatusUnknown
}

// CopiesStatus is AggregateStatus over the status text of every copy.
func CopiesStatus(copies []opac.Copy) opac.LoanStatus {
	statuses := make([]opac.LoanStatus, 0, len(copies))
	for _, c := range copies {
		statuses = append(statuses, StatusFromText(c.Get(opac.CopyStatus)))
	}
	return AggregateStatus(statuses)
}
