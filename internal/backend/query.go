package backend

import (
	"opacbridge/internal/opac"
)

// QueryRules describe what a site accepts as a search.
type QueryRules struct {
	// Max is the most criteria a search may have, 0 means unlimited.
	Max int
	// Counted decides which criteria count against Max, nil counts all.
	Counted func(field opac.SearchField) bool
}

// CountTextFields counts only free-text and barcode criteria, dropdowns and
// checkboxes narrow a search without using up a criterion slot.
func CountTextFields(field opac.SearchField) bool {
	return field.Type == opac.FieldText || field.Type == opac.FieldBarcode
}

// ValidateQuery returns the effective entries of query. It must be called
// before any request is made for a search.
func ValidateQuery(query []opac.SearchQuery, rules QueryRules) ([]opac.SearchQuery, error) {
	effective := opac.Effective(query)
	if len(effective) == 0 {
		return nil, opac.NewOpacError(opac.ReasonNoCriteria, "no search criteria given")
	}
	if rules.Max <= 0 {
		return effective, nil
	}

	counted := 0
	for _, q := range effective {
		if rules.Counted == nil || rules.Counted(q.Field) {
			counted++
		}
	}
	if counted > rules.Max {
		return nil, opac.TooManyCriteria(rules.Max)
	}
	return effective, nil
}
