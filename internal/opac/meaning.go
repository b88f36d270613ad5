package opac

import (
	"fmt"
	"strings"
)

// Meaning is the canonical semantic tag of a search field. The order of the
// constants is the order fields are presented in, MeaningNone means the
// field could not be classified.
type Meaning int

const (
	MeaningNone Meaning = iota
	MeaningFree
	MeaningTitle
	MeaningAuthor
	MeaningDigital
	MeaningAvailable
	MeaningISBN
	MeaningBarcode
	MeaningYear
	MeaningBranch
	MeaningHomeBranch
	MeaningCategory
	MeaningPublisher
	MeaningKeyword
	MeaningSystem
	MeaningAudience
	MeaningLocation
	MeaningOrder
)

var meaningNames = []string{
	MeaningNone:       "",
	MeaningFree:       "FREE",
	MeaningTitle:      "TITLE",
	MeaningAuthor:     "AUTHOR",
	MeaningDigital:    "DIGITAL",
	MeaningAvailable:  "AVAILABLE",
	MeaningISBN:       "ISBN",
	MeaningBarcode:    "BARCODE",
	MeaningYear:       "YEAR",
	MeaningBranch:     "BRANCH",
	MeaningHomeBranch: "HOME_BRANCH",
	MeaningCategory:   "CATEGORY",
	MeaningPublisher:  "PUBLISHER",
	MeaningKeyword:    "KEYWORD",
	MeaningSystem:     "SYSTEM",
	MeaningAudience:   "AUDIENCE",
	MeaningLocation:   "LOCATION",
	MeaningOrder:      "ORDER",
}

// Meanings lists every classifiable meaning in presentation order.
func Meanings() []Meaning {
	out := make([]Meaning, 0, len(meaningNames)-1)
	for m := MeaningFree; int(m) < len(meaningNames); m++ {
		out = append(out, m)
	}
	return out
}

func (m Meaning) String() string {
	if m < 0 || int(m) >= len(meaningNames) {
		return fmt.Sprintf("Meaning(%d)", int(m))
	}
	return meaningNames[m]
}

func ParseMeaning(s string) (Meaning, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "NONE" || s == "NULL" {
		return MeaningNone, nil
	}
	for i, name := range meaningNames {
		if name != "" && name == s {
			return Meaning(i), nil
		}
	}
	return MeaningNone, fmt.Errorf("unknown meaning %q", s)
}

func (m Meaning) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Meaning) UnmarshalText(b []byte) error {
	parsed, err := ParseMeaning(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
