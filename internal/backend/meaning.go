package backend

import (
	"sort"
	"opacbridge/internal/opac"
	"opacbridge/pkg/textutil"

	"github.com/antzucaro/matchr"
)

// keywords are normalized (lowercase, no whitespace), a label matches a
// meaning when it contains one of its keywords.
var meaningKeywords = map[opac.Meaning][]string{
	opac.MeaningFree:       {"free", "freitext", "freiesuche", "allefelder", "alles", "quick", "schnellsuche"},
	opac.MeaningTitle:      {"title", "titel"},
	opac.MeaningAuthor:     {"author", "autor", "verfasser", "person", "creator", "urheber"},
	opac.MeaningDigital:    {"digital", "ebook", "e-book", "online", "onleihe"},
	opac.MeaningAvailable:  {"available", "verfügbar", "ausleihbar", "nurverfügbare"},
	opac.MeaningISBN:       {"isbn", "issn"},
	opac.MeaningBarcode:    {"barcode", "mediennummer", "mediennr", "exemplarnummer"},
	opac.MeaningYear:       {"year", "jahr", "erscheinungsjahr"},
	opac.MeaningBranch:     {"branch", "zweigstelle", "bibliothek", "filiale"},
	opac.MeaningHomeBranch: {"homebranch", "heimatbibliothek", "heimatzweigstelle"},
	opac.MeaningCategory:   {"category", "kategorie", "medienart", "medientyp", "mediengruppe", "format"},
	opac.MeaningPublisher:  {"publisher", "verlag"},
	opac.MeaningKeyword:    {"keyword", "schlagwort", "subject", "stichwort"},
	opac.MeaningSystem:     {"systematik", "classification", "notation"},
	opac.MeaningAudience:   {"audience", "interessenkreis", "zielgruppe"},
	opac.MeaningLocation:   {"location", "standort"},
	opac.MeaningOrder:      {"order", "sort", "sortierung", "sortieren"},
}

const (
	fuzzyMinKeyword = 5
	fuzzyThreshold  = 0.93
)

// InferMeaning classifies a search field by its label. A "meaning" entry in
// the field's data takes precedence over the display name, the id is only
// looked at when nothing else matched. Fields that already carry a meaning
// keep it.
func InferMeaning(field opac.SearchField) opac.Meaning {
	if field.Meaning != opac.MeaningNone {
		return field.Meaning
	}

	if hint := field.DataString("meaning"); hint != "" {
		parsed, err := opac.ParseMeaning(hint)
		if err == nil && parsed != opac.MeaningNone {
			return parsed
		}
		return matchMeaning(hint)
	}

	for _, label := range []string{field.DisplayName, field.ID} {
		if label == "" {
			continue
		}
		meaning := matchMeaning(label)
		if meaning != opac.MeaningNone {
			return meaning
		}
	}
	return opac.MeaningNone
}

// matchMeaning picks the meaning with the longest contained keyword, a tie
// between two meanings is ambiguous and yields MeaningNone.
func matchMeaning(label string) opac.Meaning {
	name := textutil.NormalizeName(label)
	if name == "" {
		return opac.MeaningNone
	}

	best := opac.MeaningNone
	bestLen := 0
	ambiguous := false
	for _, meaning := range opac.Meanings() {
		match := textutil.LongestMatch(name, meaningKeywords[meaning])
		switch {
		case len(match) > bestLen:
			best = meaning
			bestLen = len(match)
			ambiguous = false
		case len(match) == bestLen && bestLen > 0 && meaning != best:
			ambiguous = true
		}
	}
	if ambiguous {
		return opac.MeaningNone
	}
	if best != opac.MeaningNone {
		return best
	}

	return fuzzyMeaning(textutil.StripPunctuation(name))
}

func fuzzyMeaning(name string) opac.Meaning {
	best := opac.MeaningNone
	bestSim := fuzzyThreshold
	for _, meaning := range opac.Meanings() {
		for _, keyword := range meaningKeywords[meaning] {
			if len(keyword) < fuzzyMinKeyword {
				continue
			}
			sim := matchr.JaroWinkler(name, keyword, false)
			if sim >= bestSim {
				best = meaning
				bestSim = sim
			}
		}
	}
	return best
}

// AssignMeanings returns a copy of fields with every meaning inferred.
func AssignMeanings(fields []opac.SearchField) []opac.SearchField {
	out := make([]opac.SearchField, len(fields))
	for i, f := range fields {
		f.Meaning = InferMeaning(f)
		out[i] = f
	}
	return out
}

// SortByMeaning returns a copy of fields ordered by meaning, fields without a
// meaning come last. The sort is stable so fields sharing a meaning (or
// lacking one) keep their original relative order.
func SortByMeaning(fields []opac.SearchField) []opac.SearchField {
	out := make([]opac.SearchField, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Meaning, out[j].Meaning
		if a == opac.MeaningNone || b == opac.MeaningNone {
			return a != opac.MeaningNone && b == opac.MeaningNone
		}
		return a < b
	})
	return out
}
