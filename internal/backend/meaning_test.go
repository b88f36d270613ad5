package backend

import (
	"testing"
	"opacbridge/internal/opac"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestInferMeaning(t *testing.T) {
	testCases := []struct {
		field    opac.SearchField
		expected opac.Meaning
	}{
		{field: opac.NewTextField("title", "Titel"), expected: opac.MeaningTitle},
		{field: opac.NewTextField("1", "Verfasser"), expected: opac.MeaningAuthor},
		{field: opac.NewTextField("-1", "Freie Suche"), expected: opac.MeaningFree},
		{field: opac.NewTextField("540", "ISBN/ISSN"), expected: opac.MeaningISBN},
		{field: opac.NewTextField("425", "Erscheinungsjahr"), expected: opac.MeaningYear},
		{field: opac.NewDropdownField("branch", "Zweigstelle", nil), expected: opac.MeaningBranch},
		{field: opac.NewDropdownField("home", "Heimatbibliothek", nil), expected: opac.MeaningHomeBranch},
		{field: opac.NewDropdownField("mt", "Medienart", nil), expected: opac.MeaningCategory},
		{field: opac.NewTextField("sprache", "Sprache"), expected: opac.MeaningNone},
		// misspelled
		{field: opac.NewTextField("x", "Verfaser"), expected: opac.MeaningAuthor},
		// the display name is ambiguous, the id decides
		{field: opac.NewTextField("ti", "Titel/Autor"), expected: opac.MeaningNone},
		{field: opac.NewTextField("title", "Titel/Autor"), expected: opac.MeaningTitle},
		{
			field: opac.SearchField{
				Type:        opac.FieldText,
				ID:          "q",
				DisplayName: "Suche",
				Data:        map[string]any{"meaning": "AUTHOR"},
			},
			expected: opac.MeaningAuthor,
		},
		{
			field: opac.SearchField{
				Type:        opac.FieldText,
				ID:          "q",
				DisplayName: "Titel",
				Meaning:     opac.MeaningKeyword,
			},
			expected: opac.MeaningKeyword,
		},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, InferMeaning(tc.field), "%s / %s", tc.field.ID, tc.field.DisplayName)
	}
}

func TestSortByMeaning(t *testing.T) {
	fields := AssignMeanings([]opac.SearchField{
		opac.NewTextField("lang", "Sprache"),
		opac.NewTextField("au", "Autor"),
		opac.NewTextField("misc", "Sonstiges"),
		opac.NewTextField("ti", "Titel"),
		opac.NewTextField("free", "Freie Suche"),
		opac.NewTextField("ill", "Illustrator"),
	})
	sorted := SortByMeaning(fields)

	var ids []string
	for _, f := range sorted {
		ids = append(ids, f.ID)
	}
	require.Equal(t, []string{"free", "ti", "au", "lang", "misc", "ill"}, ids)
	require.Equal(t, "lang", fields[0].ID)
}

func TestSortByMeaningStable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		meanings := rapid.SliceOf(rapid.IntRange(0, len(opac.Meanings()))).Draw(t, "meanings")

		fields := make([]opac.SearchField, len(meanings))
		for i, m := range meanings {
			fields[i] = opac.SearchField{ID: string(rune('a' + i%26)), Meaning: opac.Meaning(m), Data: map[string]any{"i": i}}
		}
		sorted := SortByMeaning(fields)
		if len(sorted) != len(fields) {
			t.Fatalf("sorted %d fields into %d", len(fields), len(sorted))
		}

		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if prev.Meaning == opac.MeaningNone && cur.Meaning != opac.MeaningNone {
				t.Fatalf("unclassified field sorted before %s", cur.Meaning)
			}
			if prev.Meaning == cur.Meaning && prev.Data["i"].(int) > cur.Data["i"].(int) {
				t.Fatalf("fields with meaning %s lost their relative order", cur.Meaning)
			}
			if prev.Meaning != opac.MeaningNone && cur.Meaning != opac.MeaningNone && prev.Meaning > cur.Meaning {
				t.Fatalf("%s sorted before %s", prev.Meaning, cur.Meaning)
			}
		}
	})
}
