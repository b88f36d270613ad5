package opac

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSearchFieldJSON(t *testing.T) {
	fields := []SearchField{
		{
			Type:        FieldText,
			ID:          "-1",
			DisplayName: "Freie Suche",
			Visible:     true,
			Meaning:     MeaningFree,
			FreeSearch:  true,
			Hint:        "Suchbegriff",
		},
		NewDropdownField("branch", "Zweigstelle", []Option{
			{Key: "", Label: "Alle"},
			{Key: "3", Label: "Stadtbibliothek"},
		}),
		NewCheckboxField("avail", "Nur verfügbare"),
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}

	var raw []map[string]any
	err = json.Unmarshal(encoded, &raw)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "text", raw[0]["type"])
	require.Equal(t, "FREE", raw[0]["meaning"])
	require.Equal(t, "dropdown", raw[1]["type"])
	require.Nil(t, raw[1]["meaning"])
	require.Len(t, raw[1]["dropdownValues"], 2)
	require.NotContains(t, raw[2], "hint")

	var decoded []SearchField
	err = json.Unmarshal(encoded, &decoded)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fields, decoded); diff != "" {
		t.Fatalf("decoded fields differ (-want +got):\n%s", diff)
	}
}

func TestSearchFieldUnknownType(t *testing.T) {
	var field SearchField
	err := json.Unmarshal([]byte(`{"type":"slider","id":"x"}`), &field)
	require.ErrorContains(t, err, "slider")

	err = json.Unmarshal([]byte(`{"type":"text","id":"x","meaning":"COLOR"}`), &field)
	require.Error(t, err)
}

func TestValidateFieldSet(t *testing.T) {
	require.NoError(t, ValidateFieldSet([]SearchField{
		NewTextField("a", "A"),
		NewTextField("b", "B"),
	}))
	require.Error(t, ValidateFieldSet([]SearchField{
		NewTextField("a", "A"),
		NewBarcodeField("a", "Barcode"),
	}))
}

func TestEffective(t *testing.T) {
	title := NewTextField("title", "Titel")
	avail := NewCheckboxField("avail", "Verfügbar")

	query := []SearchQuery{
		{Field: title, Value: "  "},
		{Field: avail, Value: "false"},
		{Field: title, Value: "Momo"},
		{Field: avail, Value: "true"},
	}
	effective := Effective(query)
	require.Equal(t, []SearchQuery{query[2], query[3]}, effective)
	require.Empty(t, Effective(nil))
}

func TestVolumeQuery(t *testing.T) {
	ref := VolumeRef{
		ID:     "AK123",
		Title:  "Gesamtwerk",
		Params: map[string]string{"methodToCall": "volumeSearch", "catKey": "99"},
	}
	query := VolumeQuery(ref)
	require.Len(t, Effective(query), 1)

	params, ok := VolumeParams(query)
	require.True(t, ok)
	require.Equal(t, "volumeSearch", params.Get("methodToCall"))
	require.Equal(t, "99", params.Get("catKey"))
	require.Equal(t, "AK123", params.Get("id"))

	_, ok = VolumeParams([]SearchQuery{{Field: NewTextField("title", "Titel"), Value: "x"}})
	require.False(t, ok)
}
