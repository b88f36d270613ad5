package opac

import (
	"encoding/json"
	"fmt"
	"strings"
)

type FieldType int

const (
	FieldText FieldType = iota
	FieldBarcode
	FieldCheckbox
	FieldDropdown
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldBarcode:
		return "barcode"
	case FieldCheckbox:
		return "checkbox"
	case FieldDropdown:
		return "dropdown"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

func parseFieldType(s string) (FieldType, error) {
	switch s {
	case "text":
		return FieldText, nil
	case "barcode":
		return FieldBarcode, nil
	case "checkbox":
		return FieldCheckbox, nil
	case "dropdown":
		return FieldDropdown, nil
	}
	return 0, fmt.Errorf("unknown search field type %q", s)
}

// Option is a (key, label) pair, used both for dropdown values and for the
// choices offered by a workflow step.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"value"`
}

// SearchField is one input of a library's search form. Type selects which of
// the variant specific attributes are meaningful: Hint, FreeSearch, Number and
// HalfWidth for text fields, Options for dropdowns.
type SearchField struct {
	Type        FieldType
	ID          string
	DisplayName string
	Advanced    bool
	Visible     bool
	Meaning     Meaning
	Data        map[string]any

	Hint       string
	FreeSearch bool
	Number     bool
	HalfWidth  bool

	Options []Option
}

func NewTextField(id, displayName string) SearchField {
	return SearchField{Type: FieldText, ID: id, DisplayName: displayName, Visible: true}
}

func NewBarcodeField(id, displayName string) SearchField {
	return SearchField{Type: FieldBarcode, ID: id, DisplayName: displayName, Visible: true}
}

func NewCheckboxField(id, displayName string) SearchField {
	return SearchField{Type: FieldCheckbox, ID: id, DisplayName: displayName, Visible: true}
}

func NewDropdownField(id, displayName string, options []Option) SearchField {
	return SearchField{Type: FieldDropdown, ID: id, DisplayName: displayName, Visible: true, Options: options}
}

// DataString returns Data[key] when it is a string.
func (f SearchField) DataString(key string) string {
	s, _ := f.Data[key].(string)
	return s
}

type searchFieldJSON struct {
	Type        string         `json:"type"`
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Advanced    bool           `json:"advanced"`
	Visible     bool           `json:"visible"`
	Meaning     *string        `json:"meaning"`
	Data        map[string]any `json:"data,omitempty"`

	Hint       string `json:"hint,omitempty"`
	FreeSearch bool   `json:"freeSearch,omitempty"`
	Number     bool   `json:"number,omitempty"`
	HalfWidth  bool   `json:"halfWidth,omitempty"`

	DropdownValues []Option `json:"dropdownValues,omitempty"`
}

func (f SearchField) MarshalJSON() ([]byte, error) {
	out := searchFieldJSON{
		Type:        f.Type.String(),
		ID:          f.ID,
		DisplayName: f.DisplayName,
		Advanced:    f.Advanced,
		Visible:     f.Visible,
		Data:        f.Data,
	}
	if f.Meaning != MeaningNone {
		meaning := f.Meaning.String()
		out.Meaning = &meaning
	}
	switch f.Type {
	case FieldText:
		out.Hint = f.Hint
		out.FreeSearch = f.FreeSearch
		out.Number = f.Number
		out.HalfWidth = f.HalfWidth
	case FieldDropdown:
		out.DropdownValues = f.Options
		if out.DropdownValues == nil {
			out.DropdownValues = []Option{}
		}
	case FieldBarcode, FieldCheckbox:
	default:
		return nil, fmt.Errorf("marshal search field %s: unknown type %d", f.ID, f.Type)
	}
	return json.Marshal(out)
}

func (f *SearchField) UnmarshalJSON(b []byte) error {
	var in searchFieldJSON
	err := json.Unmarshal(b, &in)
	if err != nil {
		return err
	}
	fieldType, err := parseFieldType(in.Type)
	if err != nil {
		return err
	}
	meaning := MeaningNone
	if in.Meaning != nil {
		meaning, err = ParseMeaning(*in.Meaning)
		if err != nil {
			return fmt.Errorf("search field %s: %w", in.ID, err)
		}
	}

	*f = SearchField{
		Type:        fieldType,
		ID:          in.ID,
		DisplayName: in.DisplayName,
		Advanced:    in.Advanced,
		Visible:     in.Visible,
		Meaning:     meaning,
		Data:        in.Data,
	}
	switch fieldType {
	case FieldText:
		f.Hint = in.Hint
		f.FreeSearch = in.FreeSearch
		f.Number = in.Number
		f.HalfWidth = in.HalfWidth
	case FieldDropdown:
		f.Options = in.DropdownValues
	}
	return nil
}

// ValidateFieldSet checks that ids are unique within one field set.
func ValidateFieldSet(fields []SearchField) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.ID]; ok {
			return fmt.Errorf("duplicate search field id %q", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// SearchQuery is one (field, value) pair of a search request.
type SearchQuery struct {
	Field SearchField
	Value string
}

// Effective returns the entries of query with a non-blank value, in order.
// Checkbox entries only count when they are checked.
func Effective(query []SearchQuery) []SearchQuery {
	var out []SearchQuery
	for _, q := range query {
		value := strings.TrimSpace(q.Value)
		if value == "" {
			continue
		}
		if q.Field.Type == FieldCheckbox && (value == "false" || value == "0") {
			continue
		}
		out = append(out, q)
	}
	return out
}
