package opac

import (
	"net/url"
	"sort"
	"strconv"
)

// SearchResult is a single hit. Position is 1-based and stable within the
// result set it came from, ID is empty when the site exposes no permalink.
type SearchResult struct {
	Position    int
	Page        int
	Type        MediaType
	ID          string
	Status      LoanStatus
	Description string
	Cover       string
}

// SearchRequestResult is one page of a search. Total is -1 when the site
// does not say how many hits there are.
type SearchRequestResult struct {
	Results  []SearchResult
	Total    int
	Page     int
	PageSize int
}

func (r SearchRequestResult) TotalKnown() bool {
	return r.Total >= 0
}

// ItemRef addresses a detailed item either by its opaque id or by its 1-based
// position in the last result set, the id wins when both are set.
type ItemRef struct {
	ID       string
	Position int
}

func ByID(id string) ItemRef {
	return ItemRef{ID: id}
}

func ByPosition(position int) ItemRef {
	return ItemRef{Position: position}
}

func (r ItemRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return "#" + strconv.Itoa(r.Position)
}

// VolumeRef points from one volume of a multi-volume work to a search that
// lists all of its volumes. Params are adapter specific.
type VolumeRef struct {
	ID     string
	Title  string
	Params map[string]string
}

// VolumeFieldID is the id of the synthetic field VolumeQuery puts in a query.
const VolumeFieldID = "_volume"

// VolumeQuery turns a volume reference into a query any adapter that produced
// it can search with.
func VolumeQuery(ref VolumeRef) []SearchQuery {
	values := url.Values{}
	keys := make([]string, 0, len(ref.Params))
	for k := range ref.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, ref.Params[k])
	}
	if ref.ID != "" {
		values.Set("id", ref.ID)
	}
	return []SearchQuery{{
		Field: SearchField{
			Type:        FieldText,
			ID:          VolumeFieldID,
			DisplayName: ref.Title,
		},
		Value: values.Encode(),
	}}
}

// VolumeParams extracts the parameters of a volume query, ok is false if the
// query was not built by VolumeQuery.
func VolumeParams(query []SearchQuery) (url.Values, bool) {
	if len(query) != 1 || query[0].Field.ID != VolumeFieldID {
		return nil, false
	}
	values, err := url.ParseQuery(query[0].Value)
	if err != nil {
		return nil, false
	}
	return values, true
}
