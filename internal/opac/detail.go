package opac

// Detail is a (label, value) pair, used for item details and for the
// summary shown when a workflow asks for confirmation.
type Detail struct {
	Label string
	Value string
}

type CopyKey string

const (
	CopyBranch       CopyKey = "branch"
	CopyDepartment   CopyKey = "department"
	CopyLocation     CopyKey = "location"
	CopyShelfmark    CopyKey = "shelfmark"
	CopyStatus       CopyKey = "status"
	CopyReturnDate   CopyKey = "returndate"
	CopyReservations CopyKey = "reservations"
	CopyBarcode      CopyKey = "barcode"
	CopyURL          CopyKey = "url"
)

// Copy holds whatever a site tells about one physical copy, keys are only
// present when the site exposes them.
type Copy map[CopyKey]string

func (c Copy) Get(key CopyKey) string {
	return c[key]
}

// Set stores value under key unless it is empty.
func (c Copy) Set(key CopyKey, value string) {
	if value == "" {
		return
	}
	c[key] = value
}

type DetailedItem struct {
	ID      string
	Title   string
	Type    MediaType
	Cover   string
	Details []Detail
	Copies  []Copy

	Reservable       bool
	ReservationToken string

	Bookable     bool
	BookingToken string

	// Volume is set when the item is one part of a multi-volume work.
	Volume *VolumeRef
}

// AddDetail appends a detail, empty values are dropped.
func (d *DetailedItem) AddDetail(label, value string) {
	if value == "" {
		return
	}
	d.Details = append(d.Details, Detail{Label: label, Value: value})
}

func (d DetailedItem) Detail(label string) (string, bool) {
	for _, detail := range d.Details {
		if detail.Label == label {
			return detail.Value, true
		}
	}
	return "", false
}
