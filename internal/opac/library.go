package opac

import (
	"fmt"
	"strconv"
	"strings"
)

type Geo struct {
	Lat float64
	Lon float64
}

// Library is one catalogue as loaded from configuration. Data is the opaque
// per-library blob that only the adapter named by API interprets.
type Library struct {
	Ident string
	City  string
	Title string
	API   string
	Group string
	Geo   *Geo
	Data  map[string]any
}

func (l Library) DisplayName() string {
	if l.Title == "" {
		return l.City
	}
	if l.City == "" {
		return l.Title
	}
	return fmt.Sprintf("%s (%s)", l.City, l.Title)
}

// DataString returns Data[key] as a string, numbers are formatted without
// exponent and anything else yields "".
func (l Library) DataString(key string) string {
	switch v := l.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// DataInt returns Data[key] as an int or def when it is absent or malformed.
func (l Library) DataInt(key string, def int) int {
	switch v := l.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func (l Library) DataFloat(key string, def float64) float64 {
	switch v := l.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return def
}

func (l Library) DataBool(key string) bool {
	switch v := l.Data[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// DataStringMap returns a fresh copy of the object stored at Data[key] with
// every value converted to a string, non-object values yield nil.
func (l Library) DataStringMap(key string) map[string]string {
	raw, ok := l.Data[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	nested := Library{Data: raw}
	for k := range raw {
		out[k] = nested.DataString(k)
	}
	return out
}

// Account is a set of credentials for one library, it is only ever read here.
type Account struct {
	ID       string
	Library  string
	Name     string
	Password string
	Label    string
}

// Configured is false when the account has no credentials entered yet.
func (a Account) Configured() bool {
	return a.Name != "" && a.Password != ""
}
