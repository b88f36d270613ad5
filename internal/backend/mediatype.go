package backend

import (
	"path"
	"strings"
	"opacbridge/internal/opac"
)

// Classifier maps a site's icon file name or media code to a MediaType.
// Overrides come from the library configuration and are tried first, then
// the adapter's Defaults. Neither table is modified after construction.
type Classifier struct {
	overrides map[string]opac.MediaType
	defaults  map[string]opac.MediaType
}

// NewClassifier copies both tables, keys of defaults are normalized.
func NewClassifier(overrides, defaults map[string]opac.MediaType) Classifier {
	c := Classifier{
		overrides: make(map[string]opac.MediaType, len(overrides)),
		defaults:  make(map[string]opac.MediaType, len(defaults)),
	}
	for k, v := range overrides {
		c.overrides[k] = v
	}
	for k, v := range defaults {
		c.defaults[NormalizeMediaKey(k)] = v
	}
	return c
}

// OverridesFromConfig converts the `mediatypes` object of a library's data
// blob, entries naming an unknown media type are returned in invalid.
func OverridesFromConfig(raw map[string]string) (overrides map[string]opac.MediaType, invalid []string) {
	overrides = make(map[string]opac.MediaType, len(raw))
	for k, v := range raw {
		mediaType, err := opac.ParseMediaType(v)
		if err != nil {
			invalid = append(invalid, k)
			continue
		}
		overrides[k] = mediaType
	}
	return overrides, invalid
}

var imageExtensions = []string{".jpg", ".jpeg", ".gif", ".png", ".svg"}

// NormalizeMediaKey lowercases key, drops any directory and strips an image
// extension, "/img/20_DVD_Video.GIF" becomes "20_dvd_video".
func NormalizeMediaKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	key = path.Base(key)
	if key == "." || key == "/" {
		return ""
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(key, ext) {
			return strings.TrimSuffix(key, ext)
		}
	}
	return key
}

// numericPrefix returns the leading digits of key, "20_dvd_video" gives "20".
func numericPrefix(key string) string {
	end := 0
	for end < len(key) && key[end] >= '0' && key[end] <= '9' {
		end++
	}
	return key[:end]
}

// Classify never fails, unknown keys are opac.MediaUnknown.
func (c Classifier) Classify(key string) opac.MediaType {
	if t, ok := c.overrides[key]; ok {
		return t
	}

	normalized := NormalizeMediaKey(key)
	if normalized == "" {
		return opac.MediaUnknown
	}
	if t, ok := c.overrides[normalized]; ok {
		return t
	}
	if t, ok := c.defaults[normalized]; ok {
		return t
	}

	prefix := numericPrefix(normalized)
	if prefix != "" && prefix != normalized {
		if t, ok := c.overrides[prefix]; ok {
			return t
		}
		if t, ok := c.defaults[prefix]; ok {
			return t
		}
	}
	return opac.MediaUnknown
}
