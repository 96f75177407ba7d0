package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/paulmach/osm"
)

// ErrInvalidText is returned when a tag key or value is not valid UTF-8
var ErrInvalidText = errors.New("invalid UTF-8 text")

// Normalize converts element tags into a mapping. Elements without tags
// yield nil so the column is stored as NULL. Duplicate keys keep the last value.
func Normalize(tags osm.Tags) (map[string]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		if !utf8.ValidString(tag.Key) {
			return nil, fmt.Errorf("%w in tag key %q", ErrInvalidText, tag.Key)
		}
		if !utf8.ValidString(tag.Value) {
			return nil, fmt.Errorf("%w in value of tag %q", ErrInvalidText, tag.Key)
		}
		m[tag.Key] = tag.Value
	}
	return m, nil
}

// Marshal encodes a tag mapping as a JSON object, or nil for a nil mapping
func Marshal(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Encode normalizes and marshals tags in one step
func Encode(tags osm.Tags) ([]byte, error) {
	m, err := Normalize(tags)
	if err != nil {
		return nil, err
	}
	return Marshal(m)
}
