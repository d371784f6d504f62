package playlist

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration is an item's display time in seconds.
//
// Documents written by different admin tools carry it as a number, a
// numeric string, null, or not at all. Anything that is not a number is
// decoded as unset rather than failing the whole playlist.
type Duration struct {
	Seconds float64
	Set     bool
}

// Seconds returns a set Duration of n seconds.
func Seconds(n float64) Duration {
	return Duration{Seconds: n, Set: true}
}

// Valid reports whether d is set to a finite, positive number of seconds.
func (d Duration) Valid() bool {
	return d.Set && d.Seconds > 0 && !math.IsInf(d.Seconds, 0) && !math.IsNaN(d.Seconds)
}

// MarshalJSON writes the number of seconds, or null when unset.
func (d Duration) MarshalJSON() ([]byte, error) {
	if !d.Set || math.IsInf(d.Seconds, 0) || math.IsNaN(d.Seconds) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(d.Seconds, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number, a numeric string or null.
func (d *Duration) UnmarshalJSON(data []byte) error {
	*d = Duration{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // Undecodable string means unset
		}
		d.parse(s)
		return nil
	}

	d.parse(string(data))
	return nil
}

// MarshalYAML writes the number of seconds, or null when unset.
func (d Duration) MarshalYAML() (any, error) {
	if !d.Set || math.IsInf(d.Seconds, 0) || math.IsNaN(d.Seconds) {
		return nil, nil
	}
	return d.Seconds, nil
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	*d = Duration{}
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return nil
	}
	d.parse(node.Value)
	return nil
}

func (d *Duration) parse(s string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return
	}
	d.Seconds, d.Set = v, true
}
