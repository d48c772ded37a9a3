package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// refreshTimeKey is the only response field the agent interprets. Other
// casings ("RefreshTime") are accepted when the exact key is absent.
const refreshTimeKey = "refreshTime"

// Directive is the instruction set returned by the collection endpoint.
type Directive struct {
	// RefreshTimeSeconds is nil when the endpoint did not send a usable value.
	RefreshTimeSeconds *int

	// Extra holds every other response field, undecoded.
	Extra map[string]json.RawMessage
}

// HasRefreshTime reports whether a positive refresh time was supplied.
func (d Directive) HasRefreshTime() bool {
	return d.RefreshTimeSeconds != nil && *d.RefreshTimeSeconds > 0
}

// DecodeDirective parses an endpoint response body.
//
// Only a body that is not valid JSON is an error. An empty body, a non-object
// document, or a refreshTime that is absent, null, non-numeric or not an
// integer all decode to a Directive without a refresh time.
func DecodeDirective(body []byte) (Directive, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Directive{}, nil
	}
	if !json.Valid(body) {
		return Directive{}, fmt.Errorf("response is not valid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		// Valid JSON but not an object (array, string, null...).
		return Directive{}, nil
	}

	var d Directive
	if key, ok := lookupKey(fields, refreshTimeKey); ok {
		d.RefreshTimeSeconds = parseSeconds(fields[key])
		delete(fields, key)
	}
	if len(fields) > 0 {
		d.Extra = fields
	}
	return d, nil
}

// lookupKey finds name in fields, preferring an exact match over a
// case-insensitive one.
func lookupKey(fields map[string]json.RawMessage, name string) (string, bool) {
	if _, ok := fields[name]; ok {
		return name, true
	}
	for k := range fields {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// parseSeconds accepts JSON numbers with an integral value. Quoted numbers
// are a type mismatch and are ignored.
func parseSeconds(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return nil
	}
	n := json.Number(raw)
	if i, err := n.Int64(); err == nil {
		return toInt(float64(i), i)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return nil
	}
	return toInt(f, int64(f))
}

func toInt(f float64, i int64) *int {
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	v := int(i)
	return &v
}
