// Package keys canonicalizes request keys to int64 and flattens request
// values to the string form the store holds.
package keys

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"kvstore-api/internal/apperrors"
)

// ErrMissing is returned for absent or null JSON fields.
var ErrMissing = apperrors.New(apperrors.CodeValidation, "missing key or value")

// Parse canonicalizes a key given as text, e.g. a path segment. "7", "07"
// and "+7" all become 7.
func Parse(s string) (int64, error) {
	if s == "" {
		return 0, apperrors.New(apperrors.CodeValidation, "empty key")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeValidation, "invalid key (expected integer)", err)
	}
	return n, nil
}

// ParseJSON canonicalizes a key given as a JSON value. Integers are taken as
// is, strings go through Parse and fractional numbers are truncated toward
// zero.
func ParseJSON(raw json.RawMessage) (int64, error) {
	v, err := decode(raw)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, apperrors.New(apperrors.CodeValidation, "invalid key (out of range)")
		}
		return int64(f), nil
	case string:
		return Parse(t)
	default:
		return 0, apperrors.New(apperrors.CodeValidation, "invalid key (expected integer)")
	}
}

// StringifyValue flattens a JSON value to the string that is stored.
// Strings are stored verbatim, numbers in decimal, and booleans, objects and
// arrays as compact JSON text.
func StringifyValue(raw json.RawMessage) (string, error) {
	v, err := decode(raw)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return formatNumber(t), nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", apperrors.Wrap(apperrors.CodeValidation, "invalid value", err)
		}
		return buf.String(), nil
	}
}

func formatNumber(n json.Number) string {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return strconv.FormatUint(u, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}

func decode(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrMissing
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid JSON", err)
	}
	if v == nil {
		return nil, ErrMissing
	}
	return v, nil
}
