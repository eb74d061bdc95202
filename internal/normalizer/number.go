package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// number is a numeric value as sent by the provider: a JSON number, a numeric string (optionally with a trailing %),
// or a marker for a missing value.
type number struct {
	value float64
	valid bool
}

var leadingNumber = regexp.MustCompile(`^[-+]?([0-9]+\.?[0-9]*|\.[0-9]+)`)

var absentMarkers = map[string]struct{}{
	"":    {},
	"NA":  {},
	"N/A": {},
	"--":  {},
}

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		text = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if _, ok := absentMarkers[strings.ToUpper(text)]; ok {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil && b[0] == '"' {
		// values with a unit, e.g. "112 ft"
		if prefix := leadingNumber.FindString(strings.TrimSpace(text)); prefix != "" {
			v, err = strconv.ParseFloat(prefix, 64)
		}
	}
	if err != nil {
		return fmt.Errorf("invalid number %s", string(b))
	}
	// the legacy API marks missing sensor values this way
	if v == -9999 || v == -999 {
		return nil
	}
	*n = number{value: v, valid: true}
	return nil
}

// ptr returns the value, or nil if absent.
func (n number) ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}

// or returns the value, or fallback if absent.
func (n number) or(fallback float64) float64 {
	if !n.valid {
		return fallback
	}
	return n.value
}

// numbers is a parallel array of numbers.
type numbers []number

// at returns the i-th value. Out of range values are absent.
func (n numbers) at(i int) number {
	if i < 0 || i >= len(n) {
		return number{}
	}
	return n[i]
}

// texts is a parallel array of optional strings.
type texts []*string

func (t texts) at(i int) string {
	if i < 0 || i >= len(t) || t[i] == nil {
		return ""
	}
	return *t[i]
}

func (t texts) null(i int) bool {
	return i < 0 || i >= len(t) || t[i] == nil
}

// maxOf returns the larger of two values, treating an absent value as 0.
func maxOf(a, b number) *float64 {
	if !a.valid && !b.valid {
		return nil
	}
	v := max(a.or(0), b.or(0))
	return &v
}

// minOf returns the smaller of two values, treating an absent value as 100.
func minOf(a, b number) *float64 {
	if !a.valid && !b.valid {
		return nil
	}
	v := min(a.or(100), b.or(100))
	return &v
}

// first returns a if present, otherwise b.
func first(a, b number) number {
	if a.valid {
		return a
	}
	return b
}
