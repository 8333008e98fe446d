// Package bookingcode parses and generates the ticket codes customers put in
// their bank transfer memo.
//
// A code is the prefix "VCP", an 8 digit date group and a 4 digit sequence
// group. Banks and customers write it as VCP202511106100, VCP-20251110-6100 or
// any mix of the two, in any letter case. The canonical form has no hyphens
// and is upper-case.
package bookingcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	Prefix = "VCP"

	DateDigits = 8
	SeqDigits  = 4

	dateLayout = "20060102"
)

// Code is a parsed booking code.
type Code struct {
	Date string // DateDigits digits, yyyymmdd when generated by this package
	Seq  string // SeqDigits digits
}

// String returns the canonical form.
func (c Code) String() string {
	return Prefix + c.Date + c.Seq
}

// Hyphenated returns the legacy VCP-yyyymmdd-nnnn form.
func (c Code) Hyphenated() string {
	return Prefix + "-" + c.Date + "-" + c.Seq
}

// IsZero reports whether c is the zero Code.
func (c Code) IsZero() bool {
	return c.Date == "" && c.Seq == ""
}

// Extract returns the first booking code embedded anywhere in s. The second
// result is false when s holds no candidate; a candidate with a short digit
// group never matches.
func Extract(s string) (Code, bool) {
	for i := 0; i+len(Prefix) <= len(s); i++ {
		if !strings.EqualFold(s[i:i+len(Prefix)], Prefix) {
			continue
		}
		if c, n := scan(s[i+len(Prefix):]); n > 0 {
			return c, true
		}
	}
	return Code{}, false
}

// Parse parses s as a single booking code, ignoring surrounding whitespace.
// Unlike Extract, nothing but the code may be present.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(Prefix) || !strings.EqualFold(s[:len(Prefix)], Prefix) {
		return Code{}, fmt.Errorf("booking code %q: missing %s prefix", s, Prefix)
	}
	rest := s[len(Prefix):]
	c, n := scan(rest)
	if n == 0 {
		return Code{}, fmt.Errorf("booking code %q: want %d+%d digits", s, DateDigits, SeqDigits)
	}
	if n != len(rest) {
		return Code{}, fmt.Errorf("booking code %q: trailing characters", s)
	}
	return c, nil
}

// Normalize returns the canonical form of s when s is a booking code.
func Normalize(s string) (string, bool) {
	c, err := Parse(s)
	if err != nil {
		return "", false
	}
	return c.String(), true
}

// Generate returns a new code dated t with a random sequence group.
func Generate(t time.Time) (Code, error) {
	max := big.NewInt(10_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return Code{}, fmt.Errorf("generate booking sequence: %w", err)
	}
	return Code{
		Date: t.Format(dateLayout),
		Seq:  fmt.Sprintf("%0*d", SeqDigits, n.Int64()),
	}, nil
}

// scan reads "-?" DateDigits "-?" SeqDigits from the start of s and returns
// the code and the number of bytes consumed, or 0 when s does not start with
// a complete code.
func scan(s string) (Code, int) {
	pos := 0
	if pos < len(s) && s[pos] == '-' {
		pos++
	}
	date, ok := digits(s[pos:], DateDigits)
	if !ok {
		return Code{}, 0
	}
	pos += DateDigits
	if pos < len(s) && s[pos] == '-' {
		pos++
	}
	seq, ok := digits(s[pos:], SeqDigits)
	if !ok {
		return Code{}, 0
	}
	pos += SeqDigits
	return Code{Date: date, Seq: seq}, pos
}

func digits(s string, n int) (string, bool) {
	if len(s) < n {
		return "", false
	}
	for i := 0; i < n; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	return s[:n], true
}
