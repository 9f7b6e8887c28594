package action

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/unicode/norm"
)

const keyPrefix = "key:"

var titleYearPattern = regexp.MustCompile(`^(.+?)\s+\((\d{4})\)$`)

// Selector identifies one catalog item within a section.
//
// Three forms are accepted:
//
//	Independence Day          title only
//	Independence Day (1996)   title disambiguated by release year
//	key:12345                 the catalog's own item key
type Selector struct {
	Title string
	Year  int
	Key   string
}

// ParseSelector parses the textual selector form. Titles are NFC-normalised
// so that composed and decomposed spellings of the same title compare equal.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Selector{}, errors.New("empty selector")
	}

	if strings.HasPrefix(s, keyPrefix) {
		key := strings.TrimSpace(strings.TrimPrefix(s, keyPrefix))
		if key == "" {
			return Selector{}, errors.Newf("selector %q has an empty key", s)
		}
		return Selector{Key: key}, nil
	}

	s = norm.NFC.String(s)
	if m := titleYearPattern.FindStringSubmatch(s); m != nil {
		year, err := strconv.Atoi(m[2])
		if err != nil {
			return Selector{}, errors.Wrapf(err, "selector %q", s)
		}
		return Selector{Title: m[1], Year: year}, nil
	}
	return Selector{Title: s}, nil
}

// MustParseSelector is ParseSelector for literals; it panics on error.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// IsZero reports whether the selector is empty.
func (s Selector) IsZero() bool {
	return s.Title == "" && s.Key == ""
}

// String returns the textual form accepted by ParseSelector.
func (s Selector) String() string {
	switch {
	case s.Key != "":
		return keyPrefix + s.Key
	case s.Year != 0:
		return s.Title + " (" + strconv.Itoa(s.Year) + ")"
	default:
		return s.Title
	}
}

// MatchesTitle compares title with the selector's title after NFC
// normalisation, ignoring case.
func (s Selector) MatchesTitle(title string) bool {
	return strings.EqualFold(norm.NFC.String(title), s.Title)
}
