// Package merchant canonicalizes merchant names so transactions from the same
// merchant can be compared, and recovers a merchant name from the free-text
// description when the bank did not supply one.
//
// Description extraction is a best-effort heuristic. It will miss merchants
// and it will sometimes keep noise; callers drop transactions it cannot
// attribute.
package merchant

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinNameLength is the shortest name accepted as a merchant identity.
const MinNameLength = 3

// Position says which end of the description a rule is anchored to.
type Position int

const (
	Prefix Position = iota
	Suffix
)

func (p Position) String() string {
	if p == Prefix {
		return "prefix"
	}
	return "suffix"
}

// Rule strips one anchored token from a description.
type Rule struct {
	Name     string
	Position Position
	Pattern  *regexp.Regexp
}

// Apply removes the rule's match from the description and trims the result.
func (r Rule) Apply(s string) string {
	return strings.TrimSpace(r.Pattern.ReplaceAllString(s, ""))
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Patterns must stay anchored: an unanchored match would eat merchant names
// that merely contain one of these tokens.
var rules = []Rule{
	{
		Name:     "transaction type",
		Position: Prefix,
		Pattern:  regexp.MustCompile(`(?i)^(pos|debit|purchase|card|ach|checkcard|recurring)\s+`),
	},
	{
		Name:     "reference number",
		Position: Suffix,
		Pattern:  regexp.MustCompile(`\s*#?\d+$`),
	},
	{
		Name:     "state code",
		Position: Suffix,
		Pattern:  regexp.MustCompile(`\s+[A-Z]{2}$`),
	},
}

// Rules returns the ordered cleanup rules used by ExtractFromDescription.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Normalize lower-cases a name and drops everything that is not a letter or
// digit, so "AMAZON.COM" and "Amazon com" share the key "amazoncom".
func Normalize(name string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "")
}

// ExtractFromDescription applies the cleanup rules in order and returns what
// is left. ok is false when the result is too short to identify a merchant.
func ExtractFromDescription(description string) (string, bool) {
	cleaned := strings.TrimSpace(description)
	for _, r := range rules {
		cleaned = r.Apply(cleaned)
	}
	if utf8.RuneCountInString(cleaned) < MinNameLength {
		return "", false
	}
	return cleaned, true
}

// Identity is a resolved merchant: the display name and its comparison key.
type Identity struct {
	Name string
	Key  string
}

// Resolve picks the explicit merchant field when it is usable and falls back
// to the description otherwise.
func Resolve(explicit *string, description string) (Identity, bool) {
	if explicit != nil {
		name := strings.TrimSpace(*explicit)
		if utf8.RuneCountInString(name) >= MinNameLength {
			if key := Normalize(name); key != "" {
				return Identity{Name: name, Key: key}, true
			}
		}
	}

	name, ok := ExtractFromDescription(description)
	if !ok {
		return Identity{}, false
	}
	key := Normalize(name)
	if key == "" {
		return Identity{}, false
	}
	return Identity{Name: name, Key: key}, true
}
