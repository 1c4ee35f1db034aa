// Package normalizers provides the key and field clean-up functions applied to
// raw row values before they are used as entity keys or attribute values.
package normalizers

import (
	"strings"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("trim", Trim)
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("strip_db_prefix", StripDBPrefix)
	Register("taxon_id", ParseTaxonID)
	Register("pubmed_id", PubMedID)
	Register("pipe_to_space", PipeToSpace)
	Register("strain_background", StrainBackground)
	Register("none_if_empty", NoneIfEmpty)
	Register("first_word", FirstWord)
	Register("before_dash", BeforeDash)
	Register("after_dash", AfterDash)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered normalizer names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// DefaultSentinels are the tokens that mean "intentionally absent".
var DefaultSentinels = []string{"-", "---"}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

func Lowercase(s string) string {
	return strings.ToLower(s)
}

func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// IsSentinel reports whether the trimmed value is empty or one of the
// sentinels. With no sentinels given, DefaultSentinels apply.
func IsSentinel(s string, sentinels ...string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if len(sentinels) == 0 {
		sentinels = DefaultSentinels
	}
	for _, sentinel := range sentinels {
		if s == sentinel {
			return true
		}
	}
	return false
}

// SplitMulti splits a multi-valued field on ';', '|' and ','. Values are
// trimmed and empty values dropped.
func SplitMulti(s string) []string {
	return SplitOn(s, ";|,")
}

// SplitOn splits s on any of the separator runes in seps.
func SplitOn(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParsePrefixed splits a "TYPE:value" token such as "HGNC:1234". Only the
// first colon separates; ok is false when there is no prefix.
func ParsePrefixed(s string) (prefix, value string, ok bool) {
	s = strings.TrimSpace(s)
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return "", s, false
	}
	return s[:idx], s[idx+1:], true
}

// StripDBPrefix removes a leading "DB:" prefix ("SGD:S000001855" becomes
// "S000001855", "NCBITaxon:4932" becomes "4932").
func StripDBPrefix(s string) string {
	_, value, _ := ParsePrefixed(s)
	return value
}

// ParseTaxonID extracts the first taxon from GAF-style values such as
// "taxon:4932|taxon:559292".
func ParseTaxonID(s string) string {
	first := strings.TrimSpace(s)
	if idx := strings.Index(first, "|"); idx >= 0 {
		first = first[:idx]
	}
	return StripDBPrefix(first)
}

// PubMedID picks the PubMed identifier out of a reference field such as
// "PMID:2204109|SGD_REF:S000039925". Values without any prefix are taken as
// bare PubMed ids; a field listing only other databases yields "".
func PubMedID(s string) string {
	for _, token := range SplitOn(s, "|") {
		prefix, value, ok := ParsePrefixed(token)
		if !ok {
			if isDigits(token) {
				return token
			}
			continue
		}
		if strings.EqualFold(prefix, "PMID") {
			return value
		}
	}
	return ""
}

// PublicationRef splits a GAF DB:Reference field such as
// "PMID:2674131|SGD_REF:S000042106" into its PubMed id and a cross-reference
// id. The SGD reference id wins over a GO_REF, which keeps its prefix
// ("GO_REF:0000002") since its number alone is ambiguous.
func PublicationRef(s string) (pubMedID, xref string) {
	pubMedID = PubMedID(s)
	goRef := ""
	for _, token := range SplitOn(s, "|") {
		prefix, value, ok := ParsePrefixed(token)
		if !ok {
			continue
		}
		switch strings.ToUpper(prefix) {
		case "SGD_REF":
			if xref == "" {
				xref = value
			}
		case "GO_REF":
			if goRef == "" {
				goRef = "GO_REF:" + value
			}
		}
	}
	if xref == "" {
		xref = goRef
	}
	return pubMedID, xref
}

// PublicationKey is the identity of a cited reference: its PubMed id, or
// the cross-reference id when there is none.
func PublicationKey(pubMedID, xref string) string {
	if pubMedID != "" {
		return pubMedID
	}
	return xref
}

// FirstWord keeps the first whitespace-separated word ("physical
// interactions" becomes "physical").
func FirstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// BeforeDash and AfterDash split a pair such as "Bait-Hit" on its first
// dash. AfterDash is empty when there is no dash.
func BeforeDash(s string) string {
	before, _, _ := strings.Cut(strings.TrimSpace(s), "-")
	return before
}

func AfterDash(s string) string {
	_, after, _ := strings.Cut(strings.TrimSpace(s), "-")
	return after
}

func PipeToSpace(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "|", " "))
}

// StrainBackground reduces a strain format name such as "S288C_background_BY4741"
// to its last part. Values without exactly three parts read as "Other".
func StrainBackground(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "_")
	if len(parts) == 3 {
		return parts[2]
	}
	return "Other"
}

func NoneIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
