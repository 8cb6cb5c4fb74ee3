// Package canon implements canonical JSON comparison and redaction, the two
// pure boundary functions every other package in runledger composes: cassette
// matching canonicalizes before comparing equality, and every external write
// (cassette append, trace log, summary JSON) is redacted first.
package canon

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Canonicalize recursively sorts map keys so that two structurally equal JSON
// values compare equal regardless of source key order. Values decoded via
// encoding/json already come back as map[string]any/[]any/primitives, which is
// the shape this function expects.
func Canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = Canonicalize(v)
		}
		return sortedMap(out)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Canonicalize(e)
		}
		return out
	default:
		return val
	}
}

// sortedMap exists only to document intent; map[string]any already carries
// its own randomized Go iteration order, so actual determinism comes from
// CanonicalDumps re-marshaling through a sorted-keys encoder, not from this
// return value's runtime representation.
func sortedMap(m map[string]any) map[string]any { return m }

// CanonicalDumps renders v as compact JSON with recursively sorted object
// keys, matching the equality definition used by cassette matching.
func CanonicalDumps(v any) (string, error) {
	canon := Canonicalize(v)
	return marshalSorted(canon)
}

// marshalSorted marshals a value produced by Canonicalize using sorted map
// keys at every level. encoding/json already sorts map[string]any keys when
// marshaling, so a direct Marshal is sufficient once keys are canonicalized;
// this wrapper exists to keep the sorting contract explicit and in one place.
func marshalSorted(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Equal reports whether a and b are equal under canonicalization, i.e. equal
// up to object key order.
func Equal(a, b any) (bool, error) {
	da, err := CanonicalDumps(a)
	if err != nil {
		return false, err
	}
	db, err := CanonicalDumps(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

// Redactor scrubs sensitive values out of a decoded JSON tree before it
// crosses a serialization boundary (cassette append, trace log, summary
// JSON). Implementations must be idempotent: Redact(Redact(v)) == Redact(v).
type Redactor interface {
	Redact(v any) any
}

// sensitiveSubstrings and sensitiveParts mirror the two-tier key-sensitivity
// check in the reference redactor this was ported from: a substring check for
// common compound key names, and a split-on-non-alphanumeric check for
// standalone sensitive words.
var sensitiveSubstrings = []string{
	"api_key", "apikey", "access_token", "refresh_token", "authorization", "auth_token",
}

var sensitiveParts = map[string]struct{}{
	"token": {}, "secret": {}, "password": {}, "pwd": {}, "auth": {},
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range sensitiveSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, part := range nonAlnum.Split(lower, -1) {
		if _, ok := sensitiveParts[part]; ok {
			return true
		}
	}
	return false
}

type patternRule struct {
	re          *regexp.Regexp
	replacement string
}

// textPatterns catches secret-shaped substrings embedded inside otherwise
// ordinary strings (e.g. a log line containing "Authorization: Bearer xyz").
var textPatterns = []patternRule{
	{regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-_.=]+`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`), "[REDACTED]"},
	{regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`), "[REDACTED]"},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "[REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`), "[REDACTED]"},
}

// RedactText applies the sensitive-substring patterns to free text, leaving
// non-matching text untouched.
func RedactText(s string) string {
	for _, p := range textPatterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}

// DefaultRedactor is the concrete Redactor wired at every serialization
// boundary in this module. It replaces the entire value of a sensitive-named
// key with "[REDACTED]", recurses into maps and slices, and applies
// RedactText to bare strings.
type DefaultRedactor struct{}

// Redact implements Redactor.
func (DefaultRedactor) Redact(v any) any { return redact(v) }

func redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			if isSensitiveKey(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redact(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = redact(e)
		}
		return out
	case string:
		return RedactText(val)
	default:
		return val
	}
}

// sortKeysOf is a small helper used by callers that need a deterministic key
// listing (e.g. diagnostic messages) rather than a remarshal.
func sortKeysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedKeys exposes sortKeysOf for callers outside the package that build
// human-readable diagnostics (cassette mismatch listings, assertion
// messages).
func SortedKeys(m map[string]any) []string { return sortKeysOf(m) }
