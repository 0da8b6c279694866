// Package security provides the input-hardening layer: XSS sanitization,
// SQL-injection signature detection, file-upload policy, and secure token
// generation.
//
// The sanitizer and the injection check are denylist-based. They are a
// regression net against known attack classes layered on top of
// parameterized queries and output encoding, not a completeness proof.
package security

import "regexp"

// Tag and scheme patterns neutralized by SanitizeString. The whole list loops
// until no pattern matches: removing one pattern can reassemble another (e.g.
// "<scrjavascript:ipt>" becomes "<script>" once the scheme is stripped), so a
// per-pattern fixed point is not enough. The outer fixed point is also what
// makes sanitization idempotent.
var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b[^>]*>[\s\S]*?<\s*/\s*script\s*>`),
	regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|object|embed|link|meta)\b[^>]*>`),
	regexp.MustCompile(`(?i)(javascript|vbscript|data)\s*:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
}

// SanitizeString strips script/iframe/object/embed/link/meta tags, the
// javascript:/vbscript:/data: URI schemes, and on*= event-handler attributes
// from s. For any input x, SanitizeString(SanitizeString(x)) ==
// SanitizeString(x).
func SanitizeString(s string) string {
	for {
		changed := false
		for _, re := range sanitizePatterns {
			for re.MatchString(s) {
				s = re.ReplaceAllString(s, "")
				changed = true
			}
		}
		if !changed {
			return s
		}
	}
}

// SanitizeValue walks an arbitrary decoded-JSON shape and sanitizes every
// string in place of its structure: maps and slices are rebuilt element-wise,
// non-string scalars pass through unchanged.
func SanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = SanitizeValue(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = SanitizeString(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = SanitizeValue(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = SanitizeString(val)
		}
		return out
	default:
		return v
	}
}

// SanitizeMap sanitizes a payload map, preserving structure. A nil map stays
// nil.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return SanitizeValue(m).(map[string]any)
}
