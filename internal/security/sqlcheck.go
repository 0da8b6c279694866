package security

import "regexp"

// Injection signatures checked by ValidateSQLParams. The data layer uses
// parameterized queries everywhere; this is the second gate that rejects the
// known attack shapes outright.
var sqlPatterns = []*regexp.Regexp{
	// Stacked statements: a terminator followed by a new statement keyword.
	regexp.MustCompile(`(?i);\s*(select|insert|update|delete|drop|truncate|alter|create|grant|exec|execute)\b`),
	// Comment truncation.
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*`),
	// Tautologies.
	regexp.MustCompile(`(?i)('|")\s*or\s*('|")?\s*1\s*('|")?\s*=\s*('|")?\s*1`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\bor\s+'[^']*'\s*=\s*'[^']*'`),
	// UNION-based extraction.
	regexp.MustCompile(`(?i)\bunion(\s+all)?\s+select\b`),
	// Command execution.
	regexp.MustCompile(`(?i)\bxp_cmdshell\b`),
	regexp.MustCompile(`(?i)\b(drop|truncate)\s+(table|database)\b`),
}

// ValidateSQLParams inspects every string field of params, recursing through
// nested maps and slices, and returns false if any field carries a known
// injection signature. True means all fields are clean.
func ValidateSQLParams(params any) bool {
	return walkStrings(params, stringIsClean)
}

func stringIsClean(s string) bool {
	for _, re := range sqlPatterns {
		if re.MatchString(s) {
			return false
		}
	}
	return true
}

// FindSQLSignature returns the pattern that matched somewhere in params, for
// the operational log. Empty when params are clean.
func FindSQLSignature(params any) string {
	var matched string
	walkStrings(params, func(s string) bool {
		for _, re := range sqlPatterns {
			if re.MatchString(s) {
				matched = re.String()
				return false
			}
		}
		return true
	})
	return matched
}

// walkStrings visits every string reachable through the common decoded-JSON
// shapes. The visitor returns false to stop the walk; walkStrings then
// reports whether the walk ran to completion.
func walkStrings(v any, visit func(string) bool) bool {
	switch t := v.(type) {
	case string:
		return visit(t)
	case map[string]any:
		for _, val := range t {
			if !walkStrings(val, visit) {
				return false
			}
		}
	case map[string]string:
		for _, val := range t {
			if !visit(val) {
				return false
			}
		}
	case []any:
		for _, val := range t {
			if !walkStrings(val, visit) {
				return false
			}
		}
	case []string:
		for _, val := range t {
			if !visit(val) {
				return false
			}
		}
	}
	return true
}
