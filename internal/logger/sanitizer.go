package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer masks credential material before it reaches a handler.
// Only values of sensitive keys and inline key=value fragments are
// masked; secrets embedded in unrelated values pass through.
type Sanitizer struct {
	rules []sanitizeRule
}

type sanitizeRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// NewSanitizer returns a sanitizer with the default rule set
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rules: []sanitizeRule{
			// AWS credential environment variables and flags
			{regexp.MustCompile(`(?i)aws_secret_access_key=\S+`), "aws_secret_access_key=***"},
			{regexp.MustCompile(`(?i)aws_session_token=\S+`), "aws_session_token=***"},
			{regexp.MustCompile(`(?i)secret[_-]?key=\S+`), "secret_key=***"},
			// Access key IDs are not secret but identify the account
			{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "AKIA****************"},
			// Generic
			{regexp.MustCompile(`(?i)password=\S+`), "password=***"},
			{regexp.MustCompile(`(?i)token=\S+`), "token=***"},
		},
	}
}

// Sanitize applies all rules to a string
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, rule := range s.rules {
		result = rule.pattern.ReplaceAllString(result, rule.replacement)
	}
	return result
}

// SanitizeArgs masks slog key/value pairs: values under sensitive keys are
// replaced wholesale, string values are run through the rules
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	out := make([]any, len(args))
	copy(out, args)

	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if isSensitiveKey(key) {
			out[i+1] = "***"
			continue
		}
		if str, ok := out[i+1].(string); ok {
			out[i+1] = s.Sanitize(str)
		} else if err, ok := out[i+1].(error); ok && err != nil {
			out[i+1] = fmt.Errorf("%s", s.Sanitize(err.Error()))
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	switch k {
	case "secret", "secret_key", "secretkey", "password", "token", "credentials":
		return true
	}
	return strings.Contains(k, "secret") || strings.Contains(k, "password")
}
