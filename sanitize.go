package gql

import (
	"regexp"
	"strings"
)

var (
	// Pattern for common sensitive field names in JSON/GraphQL
	sensitiveFieldPattern = regexp.MustCompile(`(?i)"?(password|passwd|pwd|token|apikey|api_key|api-key|secret|authorization|auth|bearer|credentials|private_key|private-key|access_token|refresh_token|client_secret|session|cookie)"?\s*:\s*"[^"]*"`)

	// Pattern for basic auth in URLs
	basicAuthURLPattern = regexp.MustCompile(`(https?://)([^:/@]+):([^@]+)@`)

	// Pattern for JWT tokens
	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	sensitiveKeyPattern = regexp.MustCompile(`(?i)^(password|passwd|pwd|token|apikey|api_key|api-key|secret|authorization|auth|bearer|credentials|private_key|private-key|access_token|refresh_token|client_secret|session|cookie)$`)
)

const redactedText = "[REDACTED]"

// sanitizeForLogging redacts credentials from free text such as endpoints
// and query documents.
func sanitizeForLogging(input string) string {
	if input == "" {
		return input
	}

	sanitized := sensitiveFieldPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := strings.SplitN(match, ":", 2)
		if len(parts) == 2 {
			return parts[0] + `: "` + redactedText + `"`
		}
		return redactedText
	})
	sanitized = basicAuthURLPattern.ReplaceAllString(sanitized, "${1}"+redactedText+":"+redactedText+"@")
	return jwtPattern.ReplaceAllString(sanitized, redactedText)
}

// sanitizeVariables copies variables with sensitive keys redacted, at any
// depth.
func sanitizeVariables(variables map[string]any) map[string]any {
	if variables == nil {
		return nil
	}
	out := make(map[string]any, len(variables))
	for key, value := range variables {
		if sensitiveKeyPattern.MatchString(key) {
			out[key] = redactedText
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeVariables(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	case string:
		return jwtPattern.ReplaceAllString(v, redactedText)
	}
	return value
}
