// Package security sanitizes engine request/response payloads before they
// are logged or persisted to the audit trail. Credentials are redacted and
// patient-identifying fields are masked; raw document bytes (octet-stream
// loads) are stored base64-encoded.
package security

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Sensitive header names that are redacted.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

// Sensitive field names in JSON bodies that are redacted. Includes the
// patient identifiers that must not land in the audit store.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"access_token",
	"credential",
	"ssn",
	"ahv",
	"socialsecurity",
}

const redactedValue = "[REDACTED]"

// SanitizeHeaders returns a copy of the headers with sensitive values
// redacted and multi-values joined.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string)
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
		} else {
			sanitized[key] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// SanitizeURL strips embedded userinfo/query credentials from a URL before
// logging.
func SanitizeURL(rawURL string) string {
	if at := strings.Index(rawURL, "@"); at != -1 {
		if scheme := strings.Index(rawURL, "://"); scheme != -1 && at > scheme {
			return rawURL[:scheme+3] + redactedValue + rawURL[at:]
		}
	}
	return rawURL
}

// SanitizeBody redacts sensitive fields from a JSON body and wraps binary
// payloads (e.g. octet-stream document loads) as base64. Bodies above
// maxSize are truncated to a preview.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	if !utf8.Valid(body) {
		return wrapBinaryAsJSON(body)
	}

	if maxSize > 0 && len(body) > maxSize {
		truncated := map[string]interface{}{
			"_truncated": true,
			"_size":      len(body),
			"_preview":   string(body[:maxSize]),
		}
		result, _ := json.Marshal(truncated)
		return json.RawMessage(result)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		// Valid UTF-8 but not JSON (e.g. raw XML response documents).
		wrapped := map[string]interface{}{
			"_raw":    string(body),
			"_format": "text",
		}
		result, _ := json.Marshal(wrapped)
		return json.RawMessage(result)
	}

	result, err := json.Marshal(sanitizeValue(data))
	if err != nil {
		wrapped := map[string]interface{}{
			"_raw":    string(body),
			"_format": "text",
		}
		result, _ = json.Marshal(wrapped)
	}
	return json.RawMessage(result)
}

func wrapBinaryAsJSON(data []byte) json.RawMessage {
	wrapped := map[string]interface{}{
		"_binary": true,
		"_size":   len(data),
		"_base64": base64.StdEncoding.EncodeToString(data),
	}
	result, _ := json.Marshal(wrapped)
	return json.RawMessage(result)
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return sanitizeMap(val)
	case []interface{}:
		sanitized := make([]interface{}, len(val))
		for i, item := range val {
			sanitized[i] = sanitizeValue(item)
		}
		return sanitized
	default:
		return val
	}
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{})
	for key, value := range m {
		lowerKey := strings.ToLower(key)

		isSensitive := false
		for _, field := range sensitiveFields {
			if strings.Contains(lowerKey, field) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			sanitized[key] = redactedValue
		} else {
			sanitized[key] = sanitizeValue(value)
		}
	}
	return sanitized
}
