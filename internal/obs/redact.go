package obs

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// redactedKeys are the lowercase substrings that mark a JSON object key as
// sensitive (spec §4.8).
var redactedKeys = []string{
	"authorization", "api_key", "apikey", "token", "password", "secret", "credential",
}

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range redactedKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Redact walks v recursively and replaces the value of any object key whose
// lowercased form contains a sensitive substring with "[REDACTED]". v is
// typically the result of json.Unmarshal into map[string]any/[]any, but
// scalars pass through untouched.
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isRedactedKey(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Redact(val)
		}
		return out
	default:
		return v
	}
}

// RedactJSON redacts a JSON-serializable value by round-tripping it through
// an untyped representation. Non-JSON-marshalable inputs are returned unchanged
// and unredacted.
func RedactJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return v
	}
	return Redact(generic)
}

// TruncateResult is the outcome of bounding a serialized payload to a byte
// budget: the possibly-truncated string, and whether truncation occurred.
type TruncateResult struct {
	Value        string
	Truncated    bool
	OriginalSize int
}

// TruncateUTF8 truncates s to at most maxBytes bytes without splitting a
// multi-byte rune, per spec §4.8 / Testable Property #8.
func TruncateUTF8(s string, maxBytes int) TruncateResult {
	if len(s) <= maxBytes {
		return TruncateResult{Value: s}
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return TruncateResult{
		Value:        s[:cut],
		Truncated:    true,
		OriginalSize: len(s),
	}
}

// BoundedPayload serializes v to JSON, redacts sensitive keys, and truncates
// the result to maxBytes. It returns the (possibly truncated) JSON string
// and, when truncation occurred, a sibling "_truncated" descriptor the
// caller should attach to the emitted event under "{field}_truncated".
func BoundedPayload(v any, maxBytes int) (payload string, truncated *TruncateResult) {
	redacted := RedactJSON(v)
	b, err := json.Marshal(redacted)
	serialized := string(b)
	if err != nil {
		serialized = "null"
	}
	res := TruncateUTF8(serialized, maxBytes)
	if res.Truncated {
		return res.Value, &res
	}
	return serialized, nil
}
