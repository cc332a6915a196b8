package service

import (
	"encoding/json"
	"strings"
)

// RedactionMarker replaces sensitive values wherever request data is
// surfaced: on-disk logs, the in-memory index, monitoring responses.
const RedactionMarker = "***"

func isSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	switch k {
	case "authorization",
		"cookie",
		"set-cookie",
		"x-client-id",
		"password",
		"token",
		"accesstoken",
		"refreshtoken",
		"secret",
		"api_key",
		"api_secret",
		"private_key":
		return true
	}
	return strings.Contains(k, "password") || strings.Contains(k, "secret")
}

// SanitizeHeaders copies headers with sensitive values replaced.
func SanitizeHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if isSensitiveKey(key) {
			out[key] = RedactionMarker
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// RedactBody redacts sensitive keys inside a JSON body. Bodies that do not
// parse as JSON (form posts, plain text) are replaced wholesale: they can
// carry credentials too, and there is no structure to redact selectively.
func RedactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return RedactionMarker
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return RedactionMarker
	}
	return string(out)
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = RedactionMarker
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}
