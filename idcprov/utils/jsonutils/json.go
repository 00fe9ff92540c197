package jsonutils

import "encoding/json"

// ToCompactJSON serializes v on a single line, for echoing row data.
// Returns an empty string if serialization fails.
func ToCompactJSON(v interface{}) string {
	bytes, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(bytes)
}
