package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ConvertToOtherType uses json marshal/unmarshal to convert one type to another.
// Output parameter should be a pointer to the receiving struct
func ConvertToOtherType(input, output interface{}) error {
	str, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to convert struct from %T to %T. marshal error: %s", input, output, err.Error())
	}
	if err := json.Unmarshal(str, output); err != nil {
		return fmt.Errorf("failed to convert struct from %T to %T. unmarshal error: %s", input, output, err.Error())
	}

	return nil
}

// IsStringInSlice iterates over a slice of strings, looking for the given
// string. If found, true is returned. Otherwise, false is returned.
func IsStringInSlice(needle string, haystack []string) bool {
	for _, hs := range haystack {
		if needle == hs {
			return true
		}
	}

	return false
}

// CurrentTimestamp returns the current datetime in format YYYYMMDDTHHMMSS
func CurrentTimestamp(layout string) string {
	return time.Now().UTC().Format(layout)
}

// SetNestedValue sets value in m at the dot separated path, creating intermediate
// maps as needed. Any non-map value found along the path is replaced.
func SetNestedValue(m map[string]interface{}, path string, value interface{}) error {
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("invalid key path %q", path)
		}
	}

	current := m
	for _, k := range keys[:len(keys)-1] {
		next, ok := current[k].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[k] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value

	return nil
}

// CamelToSnake converts a camelCase key such as "useBastion" to "use_bastion".
// Keys that are already snake_case are returned unchanged.
func CamelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UpperFirst returns s with its first rune upper cased.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
