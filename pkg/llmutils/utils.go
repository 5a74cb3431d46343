package llmutils

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// strayRunes are characters that small local models occasionally emit around
// the payload before the actual answer or tool-call list starts.
const strayRunes = "()<>{}`"

// TrimWrappers normalizes a raw completion: surrounding whitespace is removed
// and stray wrapper characters are stripped from the front of the payload.
func TrimWrappers(text string) string {
	return strings.TrimLeft(strings.TrimSpace(text), strayRunes)
}

// ToJSON marshals val to a compact JSON string, ignoring errors.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// ToJSONIndent marshals val to an indented JSON string, ignoring errors.
func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// JSONIndent reformats a JSON document with tab indentation.
func JSONIndent(body string) string {
	var buf bytes.Buffer
	_ = json.Indent(&buf, []byte(body), "", "\t")
	return buf.String()
}

// ToYAML marshals val to a YAML string, ignoring errors.
func ToYAML(val any) string {
	bs, _ := yaml.Marshal(val)
	return string(bs)
}
