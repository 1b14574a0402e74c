package mcp

import "encoding/json"

// collectUnknownFields parses raw JSON into a map, capturing fields
// outside the known set. Unknown fields never fail a request; they are
// echoed back so a mistyped parameter is visible instead of silently
// ignored.
func collectUnknownFields(data []byte, known map[string]struct{}) (map[string]json.RawMessage, []UnknownField, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	var unknown []UnknownField
	for key, value := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, decodeUnknownField(key, value))
		}
	}
	return raw, unknown, nil
}

func decodeUnknownField(name string, data json.RawMessage) UnknownField {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		value = string(data)
	}
	return UnknownField{Name: name, Value: value}
}

// wrapBareString turns a bare JSON string into a one-element array so
// parameters documented as lists also accept a single value.
func wrapBareString(value json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return value
	}
	wrapped, _ := json.Marshal([]string{s})
	return wrapped
}
