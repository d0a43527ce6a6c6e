package changeset

import (
	"bytes"
	"encoding/json"
)

// RecordID returns the string form of a record's ID field. Strings are
// taken as-is and numbers keep their JSON literal, so 101 and "101" both
// yield "101". Other value kinds, non-object records and records without
// the field report false.
func RecordID(record json.RawMessage, idField string) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		return "", false
	}
	value, ok := fields[idField]
	if !ok {
		return "", false
	}

	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}
	switch c := value[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(value, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

// Encode renders records as an indented JSON array with four spaces per
// level. HTML characters are left unescaped.
func Encode(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a JSON array document into its raw records.
func Decode(data []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
