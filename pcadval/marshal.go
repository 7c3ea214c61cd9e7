package pcadval

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// marshalOrdered renders an ordered field list as a JSON object, encoding
// each entry's Value through its own ToJSON()/MarshalJSON so nested
// Object values keep their authored order too.
func marshalOrdered(entries []ObjectEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(entry.Value.ToJSON())
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
