package cypher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Property is a single key/value assignment.
type Property struct {
	Key   string
	Value any
}

// Properties is an insertion-ordered property list. Decoding a JSON object
// keeps the order the keys appear in the document.
type Properties []Property

// PropertiesFromMap converts a map using sorted keys, since maps carry no order.
func PropertiesFromMap(m map[string]any) Properties {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make(Properties, 0, len(keys))
	for _, k := range keys {
		props = append(props, Property{Key: k, Value: m[k]})
	}
	return props
}

// Keys returns property keys in order.
func (p Properties) Keys() []string {
	keys := make([]string, len(p))
	for i, prop := range p {
		keys[i] = prop.Key
	}
	return keys
}

// Map returns the properties as an unordered map.
func (p Properties) Map() map[string]any {
	m := make(map[string]any, len(p))
	for _, prop := range p {
		m[prop.Key] = prop.Value
	}
	return m
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(prop.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be a JSON object, got %v", tok)
	}

	props := Properties{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected property key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		props = append(props, Property{Key: key, Value: normalizeNumbers(value)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = props
	return nil
}

// normalizeNumbers turns json.Number into int64 when integral, float64 otherwise,
// so values bind as native graph integers instead of doubles.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeNumbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumbers(val[k])
		}
		return val
	default:
		return v
	}
}
