package executor

import "graphgate-go/internal/graphdb"

// metadataKeys are entity properties that carry store metadata rather than data.
var metadataKeys = map[string]struct{}{
	"_id":     {},
	"_labels": {},
}

// NormalizeRecords zips each record's keys with its values. Nodes and
// relationships are replaced by their property maps.
func NormalizeRecords(records []graphdb.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(rec.Keys))
		for i, key := range rec.Keys {
			var value any
			if i < len(rec.Values) {
				value = rec.Values[i]
			}
			row[key] = flattenEntity(value)
		}
		out = append(out, row)
	}
	return out
}

// NormalizeProjection extracts exactly the given aliases from each record.
// A missing alias maps to nil.
func NormalizeProjection(aliases []string) Normalizer {
	return func(records []graphdb.Record) []map[string]any {
		out := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			row := make(map[string]any, len(aliases))
			for _, alias := range aliases {
				value, _ := rec.Get(alias)
				row[alias] = value
			}
			out = append(out, row)
		}
		return out
	}
}

// NormalizeEntities takes the entity bound to key in each record and returns
// its properties without metadata keys. Records whose key is not bound to an
// entity yield an empty mapping.
func NormalizeEntities(key string) Normalizer {
	return func(records []graphdb.Record) []map[string]any {
		out := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			value, _ := rec.Get(key)
			out = append(out, entityProperties(value))
		}
		return out
	}
}

func flattenEntity(value any) any {
	switch v := value.(type) {
	case graphdb.Node:
		return copyProps(v.Props)
	case graphdb.Relationship:
		return copyProps(v.Props)
	default:
		return v
	}
}

func entityProperties(value any) map[string]any {
	var props map[string]any
	switch v := value.(type) {
	case graphdb.Node:
		props = v.Props
	case graphdb.Relationship:
		props = v.Props
	case map[string]any:
		props = v
	}

	out := make(map[string]any, len(props))
	for k, item := range props {
		if _, skip := metadataKeys[k]; skip {
			continue
		}
		out[k] = item
	}
	return out
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
