package cypher

import "strings"

// SelectorKind tells the renderer how a projected field is produced.
type SelectorKind int

const (
	SelectProperty SelectorKind = iota
	SelectCount
	SelectDistinct
)

const (
	countPrefix    = "count_"
	distinctPrefix = "distinct_"
)

func (k SelectorKind) String() string {
	switch k {
	case SelectCount:
		return "count"
	case SelectDistinct:
		return "distinct"
	default:
		return "property"
	}
}

// Selector is one entry of a projection list. Alias is the key the value is
// returned under and the key used when the record is normalized.
type Selector struct {
	Kind     SelectorKind `json:"kind"`
	Property string       `json:"property"`
	Alias    string       `json:"alias,omitempty"`
}

// Field selects a property as-is.
func Field(property string) Selector {
	return Selector{Kind: SelectProperty, Property: property, Alias: property}
}

// Count selects count(n.property), aliased count_<property>.
func Count(property string) Selector {
	return Selector{Kind: SelectCount, Property: property, Alias: countPrefix + property}
}

// Distinct selects the distinct values of a property, aliased distinct_<property>.
func Distinct(property string) Selector {
	return Selector{Kind: SelectDistinct, Property: property, Alias: distinctPrefix + property}
}

// Name returns the alias, falling back to the property name.
func (s Selector) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Property
}

// ParseSelector turns a legacy field string into a Selector. Strings starting
// with count_ or distinct_ are always read as aggregation markers; callers that
// need a property literally named count_x must build Field("count_x") directly.
func ParseSelector(field string) Selector {
	switch {
	case strings.HasPrefix(field, countPrefix) && len(field) > len(countPrefix):
		return Selector{Kind: SelectCount, Property: strings.TrimPrefix(field, countPrefix), Alias: field}
	case strings.HasPrefix(field, distinctPrefix) && len(field) > len(distinctPrefix):
		return Selector{Kind: SelectDistinct, Property: strings.TrimPrefix(field, distinctPrefix), Alias: field}
	default:
		return Field(field)
	}
}

// ParseSelectors applies ParseSelector to each field, skipping blanks.
func ParseSelectors(fields []string) []Selector {
	if len(fields) == 0 {
		return nil
	}
	selectors := make([]Selector, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		selectors = append(selectors, ParseSelector(f))
	}
	return selectors
}

// Aliases returns the record keys a projection produces, in order.
func Aliases(selectors []Selector) []string {
	names := make([]string, len(selectors))
	for i, s := range selectors {
		names[i] = s.Name()
	}
	return names
}
