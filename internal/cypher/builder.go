package cypher

import "fmt"

const (
	// DefaultDiscriminatorKey is the property that keys create/merge/delete patterns.
	DefaultDiscriminatorKey = "label"

	nodeVar            = "n"
	discriminatorParam = "discriminator"
)

// QueryRequest describes a node read.
type QueryRequest struct {
	Label  string
	Filter string
	// Params are bound alongside Filter so callers can reference $names in it.
	Params map[string]any
	Fields []Selector
	Limit  int
}

// Builder renders node-level statements. The zero value is not usable; use NewBuilder.
type Builder struct {
	discriminatorKey string
}

func NewBuilder(discriminatorKey string) *Builder {
	if discriminatorKey == "" {
		discriminatorKey = DefaultDiscriminatorKey
	}
	return &Builder{discriminatorKey: discriminatorKey}
}

// DiscriminatorKey returns the property used to key node patterns.
func (b *Builder) DiscriminatorKey() string {
	return b.discriminatorKey
}

// BuildRead renders MATCH ... [WHERE ...] RETURN ... [LIMIT ...].
func (b *Builder) BuildRead(req QueryRequest) Statement {
	q := NewQuery()
	for k, v := range req.Params {
		q.BindAs(k, v)
	}

	q.Add(Match{Var: nodeVar, Label: req.Label})
	if req.Filter != "" {
		q.Add(Where{Predicate: req.Filter})
	}
	q.Add(projection(req.Fields))
	if req.Limit > 0 {
		q.Add(Limit{Count: req.Limit})
	}
	return q.Render()
}

func projection(fields []Selector) Return {
	if len(fields) == 0 {
		return Return{Items: []ReturnItem{{Expr: nodeVar}}}
	}

	ret := Return{Items: make([]ReturnItem, 0, len(fields))}
	for _, f := range fields {
		prop := fmt.Sprintf("%s.%s", nodeVar, quoteIdent(f.Property))
		switch f.Kind {
		case SelectCount:
			ret.Items = append(ret.Items, ReturnItem{Expr: "count(" + prop + ")", Alias: f.Name()})
		case SelectDistinct:
			// DISTINCT is row-level in Cypher, so it is hoisted onto RETURN.
			ret.Distinct = true
			ret.Items = append(ret.Items, ReturnItem{Expr: prop, Alias: f.Name()})
		default:
			ret.Items = append(ret.Items, ReturnItem{Expr: prop, Alias: f.Name()})
		}
	}
	return ret
}

// BuildCreate renders CREATE (n:Label {key: $discriminator}) SET n.k = $p0 ...
func (b *Builder) BuildCreate(label, discriminator string, props Properties) Statement {
	q := NewQuery()
	pattern := b.discriminatorPattern(q, discriminator)
	q.Add(Create{Var: nodeVar, Label: label, Props: pattern})
	b.addAssignments(q, props)
	return q.Render()
}

// BuildMerge renders MERGE (n:Label {key: $discriminator}) SET n.k = $p0 ...
func (b *Builder) BuildMerge(label, discriminator string, props Properties) Statement {
	q := NewQuery()
	pattern := b.discriminatorPattern(q, discriminator)
	q.Add(Merge{Var: nodeVar, Label: label, Props: pattern})
	b.addAssignments(q, props)
	return q.Render()
}

// BuildDelete renders MATCH (n:Label) [WHERE n.key = $discriminator] [DETACH] DELETE n.
func (b *Builder) BuildDelete(label, discriminator string, detach bool) Statement {
	q := NewQuery()
	q.Add(Match{Var: nodeVar, Label: label})
	if discriminator != "" {
		param := q.BindAs(discriminatorParam, discriminator)
		q.Add(Where{Predicate: fmt.Sprintf("%s.%s = $%s", nodeVar, quoteIdent(b.discriminatorKey), param)})
	}
	q.Add(Delete{Var: nodeVar, Detach: detach})
	return q.Render()
}

func (b *Builder) discriminatorPattern(q *Query, discriminator string) []PatternProperty {
	if discriminator == "" {
		return nil
	}
	param := q.BindAs(discriminatorParam, discriminator)
	return []PatternProperty{{Key: b.discriminatorKey, Param: param}}
}

func (b *Builder) addAssignments(q *Query, props Properties) {
	for _, p := range props {
		param := q.Bind(p.Value)
		q.Add(Set{Var: nodeVar, Key: p.Key, Param: param})
	}
}
