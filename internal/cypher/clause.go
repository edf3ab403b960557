package cypher

import (
	"fmt"
	"regexp"
	"strings"
)

// Clause is one node of a query tree. Clauses only know how to write
// themselves; parameter binding happens in Query.
type Clause interface {
	write(sb *strings.Builder)
}

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent backtick-quotes labels and keys that are not plain identifiers.
func quoteIdent(name string) string {
	if plainIdentifier.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func writePattern(sb *strings.Builder, variable, label string, props []PatternProperty) {
	sb.WriteString("(")
	sb.WriteString(variable)
	if label != "" {
		sb.WriteString(":")
		sb.WriteString(quoteIdent(label))
	}
	if len(props) > 0 {
		sb.WriteString(" {")
		for i, p := range props {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s: $%s", quoteIdent(p.Key), p.Param)
		}
		sb.WriteString("}")
	}
	sb.WriteString(")")
}

// PatternProperty is an inline {key: $param} entry of a node pattern.
type PatternProperty struct {
	Key   string
	Param string
}

type Match struct {
	Var   string
	Label string
}

func (c Match) write(sb *strings.Builder) {
	sb.WriteString("MATCH ")
	writePattern(sb, c.Var, c.Label, nil)
}

// Where appends Predicate verbatim.
type Where struct {
	Predicate string
}

func (c Where) write(sb *strings.Builder) {
	sb.WriteString("WHERE ")
	sb.WriteString(c.Predicate)
}

type ReturnItem struct {
	Expr  string
	Alias string
}

type Return struct {
	Distinct bool
	Items    []ReturnItem
}

func (c Return) write(sb *strings.Builder) {
	sb.WriteString("RETURN ")
	if c.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, item := range c.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(item.Expr)
		if item.Alias != "" && item.Alias != item.Expr {
			sb.WriteString(" AS ")
			sb.WriteString(quoteIdent(item.Alias))
		}
	}
}

type Limit struct {
	Count int
}

func (c Limit) write(sb *strings.Builder) {
	fmt.Fprintf(sb, "LIMIT %d", c.Count)
}

type Create struct {
	Var   string
	Label string
	Props []PatternProperty
}

func (c Create) write(sb *strings.Builder) {
	sb.WriteString("CREATE ")
	writePattern(sb, c.Var, c.Label, c.Props)
}

type Merge struct {
	Var   string
	Label string
	Props []PatternProperty
}

func (c Merge) write(sb *strings.Builder) {
	sb.WriteString("MERGE ")
	writePattern(sb, c.Var, c.Label, c.Props)
}

// Set assigns one property from a bound parameter.
type Set struct {
	Var   string
	Key   string
	Param string
}

func (c Set) write(sb *strings.Builder) {
	fmt.Fprintf(sb, "SET %s.%s = $%s", c.Var, quoteIdent(c.Key), c.Param)
}

type Delete struct {
	Var    string
	Detach bool
}

func (c Delete) write(sb *strings.Builder) {
	if c.Detach {
		sb.WriteString("DETACH ")
	}
	sb.WriteString("DELETE ")
	sb.WriteString(c.Var)
}

// Query is an ordered clause list plus the parameters its clauses reference.
type Query struct {
	clauses []Clause
	params  map[string]any
	next    int
}

func NewQuery() *Query {
	return &Query{params: map[string]any{}}
}

// Add appends clauses in order.
func (q *Query) Add(clauses ...Clause) *Query {
	q.clauses = append(q.clauses, clauses...)
	return q
}

// Bind registers value under a generated name (p0, p1, ...) and returns the name.
func (q *Query) Bind(value any) string {
	name := fmt.Sprintf("p%d", q.next)
	q.next++
	q.params[name] = value
	return name
}

// BindAs registers value under an explicit name.
func (q *Query) BindAs(name string, value any) string {
	q.params[name] = value
	return name
}

// Render serializes the clause tree. Clauses are separated by a single space.
func (q *Query) Render() Statement {
	var sb strings.Builder
	for i, c := range q.clauses {
		if i > 0 {
			sb.WriteString(" ")
		}
		c.write(&sb)
	}

	var params map[string]any
	if len(q.params) > 0 {
		params = make(map[string]any, len(q.params))
		for k, v := range q.params {
			params[k] = v
		}
	}
	return Statement{Text: sb.String(), Params: params}
}

// Statement is a rendered query plus its bound parameters.
type Statement struct {
	Text   string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// Raw wraps a caller-supplied query string.
func Raw(text string, params map[string]any) Statement {
	return Statement{Text: text, Params: params}
}

// IsEmpty reports whether there is nothing to execute.
func (s Statement) IsEmpty() bool {
	return strings.TrimSpace(s.Text) == ""
}
