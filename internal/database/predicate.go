package database

import (
	"fmt"
	"strings"
)

// Cond is a node of a boolean WHERE-clause expression tree. Queries build an
// explicit tree of leaf predicates joined by And/Or nodes; a single recursive
// renderer turns the tree into SQL with positional placeholders.
type Cond interface {
	render(b *condBuilder) string
}

type condBuilder struct {
	args []any
}

// placeholder appends the value and returns its positional placeholder.
func (b *condBuilder) placeholder(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// Leaf is one comparison. The expression uses ? for each value, replaced
// with positional placeholders at render time.
type Leaf struct {
	Expr   string
	Values []any
}

// Pred creates a leaf predicate.
func Pred(expr string, values ...any) Leaf {
	return Leaf{Expr: expr, Values: values}
}

func (l Leaf) render(b *condBuilder) string {
	expr := l.Expr
	for _, value := range l.Values {
		expr = strings.Replace(expr, "?", b.placeholder(value), 1)
	}
	return expr
}

// And joins its children conjunctively. An empty And renders as TRUE.
type And []Cond

func (a And) render(b *condBuilder) string {
	return renderJoin([]Cond(a), " AND ", "TRUE", b)
}

// Or joins its children disjunctively. An empty Or renders as FALSE.
type Or []Cond

func (o Or) render(b *condBuilder) string {
	return renderJoin([]Cond(o), " OR ", "FALSE", b)
}

func renderJoin(children []Cond, sep, empty string, b *condBuilder) string {
	if len(children) == 0 {
		return empty
	}

	parts := make([]string, 0, len(children))
	for _, child := range children {
		parts = append(parts, child.render(b))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// RenderCond renders the expression tree into a WHERE fragment and its
// positional arguments.
func RenderCond(c Cond) (string, []any) {
	var b condBuilder
	sql := c.render(&b)
	return sql, b.args
}
