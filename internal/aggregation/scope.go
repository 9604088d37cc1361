package aggregation

import (
	"fmt"
	"strings"
)

// Fragment is a rendered SQL snippet and its positional ("?") bind arguments.
type Fragment struct {
	SQL  string
	Args []any
}

// Expr is how a definition computes its value from the scope. It is either a
// column reference, resolved against the scope's base relation when
// unqualified, or a raw SQL expression with bind arguments.
type Expr struct {
	column string
	sql    string
	args   []any
}

// Ref references a column. "state_id" is qualified with the scope's base
// alias; "metrics.merged_at" is used as written.
func Ref(column string) Expr {
	return Expr{column: column}
}

// Raw is a caller-written SQL expression. Placeholders use "?".
func Raw(sql string, args ...any) Expr {
	return Expr{sql: sql, args: args}
}

// IsZero reports whether the expression is unset.
func (e Expr) IsZero() bool {
	return e.column == "" && e.sql == ""
}

// String returns the unrendered form, used for introspection and scope keys.
func (e Expr) String() string {
	if e.column != "" {
		return e.column
	}
	return e.sql
}

func (e Expr) render(alias string, d Dialect) Fragment {
	if e.column == "" {
		return Fragment{SQL: e.sql, Args: append([]any(nil), e.args...)}
	}
	parts := strings.Split(e.column, ".")
	if len(parts) == 1 {
		parts = []string{alias, e.column}
	}
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return Fragment{SQL: strings.Join(parts, ".")}
}

// Scope is the base relation a query runs against: a table, optional joins
// and WHERE conditions. Callers pass a Scope that is already restricted to
// what the requester may see. Scope is a value; every method returns a copy.
type Scope struct {
	table string
	alias string
	joins []string
	where []Fragment
}

// From starts a scope over table, aliased by its own name.
func From(table string) Scope {
	alias := table
	if i := strings.LastIndex(table, "."); i >= 0 {
		alias = table[i+1:]
	}
	return Scope{table: table, alias: alias}
}

// As sets the alias of the base relation.
func (s Scope) As(alias string) Scope {
	s.alias = alias
	return s
}

// Table returns the base relation name.
func (s Scope) Table() string { return s.table }

// Alias returns the alias unqualified column references resolve against.
func (s Scope) Alias() string { return s.alias }

// Join appends a join clause. Appending a clause that is already present is a no-op.
func (s Scope) Join(clause string) Scope {
	clause = strings.TrimSpace(clause)
	for _, j := range s.joins {
		if j == clause {
			return s
		}
	}
	s.joins = append(append([]string(nil), s.joins...), clause)
	return s
}

// Where appends a condition; conditions are combined with AND.
func (s Scope) Where(sql string, args ...any) Scope {
	s.where = append(append([]Fragment(nil), s.where...), Fragment{SQL: sql, Args: args})
	return s
}

// Joins returns the join clauses in application order.
func (s Scope) Joins() []string { return append([]string(nil), s.joins...) }

func (s Scope) fromSQL(d Dialect) string {
	var b strings.Builder
	b.WriteString(" FROM ")
	b.WriteString(s.table)
	b.WriteString(" AS ")
	b.WriteString(d.QuoteIdentifier(s.alias))
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	return b.String()
}

func (s Scope) whereSQL() (string, []any) {
	if len(s.where) == 0 {
		return "", nil
	}
	parts := make([]string, len(s.where))
	var args []any
	for i, w := range s.where {
		parts[i] = "(" + w.SQL + ")"
		args = append(args, w.Args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// ScopeAdjustment changes the scope when a definition is used, typically to
// join the table owning a column. Adjustments with the same Key are applied
// once per query no matter how many selections need them.
type ScopeAdjustment struct {
	Key   string
	Apply func(Scope) Scope
}

// JoinScope returns an adjustment that joins clause. The clause is its own key.
func JoinScope(clause string) ScopeAdjustment {
	return ScopeAdjustment{
		Key:   "join:" + strings.TrimSpace(clause),
		Apply: func(s Scope) Scope { return s.Join(clause) },
	}
}

// RequirePresent returns an adjustment that drops rows where expr is NULL.
func RequirePresent(column string) ScopeAdjustment {
	return ScopeAdjustment{
		Key:   "present:" + column,
		Apply: func(s Scope) Scope { return s.Where(column + " IS NOT NULL") },
	}
}

// checkScopes reports adjustments without a key or an Apply function.
func checkScopes(kind, identifier string, adjs []ScopeAdjustment) []string {
	var errs []string
	for i, a := range adjs {
		if strings.TrimSpace(a.Key) == "" {
			errs = append(errs, fmt.Sprintf("%s '%s' scope adjustment #%d has no key", kind, identifier, i+1))
		}
		if a.Apply == nil {
			errs = append(errs, fmt.Sprintf("%s '%s' scope adjustment #%d has no apply function", kind, identifier, i+1))
		}
	}
	return errs
}

// scopeSet applies adjustments in first-use order, each key once.
type scopeSet struct {
	seen  map[string]bool
	order []ScopeAdjustment
}

func (ss *scopeSet) add(adjs ...ScopeAdjustment) {
	if ss.seen == nil {
		ss.seen = map[string]bool{}
	}
	for _, a := range adjs {
		if a.Apply == nil || ss.seen[a.Key] {
			continue
		}
		ss.seen[a.Key] = true
		ss.order = append(ss.order, a)
	}
}

func (ss *scopeSet) apply(s Scope) Scope {
	for _, a := range ss.order {
		s = a.Apply(s)
	}
	return s
}
