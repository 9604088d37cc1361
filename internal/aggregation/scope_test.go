package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_IsValue(t *testing.T) {
	base := From("public.merge_requests")
	assert.Equal(t, "merge_requests", base.Alias())

	joined := base.Join("JOIN projects p ON p.id = merge_requests.project_id")
	filtered := joined.Where("p.archived = ?", false)

	assert.Empty(t, base.Joins())
	assert.Len(t, joined.Joins(), 1)
	where, _ := joined.whereSQL()
	assert.Empty(t, where)

	where, args := filtered.whereSQL()
	assert.Equal(t, " WHERE (p.archived = ?)", where)
	assert.Equal(t, []any{false}, args)
}

func TestScope_JoinDeduplicates(t *testing.T) {
	s := From("merge_requests").Join("JOIN a ON true").Join(" JOIN a ON true ").Join("JOIN b ON true")
	assert.Equal(t, []string{"JOIN a ON true", "JOIN b ON true"}, s.Joins())
}

func TestScopeSet_AppliesEachKeyOnce(t *testing.T) {
	calls := 0
	adj := ScopeAdjustment{Key: "k", Apply: func(s Scope) Scope { calls++; return s.Where("x") }}

	var ss scopeSet
	ss.add(adj, RequirePresent("m.merged_at"))
	ss.add(adj, ScopeAdjustment{Key: "noop"})
	s := ss.apply(From("t"))

	assert.Equal(t, 1, calls)
	where, _ := s.whereSQL()
	assert.Equal(t, " WHERE (x) AND (m.merged_at IS NOT NULL)", where)
}

func TestExpr_Render(t *testing.T) {
	d := SQLite{}
	assert.Equal(t, `"mr"."state_id"`, Ref("state_id").render("mr", d).SQL)
	assert.Equal(t, `"projects"."name"`, Ref("projects.name").render("mr", d).SQL)

	raw := Raw("coalesce(a, ?)", 0).render("mr", d)
	assert.Equal(t, "coalesce(a, ?)", raw.SQL)
	assert.Equal(t, []any{0}, raw.Args)

	assert.True(t, Expr{}.IsZero())
	assert.Equal(t, "projects.name", Ref("projects.name").String())
}
