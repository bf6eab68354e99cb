package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/testutil"
)

func classified(t *testing.T, reg *ir.Registry, src string) *graph.Graph {
	t.Helper()
	g, err := graph.BuildPayload(mustPayload(t, src))
	require.NoError(t, err)
	require.NoError(t, graph.Classify(g, reg))
	return g
}

func TestBuildPlan_CreatedDependencies(t *testing.T) {
	g := classified(t, testutil.EmployeeRegistry(), `{
		"data": {
			"type": "employees", "temp-id": "e1",
			"relationships": {
				"classification": {"data": {"type": "classifications", "temp-id": "c1"}},
				"salary": {"data": {"type": "salaries", "temp-id": "s1"}},
				"teams": {"data": [{"type": "teams", "temp-id": "t1"}]}
			}
		},
		"included": [
			{"type": "classifications", "temp-id": "c1"},
			{"type": "salaries", "temp-id": "s1"},
			{"type": "teams", "temp-id": "t1"}
		]
	}`)

	plan, err := BuildPlan(g, DefaultMaxNodes)
	require.NoError(t, err)

	e1, _ := g.Lookup(ir.ResourceRef{Type: "employees", ID: ir.Temporary("e1")})
	c1, _ := g.Lookup(ir.ResourceRef{Type: "classifications", ID: ir.Temporary("c1")})
	s1, _ := g.Lookup(ir.ResourceRef{Type: "salaries", ID: ir.Temporary("s1")})
	t1, _ := g.Lookup(ir.ResourceRef{Type: "teams", ID: ir.Temporary("t1")})

	assert.Equal(t, []graph.Handle{c1.Handle}, plan.DependsOn(e1.Handle))
	assert.Equal(t, []graph.Handle{e1.Handle}, plan.DependsOn(s1.Handle))
	assert.Empty(t, plan.DependsOn(t1.Handle), "join rows add no dependency")

	order := plan.Order()
	require.Len(t, order, 4)
	pos := func(h graph.Handle) int {
		for i, o := range order {
			if o == h {
				return i
			}
		}
		return -1
	}
	assert.Less(t, pos(c1.Handle), pos(e1.Handle))
	assert.Less(t, pos(e1.Handle), pos(s1.Handle))
}

func TestBuildPlan_PersistedNodesNeverBlock(t *testing.T) {
	reg := ir.NewRegistry(
		&ir.EntitySchema{Name: "a", Relationships: []ir.RelationshipSchema{
			{Name: "b", Cardinality: ir.ToOneOwning, Target: "b", ForeignKey: "b_id"},
		}},
		&ir.EntitySchema{Name: "b", Relationships: []ir.RelationshipSchema{
			{Name: "a", Cardinality: ir.ToOneOwning, Target: "a", ForeignKey: "a_id"},
		}},
	)
	g := classified(t, reg, `{
		"data": {"type": "a", "temp-id": "a1", "relationships": {"b": {"data": {"type": "b", "id": "7"}}}},
		"included": [{"type": "b", "id": "7", "relationships": {"a": {"data": {"type": "a", "temp-id": "a1"}}}}]
	}`)

	_, err := BuildPlan(g, DefaultMaxNodes)
	assert.NoError(t, err)
}

func TestBuildPlan_SelfCycle(t *testing.T) {
	reg := ir.NewRegistry(&ir.EntitySchema{Name: "employees", Relationships: []ir.RelationshipSchema{
		{Name: "manager", Cardinality: ir.ToOneOwning, Target: "employees", ForeignKey: "manager_id"},
	}})
	g := classified(t, reg, `{
		"data": {"type": "employees", "temp-id": "e1", "relationships": {"manager": {"data": {"type": "employees", "temp-id": "e1"}}}}
	}`)

	_, err := BuildPlan(g, DefaultMaxNodes)
	require.Error(t, err)

	var ce *DependencyCycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []ir.ResourceRef{
		{Type: "employees", ID: ir.Temporary("e1")},
		{Type: "employees", ID: ir.Temporary("e1")},
	}, ce.Path)
}

func TestBuildPlan_NodeQuota(t *testing.T) {
	g := classified(t, testutil.EmployeeRegistry(), `{
		"data": {"type": "employees", "relationships": {"positions": {"data": [
			{"type": "positions", "id": "1"}, {"type": "positions", "id": "2"}
		]}}}
	}`)

	_, err := BuildPlan(g, 2)
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))
	assert.Equal(t, "graph has 3 nodes > 2 limit", err.Error())

	_, err = BuildPlan(g, 0)
	assert.NoError(t, err, "zero disables the limit")
}

func TestBuildPlan_RequiresClassification(t *testing.T) {
	g, err := graph.BuildPayload(mustPayload(t, `{
		"data": {"type": "employees", "relationships": {"salary": {"data": {"type": "salaries", "id": "1"}}}}
	}`))
	require.NoError(t, err)

	_, err = BuildPlan(g, DefaultMaxNodes)
	assert.ErrorContains(t, err, "not classified")
}
