package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/graph"
	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/testutil"
)

var (
	teamMembers  = ir.JoinTable{Table: "employee_teams", OwnerKey: "team_id", TargetKey: "employee_id"}
	employeeTeam = ir.JoinTable{Table: "employee_teams", OwnerKey: "employee_id", TargetKey: "team_id"}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPersister(s *memStorage, reg *ir.Registry, opts ...Option) *Persister {
	if reg == nil {
		reg = testutil.EmployeeRegistry()
	}
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithRequestIDs(testutil.NewSequentialRequestIDs("")),
		WithLogger(quietLogger()),
	}
	return New(s, reg, append(base, opts...)...)
}

func mustPayload(t *testing.T, src string) ir.Payload {
	t.Helper()
	p, err := ir.ParsePayload([]byte(src))
	require.NoError(t, err)
	return p
}

func types(ms []ir.MutatedIdentity) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Type
	}
	return out
}

func TestPersist_CreateWithOwnedChild(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees",
			"attributes": {"first_name": "Jane"},
			"relationships": {
				"salary": {"data": {"type": "salaries", "temp-id": "s1", "method": "create"}}
			}
		},
		"included": [
			{"type": "salaries", "temp-id": "s1", "attributes": {"base_rate": 15.5}}
		]
	}`))
	require.NoError(t, err)
	require.True(t, res.Outcome.Succeeded())

	assert.Equal(t, 1, s.count("employees"))
	assert.Equal(t, 1, s.count("salaries"))
	salary, ok := s.row("salaries", "1")
	require.True(t, ok)
	assert.Equal(t, ir.String("1"), salary["employee_id"])

	assert.Equal(t, "req-1", res.Outcome.RequestID)
	assert.Equal(t, &ir.MutatedIdentity{
		Type:       "employees",
		ID:         "1",
		Verb:       ir.VerbCreate,
		Attributes: ir.Attrs{"first_name": ir.String("Jane")},
	}, res.Outcome.Primary)
	assert.Equal(t, []ir.MutatedIdentity{{
		Type:       "salaries",
		ID:         "1",
		TempID:     "s1",
		Verb:       ir.VerbCreate,
		Attributes: ir.Attrs{"base_rate": ir.Float(15.5), "employee_id": ir.String("1")},
	}}, res.Outcome.Sideloaded)

	assert.Equal(t, WriteLog{
		{Seq: 1, Op: OpInsert, Entity: "employees", Key: "1"},
		{Seq: 2, Op: OpInsert, Entity: "salaries", Key: "1"},
	}, res.Writes)
	assert.Equal(t, 1, s.committed)
}

func TestPersist_NestedCreateOrdersWrites(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees",
			"attributes": {"first_name": "Ann"},
			"relationships": {
				"positions": {"data": [{"type": "positions", "temp-id": "p1"}]}
			}
		},
		"included": [
			{
				"type": "positions", "temp-id": "p1",
				"attributes": {"title": "Engineer"},
				"relationships": {"department": {"data": {"type": "departments", "temp-id": "d1"}}}
			},
			{"type": "departments", "temp-id": "d1", "attributes": {"name": "R&D"}}
		]
	}`))
	require.NoError(t, err)
	require.True(t, res.Outcome.Succeeded())

	// The position needs both its owner and its department first.
	assert.Equal(t, []string{"employees", "departments", "positions"}, res.Writes.Entities())

	position, _ := s.row("positions", "1")
	assert.Equal(t, ir.String("1"), position["employee_id"])
	assert.Equal(t, ir.String("1"), position["department_id"])

	assert.Equal(t, []string{"departments", "positions"}, types(res.Outcome.Sideloaded))
}

func TestPersist_OwningChainWritesTargetsFirst(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "positions", "temp-id": "p1",
			"attributes": {"title": "Lead"},
			"relationships": {"employee": {"data": {"type": "employees", "temp-id": "e1"}}}
		},
		"included": [
			{
				"type": "employees", "temp-id": "e1",
				"attributes": {"first_name": "Bo"},
				"relationships": {"classification": {"data": {"type": "classifications", "temp-id": "c1"}}}
			},
			{"type": "classifications", "temp-id": "c1", "attributes": {"description": "Full time"}}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"classifications", "employees", "positions"}, res.Writes.Entities())
	employee, _ := s.row("employees", "1")
	assert.Equal(t, ir.String("1"), employee["classification_id"])
	position, _ := s.row("positions", "1")
	assert.Equal(t, ir.String("1"), position["employee_id"])

	assert.Equal(t, "p1", res.Outcome.Primary.TempID)
}

func seedTeam(s *memStorage) {
	s.seed("teams", ir.Attrs{"name": ir.String("Core")})
	for _, name := range []string{"A", "B", "C", "D"} {
		key := s.seed("employees", ir.Attrs{"first_name": ir.String(name)})
		s.seedJoin(teamMembers, "1", key)
	}
}

func TestPersist_ManyToManyMixedVerbs(t *testing.T) {
	s := newMemStorage()
	seedTeam(s)
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "teams", "id": "1",
			"attributes": {"name": "Core Platform"},
			"relationships": {"employees": {"data": [
				{"type": "employees", "temp-id": "new", "method": "create"},
				{"type": "employees", "id": "1", "method": "update"},
				{"type": "employees", "id": "2", "method": "disassociate"},
				{"type": "employees", "id": "3", "method": "destroy"},
				{"type": "employees", "id": "4", "method": "update"}
			]}}
		},
		"included": [
			{"type": "employees", "temp-id": "new", "attributes": {"first_name": "Nia"}},
			{"type": "employees", "id": "1", "attributes": {"age": 30}}
		]
	}`))
	require.NoError(t, err)
	require.True(t, res.Outcome.Succeeded())

	require.Len(t, res.Reconciled, 1)
	assert.Equal(t, ReconcileResult{
		Table:    "employee_teams",
		Owner:    "1",
		Inserted: []string{"5"},
		Removed:  []string{"2", "3"},
		Retained: []string{"1", "4"},
	}, res.Reconciled[0])

	assert.Equal(t, 3, s.joinCount("employee_teams"))
	assert.Equal(t, 4, s.count("employees"))
	_, ok := s.row("employees", "3")
	assert.False(t, ok, "destroyed target is deleted")
	_, ok = s.row("employees", "2")
	assert.True(t, ok, "disassociated target survives")

	tx, _ := s.Begin(context.Background())
	members, err := tx.ListJoinRows(context.Background(), teamMembers, "1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "4", "5"}, members)

	assert.Equal(t, []string{"employees", "employees", "employees"}, types(res.Outcome.Sideloaded))
	assert.Equal(t, "new", res.Outcome.Sideloaded[0].TempID)
	assert.Equal(t, "1", res.Outcome.Sideloaded[1].ID)
	assert.Equal(t, "4", res.Outcome.Sideloaded[2].ID)
}

func TestPersist_DestroyRollsBackOnValidationFailure(t *testing.T) {
	s := newMemStorage()
	s.seed("employees", ir.Attrs{"first_name": ir.String("Jane")})
	s.seed("positions", ir.Attrs{"title": ir.String("Engineer"), "employee_id": ir.String("1")})
	s.fail = func(op Op, entity, key string, attrs ir.Attrs) error {
		if op == OpDelete && entity == "employees" {
			return ir.NewValidationError("base", "Forced validation error")
		}
		return nil
	}
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "id": "1", "method": "destroy",
			"relationships": {"positions": {"data": [{"type": "positions", "id": "1", "method": "destroy"}]}}
		}
	}`))
	require.NoError(t, err)
	require.False(t, res.Outcome.Succeeded())

	assert.Equal(t, ir.ResourceRef{Type: "employees", ID: ir.Persisted("1")}, res.Outcome.Failure.Resource)
	assert.Equal(t, ir.FieldErrors{"base": {"Forced validation error"}}, res.Outcome.Failure.Errors)
	assert.Nil(t, res.Outcome.Primary)

	assert.Equal(t, 1, s.count("employees"))
	assert.Equal(t, 1, s.count("positions"), "child delete is rolled back")
	assert.Equal(t, 1, s.rolledBack)
	assert.Equal(t, 0, s.committed)
	assert.Len(t, res.Writes.Of(OpDelete), 1)
}

func TestPersist_NestedFailureRollsBackEverything(t *testing.T) {
	s := newMemStorage()
	s.fail = func(op Op, entity, key string, attrs ir.Attrs) error {
		if entity == "positions" && ir.Equal(attrs["title"], ir.String("bad")) {
			return ir.NewValidationError("title", "is invalid")
		}
		return nil
	}
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "attributes": {"first_name": "Jo"},
			"relationships": {"positions": {"data": [
				{"type": "positions", "temp-id": "ok"},
				{"type": "positions", "temp-id": "bad"}
			]}}
		},
		"included": [
			{"type": "positions", "temp-id": "ok", "attributes": {"title": "fine"}},
			{"type": "positions", "temp-id": "bad", "attributes": {"title": "bad"}}
		]
	}`))
	require.NoError(t, err)
	require.NotNil(t, res.Outcome.Failure)

	assert.Equal(t, ir.ResourceRef{Type: "positions", ID: ir.Temporary("bad")}, res.Outcome.Failure.Resource)
	assert.Equal(t, ir.FieldErrors{"title": {"is invalid"}}, res.Outcome.Failure.Errors)
	assert.Equal(t, 0, s.count("employees"))
	assert.Equal(t, 0, s.count("positions"))
	assert.Len(t, res.Writes, 2, "employee and first position were written before the failure")
}

func TestPersist_StorageErrorIsReturned(t *testing.T) {
	s := newMemStorage()
	s.fail = func(op Op, entity, key string, attrs ir.Attrs) error {
		return errors.New("disk full")
	}
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{"data": {"type": "employees", "attributes": {"first_name": "Jo"}}}`))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsStorageError(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, s.rolledBack)
}

func TestPersist_JoinDeleteErrorKeepsOp(t *testing.T) {
	s := newMemStorage()
	s.seed("employees", ir.Attrs{"first_name": ir.String("Jane")})
	s.seed("teams", ir.Attrs{"name": ir.String("Core")})
	s.seedJoin(employeeTeam, "1", "1")
	s.fail = func(op Op, entity, key string, attrs ir.Attrs) error {
		if op == OpDeleteJoin {
			return errors.New("connection reset")
		}
		return nil
	}
	p := newTestPersister(s, nil)

	_, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "id": "1",
			"relationships": {"teams": {"data": [{"type": "teams", "id": "1", "method": "disassociate"}]}}
		}
	}`))
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpDeleteJoin, se.Op)
	assert.Equal(t, ir.ResourceRef{Type: "employees", ID: ir.Persisted("1")}, se.Resource)
	assert.Equal(t, 1, s.joinCount("employee_teams"))
	assert.Equal(t, 1, s.rolledBack)
}

func TestPersist_PolymorphicCreate(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "attributes": {"first_name": "Lee"},
			"relationships": {"workspace": {"data": {"type": "home_offices", "temp-id": "w1"}}}
		},
		"included": [{"type": "home_offices", "temp-id": "w1", "attributes": {"address": "12 Elm"}}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"home_offices", "employees"}, res.Writes.Entities())
	employee, _ := s.row("employees", "1")
	assert.Equal(t, ir.String("1"), employee["workspace_id"])
	assert.Equal(t, ir.String("home_offices"), employee["workspace_type"])
	assert.Equal(t, []string{"home_offices"}, types(res.Outcome.Sideloaded))
}

func TestPersist_UnknownPolymorphicTypeRejectedBeforeIO(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil)

	_, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "attributes": {"first_name": "Lee"},
			"relationships": {"workspace": {"data": {"type": "garages", "temp-id": "g1"}}}
		},
		"included": [{"type": "garages", "temp-id": "g1"}]
	}`))
	require.Error(t, err)
	assert.True(t, graph.IsUnknownPolymorphicType(err))
	assert.Equal(t, 0, s.begins)
}

func TestPersist_DisassociatePolymorphicClearsTypeColumn(t *testing.T) {
	s := newMemStorage()
	s.seed("offices", ir.Attrs{"address": ir.String("HQ")})
	s.seed("employees", ir.Attrs{
		"first_name":     ir.String("Lee"),
		"workspace_id":   ir.String("1"),
		"workspace_type": ir.String("offices"),
	})
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "id": "1",
			"relationships": {"workspace": {"data": {"type": "offices", "id": "1", "method": "disassociate"}}}
		}
	}`))
	require.NoError(t, err)

	employee, _ := s.row("employees", "1")
	assert.Equal(t, ir.Null{}, employee["workspace_id"])
	assert.Equal(t, ir.Null{}, employee["workspace_type"])
	assert.Equal(t, 1, s.count("offices"))
	assert.Equal(t, ir.Attrs{"workspace_id": ir.Null{}, "workspace_type": ir.Null{}}, res.Outcome.Primary.Attributes)
	assert.Empty(t, res.Outcome.Sideloaded)
}

func TestPersist_NestedDestroyAndDisassociate(t *testing.T) {
	s := newMemStorage()
	s.seed("employees", ir.Attrs{"first_name": ir.String("Jane")})
	s.seed("positions", ir.Attrs{"title": ir.String("One"), "employee_id": ir.String("1")})
	s.seed("positions", ir.Attrs{"title": ir.String("Two"), "employee_id": ir.String("1")})
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "id": "1",
			"relationships": {"positions": {"data": [
				{"type": "positions", "id": "1", "method": "destroy"},
				{"type": "positions", "id": "2", "method": "disassociate"}
			]}}
		}
	}`))
	require.NoError(t, err)

	_, ok := s.row("positions", "1")
	assert.False(t, ok)
	two, _ := s.row("positions", "2")
	assert.Equal(t, ir.Null{}, two["employee_id"])

	var ops []Op
	for _, w := range res.Writes {
		ops = append(ops, w.Op)
	}
	assert.Equal(t, []Op{OpUpdate, OpDelete, OpSetForeignKey}, ops)
	assert.Empty(t, res.Outcome.Sideloaded)
}

func seedSideloadFixture(s *memStorage) {
	s.seed("classifications", ir.Attrs{"description": ir.String("Part time")})
	s.seed("departments", ir.Attrs{"name": ir.String("Ops")})
	s.seed("teams", ir.Attrs{"name": ir.String("Core")})
	s.seed("employees", ir.Attrs{"first_name": ir.String("Jane")})
	s.seed("positions", ir.Attrs{"title": ir.String("One"), "employee_id": ir.String("1")})
	s.seed("positions", ir.Attrs{"title": ir.String("Two"), "employee_id": ir.String("1")})
}

const sideloadPayload = `{
	"data": {
		"type": "employees", "id": "1",
		"attributes": {"age": 41},
		"relationships": {
			"classification": {"data": {"type": "classifications", "id": "1"}},
			"positions": {"data": [
				{"type": "positions", "id": "1"},
				{"type": "positions", "id": "2", "method": "disassociate"}
			]},
			"teams": {"data": [{"type": "teams", "id": "1"}]}
		}
	},
	"included": [
		{
			"type": "positions", "id": "1",
			"attributes": {"title": "Lead"},
			"relationships": {"department": {"data": {"type": "departments", "id": "1"}}}
		},
		{"type": "departments", "id": "1", "attributes": {"name": "Platform"}}
	]
}`

func TestPersist_SideloadsOnlyMutatedNodes(t *testing.T) {
	s := newMemStorage()
	seedSideloadFixture(s)
	p := newTestPersister(s, nil)

	res, err := p.Persist(context.Background(), mustPayload(t, sideloadPayload))
	require.NoError(t, err)

	assert.Equal(t, []string{"positions", "departments"}, types(res.Outcome.Sideloaded))
	assert.Equal(t, ir.Attrs{
		"title":         ir.String("Lead"),
		"employee_id":   ir.String("1"),
		"department_id": ir.String("1"),
	}, res.Outcome.Sideloaded[0].Attributes)
	assert.Equal(t, ir.Attrs{"age": ir.Int(41), "classification_id": ir.String("1")}, res.Outcome.Primary.Attributes)
	assert.Equal(t, ir.VerbUpdate, res.Outcome.Primary.Verb)

	// Linked nodes are associated without being written.
	assert.Equal(t, -1, res.Writes.First(OpUpdate, "classifications"))
	assert.Equal(t, -1, res.Writes.First(OpUpdate, "teams"))
	assert.Equal(t, 1, s.joinCount("employee_teams"))
}

func TestPersist_BareVerbUpdateResavesReferences(t *testing.T) {
	s := newMemStorage()
	seedSideloadFixture(s)
	p := newTestPersister(s, nil, WithGraphOptions(graph.WithBareVerb(ir.VerbUpdate)))

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees", "id": "1",
			"relationships": {"classification": {"data": {"type": "classifications", "id": "1"}}}
		}
	}`))
	require.NoError(t, err)

	assert.NotEqual(t, -1, res.Writes.First(OpUpdate, "classifications"))
	require.Len(t, res.Outcome.Sideloaded, 1)
	assert.Equal(t, "classifications", res.Outcome.Sideloaded[0].Type)
	assert.Equal(t, ir.VerbUpdate, res.Outcome.Sideloaded[0].Verb)
}

func TestPersist_LinkingTwiceInsertsOnePair(t *testing.T) {
	s := newMemStorage()
	s.seed("employees", ir.Attrs{"first_name": ir.String("Jane")})
	s.seed("teams", ir.Attrs{"name": ir.String("Core")})
	s.seed("teams", ir.Attrs{"name": ir.String("Infra")})
	s.seed("teams", ir.Attrs{"name": ir.String("Web")})
	s.seedJoin(employeeTeam, "1", "2")
	s.seedJoin(employeeTeam, "1", "3")
	p := newTestPersister(s, nil)

	payload := `{
		"data": {
			"type": "employees", "id": "1",
			"relationships": {"teams": {"data": [
				{"type": "teams", "id": "1", "method": "link"},
				{"type": "teams", "id": "1", "method": "link"},
				{"type": "teams", "id": "2"}
			]}}
		}
	}`
	res, err := p.Persist(context.Background(), mustPayload(t, payload))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.Reconciled[0].Inserted)
	assert.Equal(t, []string{"2"}, res.Reconciled[0].Retained)

	// Team 3 is not mentioned and keeps its pair.
	assert.Equal(t, 3, s.joinCount("employee_teams"))

	res, err = p.Persist(context.Background(), mustPayload(t, payload))
	require.NoError(t, err)
	assert.Empty(t, res.Reconciled[0].Inserted)
	assert.Equal(t, 3, s.joinCount("employee_teams"))
}

func TestPersist_DependencyCycleRejectedBeforeIO(t *testing.T) {
	reg := ir.NewRegistry(
		&ir.EntitySchema{Name: "a", Relationships: []ir.RelationshipSchema{
			{Name: "b", Cardinality: ir.ToOneOwning, Target: "b", ForeignKey: "b_id"},
		}},
		&ir.EntitySchema{Name: "b", Relationships: []ir.RelationshipSchema{
			{Name: "a", Cardinality: ir.ToOneOwning, Target: "a", ForeignKey: "a_id"},
		}},
	)
	s := newMemStorage()
	p := newTestPersister(s, reg)

	_, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {"type": "a", "temp-id": "a1", "relationships": {"b": {"data": {"type": "b", "temp-id": "b1"}}}},
		"included": [{"type": "b", "temp-id": "b1", "relationships": {"a": {"data": {"type": "a", "temp-id": "a1"}}}}]
	}`))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Equal(t, "dependency cycle: a(temp-id:a1) → b(temp-id:b1) → a(temp-id:a1)", err.Error())
	assert.Equal(t, 0, s.begins)
}

// A through target that is still waiting on its owning prerequisites gets
// its join row once the walk completes.
func TestPersist_DeferredReconcile(t *testing.T) {
	tagPosts := ir.JoinTable{Table: "post_tags", OwnerKey: "tag_id", TargetKey: "post_id"}
	reg := ir.NewRegistry(
		&ir.EntitySchema{Name: "posts", Relationships: []ir.RelationshipSchema{
			{Name: "primary_tag", Cardinality: ir.ToOneOwning, Target: "tags", ForeignKey: "primary_tag_id"},
		}},
		&ir.EntitySchema{Name: "tags", Relationships: []ir.RelationshipSchema{
			{Name: "posts", Cardinality: ir.ToManyThrough, Target: "posts", Through: &tagPosts},
		}},
	)
	s := newMemStorage()
	p := newTestPersister(s, reg)

	res, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "posts", "temp-id": "p1",
			"relationships": {"primary_tag": {"data": {"type": "tags", "temp-id": "t1"}}}
		},
		"included": [{
			"type": "tags", "temp-id": "t1",
			"relationships": {"posts": {"data": [{"type": "posts", "temp-id": "p1"}]}}
		}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"tags", "posts", "post_tags"}, res.Writes.Entities())
	require.Len(t, res.Reconciled, 1)
	assert.Equal(t, []string{"1"}, res.Reconciled[0].Inserted)
	post, _ := s.row("posts", "1")
	assert.Equal(t, ir.String("1"), post["primary_tag_id"])
}

func TestPersist_BuildErrorRejectedBeforeIO(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil)

	_, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees",
			"relationships": {"salary": {"data": {"type": "salaries", "temp-id": "missing"}}}
		}
	}`))
	require.Error(t, err)
	assert.True(t, graph.HasBuildCode(err, graph.ErrCodeUnresolvedReference))
	assert.Equal(t, 0, s.begins)
}

func TestPersist_GraphTooLarge(t *testing.T) {
	s := newMemStorage()
	p := newTestPersister(s, nil, WithMaxNodes(1))

	_, err := p.Persist(context.Background(), mustPayload(t, `{
		"data": {
			"type": "employees",
			"relationships": {"classification": {"data": {"type": "classifications", "id": "1"}}}
		}
	}`))
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))

	var ge *GraphTooLargeError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "req-1", ge.RequestID)
	assert.Equal(t, 2, ge.Nodes)
	assert.Equal(t, 0, s.begins)
}

func TestPersister_RunBuiltGraph(t *testing.T) {
	s := newMemStorage()
	reg := testutil.EmployeeRegistry()
	p := newTestPersister(s, reg)

	g, err := graph.Build(ir.ResourceSpec{
		Type:       "classifications",
		Attributes: ir.Attrs{"description": ir.String("Contractor")},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, graph.Classify(g, reg))

	res, err := p.Run(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, "1", res.Outcome.Primary.ID)
	assert.Equal(t, 1, s.count("classifications"))
}
