package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/testutil"
)

func compileString(t *testing.T, src string) (*ir.Registry, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return CompileSchema(v)
}

func TestCompileSchema_Defaults(t *testing.T) {
	reg, err := compileString(t, `
entity: employees: {
	fields: {
		first_name: {type: "string", required: true}
		age: "int"
	}
	relationships: {
		classification: {kind: "belongs_to", target: "classifications"}
		workspace: {kind: "belongs_to", polymorphic: true, types: {offices: "offices"}}
		salary: {kind: "has_one", target: "salaries"}
		positions: {kind: "has_many", target: "positions"}
		teams: {kind: "many_to_many", target: "teams"}
	}
}
entity: classifications: {}
`)
	require.NoError(t, err)

	emp, ok := reg.Entity("employees")
	require.True(t, ok)
	assert.Equal(t, "employees", emp.Table)
	assert.Equal(t, []ir.FieldSpec{
		{Name: "first_name", Type: ir.FieldString, Required: true},
		{Name: "age", Type: ir.FieldInt},
	}, emp.Fields)

	classification, _ := emp.Relationship("classification")
	assert.Equal(t, ir.ToOneOwning, classification.Cardinality)
	assert.Equal(t, "classification_id", classification.ForeignKey)

	workspace, _ := emp.Relationship("workspace")
	assert.True(t, workspace.Polymorphic)
	assert.Equal(t, "workspace_id", workspace.ForeignKey)
	assert.Equal(t, "workspace_type", workspace.TypeColumn)
	assert.Equal(t, map[string]string{"offices": "offices"}, workspace.Types)

	salary, _ := emp.Relationship("salary")
	assert.Equal(t, ir.ToOneOwned, salary.Cardinality)
	assert.Equal(t, "employee_id", salary.ForeignKey)

	positions, _ := emp.Relationship("positions")
	assert.Equal(t, ir.ToManyOwned, positions.Cardinality)
	assert.Equal(t, "employee_id", positions.ForeignKey)

	teams, _ := emp.Relationship("teams")
	assert.Equal(t, ir.ToManyThrough, teams.Cardinality)
	require.NotNil(t, teams.Through)
	assert.Equal(t, ir.JoinTable{Table: "employee_teams", OwnerKey: "employee_id", TargetKey: "team_id"}, *teams.Through)

	// Relationship order follows the source.
	var names []string
	for _, rel := range emp.Relationships {
		names = append(names, rel.Name)
	}
	assert.Equal(t, []string{"classification", "workspace", "salary", "positions", "teams"}, names)
}

func TestCompileSchema_Overrides(t *testing.T) {
	reg, err := compileString(t, `
entity: teams: {
	table: "squads"
	relationships: members: {
		kind: "many_to_many"
		target: "employees"
		through: "memberships"
		owner_key: "squad_id"
		target_key: "member_id"
	}
}
entity: employees: relationships: boss: {kind: "belongs_to", target: "employees", foreign_key: "manager_id"}
`)
	require.NoError(t, err)

	teams, _ := reg.Entity("teams")
	assert.Equal(t, "squads", teams.Table)
	members, _ := teams.Relationship("members")
	assert.Equal(t, ir.JoinTable{Table: "memberships", OwnerKey: "squad_id", TargetKey: "member_id"}, *members.Through)

	boss, ok := reg.SchemaFor("employees", "boss")
	require.True(t, ok)
	assert.Equal(t, "manager_id", boss.ForeignKey)
}

func TestCompileSchema_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"no entities", `other: 1`, "schema declares no entities"},
		{"unknown kind", `entity: a: relationships: b: {kind: "has_few", target: "b"}`, "unknown relationship kind"},
		{"missing target", `entity: a: relationships: b: {kind: "belongs_to"}`, "target is required"},
		{"polymorphic with target", `entity: a: relationships: b: {kind: "belongs_to", polymorphic: true, target: "b", types: {b: "b"}}`, "name their targets in types"},
		{"field without type", `entity: a: fields: b: {required: true}`, "field type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestSingular(t *testing.T) {
	assert.Equal(t, "employee", Singular("employees"))
	assert.Equal(t, "salary", Singular("salaries"))
	assert.Equal(t, "position", Singular("positions"))
}

func TestLoadDir_FixtureSchema(t *testing.T) {
	result, err := LoadDir(testutil.SchemaDir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)

	want := testutil.EmployeeRegistry()
	assert.Equal(t, want.Names(), result.Registry.Names())
	for _, name := range want.Names() {
		got, _ := result.Registry.Entity(name)
		expected, _ := want.Entity(name)
		assert.Equal(t, expected, got, name)
	}
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir("does-not-exist")
	assert.Error(t, err)

	_, err = LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files found")
}
