package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/ir"
	"github.com/roach88/nestwrite/internal/testutil"
)

func TestCreateTables_SQLite(t *testing.T) {
	stmts, err := NewCompiler(SQLite).CreateTables(testutil.EmployeeRegistry())
	require.NoError(t, err)

	assert.Equal(t, []string{
		`CREATE TABLE IF NOT EXISTS "classifications" ("id" INTEGER PRIMARY KEY, "description" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "departments" ("id" INTEGER PRIMARY KEY, "name" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "employees" ("id" INTEGER PRIMARY KEY, "first_name" TEXT, "last_name" TEXT, "age" INTEGER, ` +
			`"classification_id" INTEGER REFERENCES "classifications" ("id"), "workspace_id" INTEGER, "workspace_type" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "home_offices" ("id" INTEGER PRIMARY KEY, "address" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "offices" ("id" INTEGER PRIMARY KEY, "address" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "positions" ("id" INTEGER PRIMARY KEY, "title" TEXT, ` +
			`"employee_id" INTEGER REFERENCES "employees" ("id"), "department_id" INTEGER REFERENCES "departments" ("id"))`,
		`CREATE TABLE IF NOT EXISTS "salaries" ("id" INTEGER PRIMARY KEY, "base_rate" REAL, "overtime_rate" REAL, ` +
			`"employee_id" INTEGER REFERENCES "employees" ("id"))`,
		`CREATE TABLE IF NOT EXISTS "teams" ("id" INTEGER PRIMARY KEY, "name" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "employee_teams" ("employee_id" INTEGER NOT NULL REFERENCES "employees" ("id"), ` +
			`"team_id" INTEGER NOT NULL REFERENCES "teams" ("id"), PRIMARY KEY ("employee_id", "team_id"))`,
		`CREATE INDEX IF NOT EXISTS "idx_employees_classification_id" ON "employees" ("classification_id")`,
		`CREATE INDEX IF NOT EXISTS "idx_employees_workspace_id" ON "employees" ("workspace_id")`,
		`CREATE INDEX IF NOT EXISTS "idx_positions_employee_id" ON "positions" ("employee_id")`,
		`CREATE INDEX IF NOT EXISTS "idx_positions_department_id" ON "positions" ("department_id")`,
		`CREATE INDEX IF NOT EXISTS "idx_salaries_employee_id" ON "salaries" ("employee_id")`,
		`CREATE INDEX IF NOT EXISTS "idx_employee_teams_team_id" ON "employee_teams" ("team_id")`,
	}, stmts)
}

func TestCreateTables_PostgresOmitsReferences(t *testing.T) {
	stmts, err := NewCompiler(Postgres).CreateTables(testutil.EmployeeRegistry())
	require.NoError(t, err)

	assert.Contains(t, stmts,
		`CREATE TABLE IF NOT EXISTS "salaries" ("id" BIGSERIAL PRIMARY KEY, "base_rate" DOUBLE PRECISION, "overtime_rate" DOUBLE PRECISION, "employee_id" BIGINT)`)
	assert.Contains(t, stmts,
		`CREATE TABLE IF NOT EXISTS "employee_teams" ("employee_id" BIGINT NOT NULL, "team_id" BIGINT NOT NULL, PRIMARY KEY ("employee_id", "team_id"))`)
	for _, s := range stmts {
		assert.NotContains(t, s, "REFERENCES")
	}
}

func TestCreateTables_UnsupportedFieldType(t *testing.T) {
	reg := ir.NewRegistry(&ir.EntitySchema{Name: "a", Fields: []ir.FieldSpec{{Name: "x", Type: "blob"}}})
	_, err := NewCompiler(SQLite).CreateTables(reg)
	assert.EqualError(t, err, `a.x: unsupported field type "blob"`)
}

func TestCreateTables_OverriddenTableNames(t *testing.T) {
	reg := ir.NewRegistry(
		&ir.EntitySchema{Name: "teams", Table: "squads", Relationships: []ir.RelationshipSchema{
			{Name: "members", Cardinality: ir.ToManyThrough, Target: "people",
				Through: &ir.JoinTable{Table: "memberships", OwnerKey: "squad_id", TargetKey: "person_id"}},
		}},
		&ir.EntitySchema{Name: "people"},
	)
	stmts, err := NewCompiler(SQLite).CreateTables(reg)
	require.NoError(t, err)
	assert.Contains(t, stmts,
		`CREATE TABLE IF NOT EXISTS "memberships" ("squad_id" INTEGER NOT NULL REFERENCES "squads" ("id"), `+
			`"person_id" INTEGER NOT NULL REFERENCES "people" ("id"), PRIMARY KEY ("squad_id", "person_id"))`)
}
