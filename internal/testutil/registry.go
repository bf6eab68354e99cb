package testutil

import "github.com/roach88/nestwrite/internal/ir"

// SchemaDir is the CUE fixture schema, relative to a package under internal/.
const SchemaDir = "../../testdata/schema"

// EmployeeRegistry returns the registry that testdata/schema compiles to:
// employees with a classification, a polymorphic workspace, one salary,
// many positions and many teams through employee_teams.
func EmployeeRegistry() *ir.Registry {
	employeeTeams := ir.JoinTable{Table: "employee_teams", OwnerKey: "employee_id", TargetKey: "team_id"}
	teamEmployees := ir.JoinTable{Table: "employee_teams", OwnerKey: "team_id", TargetKey: "employee_id"}

	return ir.NewRegistry(
		&ir.EntitySchema{
			Name: "employees",
			Fields: []ir.FieldSpec{
				{Name: "first_name", Type: ir.FieldString, Required: true},
				{Name: "last_name", Type: ir.FieldString},
				{Name: "age", Type: ir.FieldInt},
			},
			Relationships: []ir.RelationshipSchema{
				{Name: "classification", Cardinality: ir.ToOneOwning, Target: "classifications", ForeignKey: "classification_id"},
				{
					Name:        "workspace",
					Cardinality: ir.ToOneOwning,
					Polymorphic: true,
					Types:       map[string]string{"offices": "offices", "home_offices": "home_offices"},
					ForeignKey:  "workspace_id",
					TypeColumn:  "workspace_type",
				},
				{Name: "salary", Cardinality: ir.ToOneOwned, Target: "salaries", ForeignKey: "employee_id"},
				{Name: "positions", Cardinality: ir.ToManyOwned, Target: "positions", ForeignKey: "employee_id"},
				{Name: "teams", Cardinality: ir.ToManyThrough, Target: "teams", Through: &employeeTeams},
			},
		},
		&ir.EntitySchema{
			Name: "salaries",
			Fields: []ir.FieldSpec{
				{Name: "base_rate", Type: ir.FieldFloat},
				{Name: "overtime_rate", Type: ir.FieldFloat},
			},
			Relationships: []ir.RelationshipSchema{
				{Name: "employee", Cardinality: ir.ToOneOwning, Target: "employees", ForeignKey: "employee_id"},
			},
		},
		&ir.EntitySchema{
			Name:   "positions",
			Fields: []ir.FieldSpec{{Name: "title", Type: ir.FieldString}},
			Relationships: []ir.RelationshipSchema{
				{Name: "employee", Cardinality: ir.ToOneOwning, Target: "employees", ForeignKey: "employee_id"},
				{Name: "department", Cardinality: ir.ToOneOwning, Target: "departments", ForeignKey: "department_id"},
			},
		},
		&ir.EntitySchema{
			Name:   "departments",
			Fields: []ir.FieldSpec{{Name: "name", Type: ir.FieldString}},
			Relationships: []ir.RelationshipSchema{
				{Name: "positions", Cardinality: ir.ToManyOwned, Target: "positions", ForeignKey: "department_id"},
			},
		},
		&ir.EntitySchema{
			Name:   "teams",
			Fields: []ir.FieldSpec{{Name: "name", Type: ir.FieldString, Required: true}},
			Relationships: []ir.RelationshipSchema{
				{Name: "employees", Cardinality: ir.ToManyThrough, Target: "employees", Through: &teamEmployees},
			},
		},
		&ir.EntitySchema{Name: "classifications", Fields: []ir.FieldSpec{{Name: "description", Type: ir.FieldString}}},
		&ir.EntitySchema{Name: "offices", Fields: []ir.FieldSpec{{Name: "address", Type: ir.FieldString}}},
		&ir.EntitySchema{Name: "home_offices", Fields: []ir.FieldSpec{{Name: "address", Type: ir.FieldString}}},
	)
}
