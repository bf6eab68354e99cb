package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("first_name", "can't be blank")
	err.Errors.Add("base", "Forced validation error")

	assert.Equal(t, []string{"base", "first_name"}, err.Errors.Fields())
	assert.Equal(t, "validation failed: base Forced validation error; first_name can't be blank", err.Error())
}

func TestOutcomeSuccessJSON(t *testing.T) {
	o := Outcome{
		RequestID: "req-1",
		Primary: &MutatedIdentity{
			Type: "employees", ID: "1", Verb: VerbCreate,
			Attributes: Attrs{"first_name": String("Joe")},
		},
		Sideloaded: []MutatedIdentity{
			{Type: "salaries", ID: "1", TempID: "abc123", Verb: VerbCreate, Attributes: Attrs{"base_rate": Float(15.5)}},
		},
	}
	require.True(t, o.Succeeded())
	assert.Len(t, o.Sideloads("salaries"), 1)
	assert.Empty(t, o.Sideloads("teams"))

	out, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t,
		`{"data":{"attributes":{"first_name":"Joe"},"id":"1","method":"create","type":"employees"},`+
			`"included":[{"attributes":{"base_rate":15.5},"id":"1","method":"create","temp-id":"abc123","type":"salaries"}],`+
			`"outcome":"success","request_id":"req-1"}`,
		string(out))
}

func TestOutcomeFailureJSON(t *testing.T) {
	o := Outcome{
		Failure: &Failure{
			Resource: ResourceRef{Type: "employees", ID: Persisted("1")},
			Errors:   FieldErrors{"base": {"Forced validation error"}},
		},
	}
	require.False(t, o.Succeeded())

	out, err := MarshalCanonical(o.Document())
	require.NoError(t, err)
	assert.Equal(t,
		`{"failure":{"errors":{"base":["Forced validation error"]},"resource":{"id":"1","type":"employees"}},"outcome":"failure"}`,
		string(out))
}
