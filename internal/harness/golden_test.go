package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestwrite/internal/engine"
	"github.com/roach88/nestwrite/internal/ir"
)

// Golden files live in testdata/golden. Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{
		"nested_owned_create",
		"nested_owning_chain",
		"destroy_forced_failure",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadFixture(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot(t *testing.T) {
	result := &Result{
		Outcome: &ir.Outcome{
			RequestID: "req-9",
			Primary:   &ir.MutatedIdentity{Type: "teams", ID: "3", Verb: ir.VerbUpdate, Attributes: ir.Attrs{"name": ir.String("Ops")}},
		},
		Writes: engine.WriteLog{
			{Seq: 1, Op: engine.OpUpdate, Entity: "teams", Key: "3"},
			{Seq: 2, Op: engine.OpInsertJoin, Entity: "employee_teams", Key: "1", Target: "3"},
		},
	}

	data, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"outcome":{"data":{"attributes":{"name":"Ops"},"id":"3","method":"update","type":"teams"},"included":[],"outcome":"success"},`+
			`"scenario_name":"snap","writes":[{"entity":"teams","key":"3","op":"update","seq":1},`+
			`{"entity":"employee_teams","key":"1","op":"insert_join","seq":2,"target":"3"}]}`,
		string(data))
}

func TestMarshalSnapshot_Error(t *testing.T) {
	data, err := MarshalSnapshot("bad", &Result{Err: errors.New("INVALID_PAYLOAD: primary resource has no type")})
	require.NoError(t, err)
	assert.Equal(t, `{"error":"INVALID_PAYLOAD: primary resource has no type","scenario_name":"bad","writes":[]}`, string(data))
}
