package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = List{String("a"), Int(1)}
	var _ Value = Attrs{"key": String("value")}
}

func TestAttrsSortedKeys(t *testing.T) {
	obj := Attrs{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
	assert.Empty(t, Attrs{}.SortedKeys())
}

func TestAttrsCloneAndMerge(t *testing.T) {
	var nilAttrs Attrs
	clone := nilAttrs.Clone()
	require.NotNil(t, clone)
	assert.Empty(t, clone)

	base := Attrs{"a": Int(1), "b": Int(2)}
	merged := base.Merge(Attrs{"b": Int(3), "c": Null{}})

	assert.Equal(t, Attrs{"a": Int(1), "b": Int(3), "c": Null{}}, merged)
	assert.Equal(t, Attrs{"a": Int(1), "b": Int(2)}, base, "merge must not mutate the receiver")
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"bool", true, Bool(true)},
		{"int", 3, Int(3)},
		{"integral float", 15.0, Int(15)},
		{"fractional float", 15.75, Float(15.75)},
		{"json integer", json.Number("9007199254740993"), Int(9007199254740993)},
		{"json float", json.Number("30.5"), Float(30.5)},
		{"json exponent", json.Number("1e2"), Int(100)},
		{"list", []any{"a", 1}, List{String("a"), Int(1)}},
		{"object", map[string]any{"k": nil}, Attrs{"k": Null{}}},
		{"already a value", String("v"), String("v")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyRejects(t *testing.T) {
	_, err := FromAny(struct{}{})
	assert.Error(t, err)

	_, err = FromAny(json.Number("99999999999999999999"))
	assert.Error(t, err)

	_, err = FromAny(map[string]any{"nested": []any{struct{}{}}})
	assert.ErrorContains(t, err, `["nested"]`)
}

func TestToGoRoundTrip(t *testing.T) {
	v := Attrs{
		"name": String("Joe"),
		"age":  Int(30),
		"rate": Float(15.75),
		"tags": List{String("a")},
		"gone": Null{},
	}
	got := ToGo(v)
	assert.Equal(t, map[string]any{
		"name": "Joe",
		"age":  int64(30),
		"rate": 15.75,
		"tags": []any{"a"},
		"gone": nil,
	}, got)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(15), Float(15)))
	assert.True(t, Equal(Float(15), Int(15)))
	assert.True(t, Equal(nil, Null{}))
	assert.True(t, Equal(Attrs{"a": List{Int(1)}}, Attrs{"a": List{Int(1)}}))
	assert.False(t, Equal(String("1"), Int(1)))
	assert.False(t, Equal(Null{}, String("")))
	assert.False(t, Equal(Attrs{"a": Int(1)}, Attrs{"b": Int(1)}))
	assert.False(t, Equal(List{Int(1)}, List{Int(1), Int(2)}))
}

func TestAttrsJSON(t *testing.T) {
	var a Attrs
	require.NoError(t, json.Unmarshal([]byte(`{"base_rate": 15.00, "count": 9007199254740993, "note": null}`), &a))

	assert.Equal(t, Int(15), a["base_rate"])
	assert.Equal(t, Int(9007199254740993), a["count"])
	assert.Equal(t, Null{}, a["note"])

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"base_rate":15,"count":9007199254740993,"note":null}`, string(out))
}

func TestAttrsYAML(t *testing.T) {
	var a Attrs
	require.NoError(t, yaml.Unmarshal([]byte("base_rate: 15.75\ntitle: specialist\nactive: true\n"), &a))

	assert.Equal(t, Attrs{
		"base_rate": Float(15.75),
		"title":     String("specialist"),
		"active":    Bool(true),
	}, a)
}
