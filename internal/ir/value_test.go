package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "ada",
		"count": 3,
		"ratio": float64(4),
		"tags":  []any{"a", true},
	})
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		"name":  IRString("ada"),
		"count": IRInt(3),
		"ratio": IRInt(4),
		"tags":  IRArray{IRString("a"), IRBool(true)},
	}, v)
}

func TestFromGoRejectsFloatsAndNull(t *testing.T) {
	_, err := FromGo(1.25)
	assert.ErrorContains(t, err, "float")

	_, err = FromGo(map[string]any{"x": nil})
	assert.ErrorContains(t, err, "null")
}

func TestUnmarshalIRValueStrict(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`{"a":1.5}`))
	assert.Error(t, err)

	_, err = UnmarshalIRValue([]byte(`{"a":null}`))
	assert.Error(t, err)

	v, err := UnmarshalIRValue([]byte(`{"a":[1,"b"]}`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRArray{IRInt(1), IRString("b")}}, v)
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{"b": IRInt(1), "a": IRObject{"n": IRNull{}}}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"n":null},"b":1}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{"ctx": IRObject{"user": IRString("ada")}, "list": IRArray{IRInt(1)}}
	cp := orig.Clone()

	cp["ctx"].(IRObject)["user"] = IRString("bob")
	cp["list"].(IRArray)[0] = IRInt(2)

	assert.Equal(t, IRString("ada"), orig["ctx"].(IRObject)["user"])
	assert.Equal(t, IRInt(1), orig["list"].(IRArray)[0])
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRObject{"a": IRArray{IRInt(1)}}, IRObject{"a": IRArray{IRInt(1)}}))
	assert.False(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"a": IRString("1")}))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}))
	assert.True(t, Equal(IRNull{}, IRNull{}))
}

func TestConfigFieldDefaultJSON(t *testing.T) {
	var f ConfigField
	require.NoError(t, json.Unmarshal([]byte(`{"path":"meta.tags","type":"array","default":["x"]}`), &f))

	assert.Equal(t, "meta.tags", f.Path)
	assert.Equal(t, IRArray{IRString("x")}, f.Default)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"meta.tags","type":"array","default":["x"]}`, string(data))
}
