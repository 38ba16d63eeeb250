package merge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNested(t *testing.T) {
	got, err := Merge(
		Layer{"a": Layer{"x": 1, "y": 2}},
		Layer{"a": Layer{"y": 3, "z": 4}},
	)
	require.NoError(t, err)

	want := Layer{"a": Layer{"x": 1, "y": 3, "z": 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeListsAreReplaced(t *testing.T) {
	got, err := Merge(
		Layer{"plugins": []any{"a", "b"}, "keep": true},
		Layer{"plugins": []any{"c"}},
	)
	require.NoError(t, err)

	assert.Equal(t, []any{"c"}, got["plugins"])
	assert.Equal(t, true, got["keep"])
}

func TestMergeScalarReplacesMapping(t *testing.T) {
	got, err := Merge(
		Layer{"a": Layer{"x": 1}},
		Layer{"a": 5},
		Layer{"a": Layer{"y": 2}},
	)
	require.NoError(t, err)
	assert.Equal(t, Layer{"y": 2}, got["a"])
}

func TestMergeIsAssociative(t *testing.T) {
	l1 := Layer{"a": Layer{"x": 1, "list": []any{1, 2}}, "s": "one"}
	l2 := Layer{"a": Layer{"y": 2}, "s": "two"}
	l3 := Layer{"a": Layer{"x": 3, "list": []any{9}}, "t": false}

	left, err := Merge(l1, l2)
	require.NoError(t, err)
	nested, err := Merge(left, l3)
	require.NoError(t, err)

	flat, err := Merge(l1, l2, l3)
	require.NoError(t, err)

	if diff := cmp.Diff(flat, nested); diff != "" {
		t.Errorf("merge is not associative (-flat +nested):\n%s", diff)
	}
	assert.Equal(t, []any{9}, flat["a"].(Layer)["list"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := Layer{"a": Layer{"x": 1}, "list": []any{1}}
	override := Layer{"a": Layer{"y": 2}}

	got, err := Merge(base, override)
	require.NoError(t, err)

	got["a"].(Layer)["x"] = 100
	got["list"].([]any)[0] = 100

	assert.Equal(t, Layer{"a": Layer{"x": 1}, "list": []any{1}}, base)
	assert.Equal(t, Layer{"a": Layer{"y": 2}}, override)
}

func TestMergeSkipsNil(t *testing.T) {
	got, err := Merge(nil, Layer{"a": 1}, nil, Layer{"a": nil, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, Layer{"a": 1, "b": 2}, got)
}

func TestMergeAcceptsYAMLMaps(t *testing.T) {
	got, err := Merge(
		Layer{"a": Layer{"x": 1}},
		map[any]any{"a": map[any]any{"y": 2}},
	)
	require.NoError(t, err)
	assert.Equal(t, Layer{"a": Layer{"x": 1, "y": 2}}, got)
}

func TestMergeInvalidLayer(t *testing.T) {
	_, err := Merge(Layer{"a": 1}, "not a layer")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLayer))

	var invalid *InvalidLayerError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Index)
}

func TestMustMergePanics(t *testing.T) {
	assert.Panics(t, func() { MustMerge(42) })
}

func TestGet(t *testing.T) {
	l := Layer{"config": Layer{"namingPattern": "module"}}

	v, ok := Get(l, "config", "namingPattern")
	assert.True(t, ok)
	assert.Equal(t, "module", v)

	_, ok = Get(l, "config", "missing")
	assert.False(t, ok)
}

func TestDecode(t *testing.T) {
	var out struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	require.NoError(t, Decode(Layer{"host": "localhost", "port": 8080}, &out))
	assert.Equal(t, "localhost", out.Host)
	assert.Equal(t, 8080, out.Port)
}
