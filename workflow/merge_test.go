package workflow

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMergeMapsRecurseByKey(t *testing.T) {
	a := map[string]any{"tenant": "acme", "nested": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"nested": map[string]any{"y": 99, "z": 3}, "new": true}

	got, err := deepMerge(a, b)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"tenant": "acme",
		"nested": map[string]any{"x": 1, "y": 99, "z": 3},
		"new":    true,
	}, got)
}

func TestDeepMergeArraysConcatenate(t *testing.T) {
	got, err := deepMerge([]any{1, 2}, []any{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3, 4}, got)
}

func TestDeepMergeScalarsReplace(t *testing.T) {
	got, err := deepMerge("old", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestDeepMergeArrayVsObjectIsTypeMismatch(t *testing.T) {
	_, err := deepMerge([]any{1}, map[string]any{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")
}

func TestDeepMergeNilSideReturnsOther(t *testing.T) {
	got, err := deepMerge(nil, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	got, err = deepMerge(map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)
}

// TestDeepMergePropertyLaws exercises spec.md §8's round-trip law across
// generated inputs: arrays concatenate to the summed length, maps merge
// key-by-key with the second map winning on collision, and an
// array-vs-object shape mismatch always raises "type mismatch".
func TestDeepMergePropertyLaws(t *testing.T) {
	params := gopter.DefaultTestParameters()
	props := gopter.NewProperties(params)

	props.Property("arrays concatenate to len(a)+len(b), in order", prop.ForAll(
		func(a, b []int) bool {
			got, err := deepMerge(intsToAny(a), intsToAny(b))
			if err != nil {
				return false
			}
			out, ok := got.([]any)
			if !ok || len(out) != len(a)+len(b) {
				return false
			}
			for i, v := range a {
				if out[i] != v {
					return false
				}
			}
			for i, v := range b {
				if out[len(a)+i] != v {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
		gen.SliceOf(gen.Int()),
	))

	props.Property("maps merge key-by-key, b winning on collision", prop.ForAll(
		func(a, b map[string]int) bool {
			got, err := deepMerge(intMapToAny(a), intMapToAny(b))
			if err != nil {
				return false
			}
			out, ok := got.(map[string]any)
			if !ok || len(out) != len(unionKeys(a, b)) {
				return false
			}
			for k, v := range a {
				if _, inB := b[k]; !inB && out[k] != v {
					return false
				}
			}
			for k, v := range b {
				if out[k] != v {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.AnyString(), gen.Int()),
		gen.MapOf(gen.AnyString(), gen.Int()),
	))

	props.Property("array vs map is always a type mismatch", prop.ForAll(
		func(a []int, b map[string]int) bool {
			_, err := deepMerge(intsToAny(a), intMapToAny(b))
			return err != nil
		},
		gen.SliceOf(gen.Int()),
		gen.MapOf(gen.AnyString(), gen.Int()),
	))

	props.TestingRun(t)
}

func intsToAny(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func intMapToAny(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func unionKeys(a, b map[string]int) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
