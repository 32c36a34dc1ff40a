package workflow

import "fmt"

// deepMerge combines a and b per spec's merge law: maps merge key by key
// (recursing into shared keys), arrays concatenate a's elements followed
// by b's, and scalars take b's value. A nil side returns the other side
// unchanged. Mismatched array-vs-object (or map/array-vs-scalar) shapes
// are a "type mismatch" error rather than a silent overwrite.
func deepMerge(a, b any) (any, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("deep_merge: type mismatch: %T vs %T", a, b)
		}
		out := make(map[string]any, len(av)+len(bv))
		for k, v := range av {
			out[k] = v
		}
		for k, v := range bv {
			existing, ok := out[k]
			if !ok {
				out[k] = v
				continue
			}
			merged, err := deepMerge(existing, v)
			if err != nil {
				return nil, err
			}
			out[k] = merged
		}
		return out, nil

	case []any:
		bv, ok := b.([]any)
		if !ok {
			return nil, fmt.Errorf("deep_merge: type mismatch: %T vs %T", a, b)
		}
		out := make([]any, 0, len(av)+len(bv))
		out = append(out, av...)
		out = append(out, bv...)
		return out, nil

	default:
		switch b.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("deep_merge: type mismatch: %T vs %T", a, b)
		default:
			return b, nil
		}
	}
}

// deepMergeContextData applies deepMerge to two workflow context maps,
// the shape SpawnChild needs: parent and child context data, both
// map[string]any, merged recursively rather than overwritten key by key
// at the top level only.
func deepMergeContextData(a, b map[string]any) (map[string]any, error) {
	merged, err := deepMerge(any(a), any(b))
	if err != nil {
		return nil, err
	}
	out, _ := merged.(map[string]any)
	return out, nil
}
