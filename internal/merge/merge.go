// Package merge implements the deep, precedence-ordered merge of configuration
// layers used throughout the build configuration.
//
// A layer is a partial, possibly nested mapping. Layers are merged left to
// right: for every key, if both the accumulated value and the incoming value
// are mappings they are merged recursively, otherwise the incoming value
// replaces the accumulated one. Lists are never combined element-wise.
package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Layer is a partial configuration fragment.
type Layer = map[string]any

// ErrInvalidLayer is matched by every InvalidLayerError.
var ErrInvalidLayer = errors.New("invalid configuration layer")

// InvalidLayerError reports a merge argument that is not a mapping.
type InvalidLayerError struct {
	Index int
	Value any
}

func (e *InvalidLayerError) Error() string {
	return fmt.Sprintf("invalid configuration layer at position %d: expected a mapping, got %T", e.Index, e.Value)
}

func (e *InvalidLayerError) Is(target error) bool {
	return target == ErrInvalidLayer
}

// Merge merges layers in argument order. Nil layers are skipped. The inputs
// are not modified and the result shares no maps or slices with them.
func Merge(layers ...any) (Layer, error) {
	result := make(Layer)
	for i, l := range layers {
		if l == nil {
			continue
		}
		m, ok := asMap(l)
		if !ok {
			return nil, &InvalidLayerError{Index: i, Value: l}
		}
		if m == nil {
			continue
		}
		mergeInto(result, m)
	}
	return result, nil
}

// MustMerge is like Merge but panics on invalid input. It is meant for
// package-level default layers whose shape is known at compile time.
func MustMerge(layers ...any) Layer {
	l, err := Merge(layers...)
	if err != nil {
		panic(err)
	}
	return l
}

func mergeInto(dst, src Layer) {
	// Sorted keys keep the walk deterministic.
	for _, key := range slices.Sorted(maps.Keys(src)) {
		value := src[key]
		if value == nil {
			continue
		}
		if incoming, ok := asMap(value); ok && incoming != nil {
			if existing, ok := asMap(dst[key]); ok && existing != nil {
				mergeInto(existing, incoming)
				continue
			}
			nested := make(Layer, len(incoming))
			mergeInto(nested, incoming)
			dst[key] = nested
			continue
		}
		dst[key] = cloneValue(value)
	}
}

// Clone returns a deep copy of l.
func Clone(l Layer) Layer {
	if l == nil {
		return nil
	}
	out := make(Layer, len(l))
	for k, v := range l {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// asMap reports whether v is a mapping and returns it as a Layer.
// map[any]any is accepted for layers produced by YAML decoders.
func asMap(v any) (Layer, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(Layer, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Get walks a dotted path of keys and returns the value found, if any.
func Get(l Layer, keys ...string) (any, bool) {
	var cur any = l
	for _, k := range keys {
		m, ok := asMap(cur)
		if !ok || m == nil {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Decode converts a merged layer into a typed value using its JSON tags.
func Decode(l Layer, out any) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode layer: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode layer: %w", err)
	}
	return nil
}

// FromStruct converts a typed value into a layer using its JSON tags.
func FromStruct(v any) (Layer, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var l Layer
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return l, nil
}
