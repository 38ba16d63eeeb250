package chain

import "slices"

// ordered is a name-keyed collection that remembers insertion order.
type ordered[T any] struct {
	keys  []string
	items map[string]T
}

func (o *ordered[T]) get(name string) (T, bool) {
	v, ok := o.items[name]
	return v, ok
}

func (o *ordered[T]) set(name string, v T) {
	if o.items == nil {
		o.items = make(map[string]T)
	}
	if _, ok := o.items[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.items[name] = v
}

// insertBefore places name right before anchor, or at the end when anchor
// is unknown. An existing entry with the same name is moved.
func (o *ordered[T]) insertBefore(anchor, name string, v T) {
	o.delete(name)
	o.set(name, v)
	idx := slices.Index(o.keys, anchor)
	if idx < 0 {
		return
	}
	o.keys = slices.Delete(o.keys, len(o.keys)-1, len(o.keys))
	o.keys = slices.Insert(o.keys, idx, name)
}

func (o *ordered[T]) delete(name string) {
	if _, ok := o.items[name]; !ok {
		return
	}
	delete(o.items, name)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == name })
}

func (o *ordered[T]) names() []string {
	return slices.Clone(o.keys)
}

func (o *ordered[T]) values() []T {
	out := make([]T, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.items[k])
	}
	return out
}

func (o *ordered[T]) len() int {
	return len(o.keys)
}
