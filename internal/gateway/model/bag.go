package model

// Bag is an insertion-ordered map of named values. Keys are unique; setting
// an existing key replaces the value but keeps its original position, because
// some parameters are positional by wire convention. Read methods treat a nil
// receiver as an empty bag, so zero-value Messages and Results are safe to
// encode.
type Bag struct {
	keys   []string
	values map[string]Value
}

// NewBag returns an empty bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string]Value)}
}

// Set stores a value under key, preserving first-insertion order.
func (b *Bag) Set(key string, v Value) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = v
}

// Get returns the value stored under key.
func (b *Bag) Get(key string) (Value, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.values[key]
	return v, ok
}

// Len reports the number of entries.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Each calls fn for every entry in insertion order, stopping on the first
// false return.
func (b *Bag) Each(fn func(key string, v Value) bool) {
	if b == nil {
		return
	}
	for _, k := range b.keys {
		if !fn(k, b.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy of the bag.
func (b *Bag) Clone() *Bag {
	if b == nil {
		return NewBag()
	}
	cloned := &Bag{
		keys:   make([]string, len(b.keys)),
		values: make(map[string]Value, len(b.values)),
	}
	copy(cloned.keys, b.keys)
	for k, v := range b.values {
		cloned.values[k] = v
	}
	return cloned
}
