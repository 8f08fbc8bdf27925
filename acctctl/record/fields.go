package record

// Fields is an insertion-ordered attribute map. Values are strings, string
// lists or booleans.
type Fields struct {
	keys []string
	vals map[string]any
}

func NewFields() *Fields {
	return &Fields{vals: make(map[string]any)}
}

func (f *Fields) Get(key string) (any, bool) {
	v, ok := f.vals[key]
	return v, ok
}

func (f *Fields) Has(key string) bool {
	_, ok := f.vals[key]
	return ok
}

func (f *Fields) Set(key string, value any) {
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	if list, ok := value.([]string); ok {
		value = append([]string(nil), list...)
	}
	f.vals[key] = value
}

func (f *Fields) Delete(key string) {
	if _, ok := f.vals[key]; !ok {
		return
	}
	delete(f.vals, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

func (f *Fields) Len() int { return len(f.keys) }

// Clone returns a deep copy.
func (f *Fields) Clone() *Fields {
	c := NewFields()
	for _, k := range f.keys {
		c.Set(k, f.vals[k])
	}
	return c
}

// Map returns a copy of the values as a plain map.
func (f *Fields) Map() map[string]any {
	m := make(map[string]any, len(f.keys))
	for _, k := range f.keys {
		v := f.vals[k]
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		m[k] = v
	}
	return m
}
