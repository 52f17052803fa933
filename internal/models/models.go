package models

// KeySeparator joins path segments of a flattened key.
const KeySeparator = "__"

// JSONValue is a generic type to represent any JSON value.
// This can be a string, Number, bool, nil, *JSONObject or JSONArray.
type JSONValue interface{}

// Number holds the literal text of a JSON number as it appeared in the input.
type Number string

// JSONArray represents a JSON array, which is a slice of JSONValues.
type JSONArray []JSONValue

// Member is a single name/value pair of a JSONObject.
type Member struct {
	Key   string
	Value JSONValue
}

// JSONObject is a JSON object that remembers the order of its members.
type JSONObject struct {
	members []Member
	index   map[string]int
}

// NewJSONObject creates an empty object.
func NewJSONObject() *JSONObject {
	return &JSONObject{index: make(map[string]int)}
}

// Set stores value under key. A key that already exists keeps its position.
func (o *JSONObject) Set(key string, value JSONValue) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if i, ok := o.index[key]; ok {
		o.members[i].Value = value
		return
	}
	o.index[key] = len(o.members)
	o.members = append(o.members, Member{Key: key, Value: value})
}

// Get returns the value stored under key.
func (o *JSONObject) Get(key string) (JSONValue, bool) {
	if o == nil {
		return nil, false
	}
	i, ok := o.index[key]
	if !ok {
		return nil, false
	}
	return o.members[i].Value, true
}

// Members returns the members in document order.
func (o *JSONObject) Members() []Member {
	if o == nil {
		return nil
	}
	return o.members
}

// Len returns the number of members.
func (o *JSONObject) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// FlatRow maps flattened keys to scalar values, keeping insertion order.
type FlatRow struct {
	keys   []string
	values map[string]JSONValue
}

// NewFlatRow creates an empty row.
func NewFlatRow() *FlatRow {
	return &FlatRow{values: make(map[string]JSONValue)}
}

// Set stores a scalar under key. Overwriting keeps the original position.
func (r *FlatRow) Set(key string, value JSONValue) {
	if r.values == nil {
		r.values = make(map[string]JSONValue)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *FlatRow) Get(key string) (JSONValue, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Delete removes key from the row.
func (r *FlatRow) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (r *FlatRow) Keys() []string {
	if r == nil {
		return nil
	}
	return r.keys
}

// Len returns the number of fields.
func (r *FlatRow) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns an independent copy of the row.
func (r *FlatRow) Clone() *FlatRow {
	c := &FlatRow{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]JSONValue, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// RowSet is the ordered result of expanding a JSON document.
type RowSet []*FlatRow

// Document holds a parsed JSON input.
type Document struct {
	Root JSONValue
}

// Elements returns the top-level records. A bare value is treated as a
// single-element array.
func (d Document) Elements() []JSONValue {
	if arr, ok := d.Root.(JSONArray); ok {
		return arr
	}
	return []JSONValue{d.Root}
}
