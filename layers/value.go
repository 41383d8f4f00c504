// Package layers resolves layered configuration documents (base defaults,
// optional preset and user overrides) into one effective profile.
package layers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind of a configuration value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindSeq:
		return "sequence"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a node of configuration document. Maps remember order in which
// keys were first defined. Values are immutable: all operations return new
// values and never share mutable state with their inputs.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	keys   []string
	fields map[string]Value
	items  []Value
}

func Null() Value {
	return Value{}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Seq(items ...Value) Value {
	return Value{kind: KindSeq, items: slices.Clone(items)}
}

// EmptyMap returns map without keys.
func EmptyMap() Value {
	return Value{kind: KindMap, fields: map[string]Value{}}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) IsMap() bool {
	return v.kind == KindMap
}

// Keys returns map keys in insertion order.
func (v Value) Keys() []string {
	return slices.Clone(v.keys)
}

// Len is number of map keys or sequence items.
func (v Value) Len() int {
	return max(len(v.keys), len(v.items))
}

func (v Value) Items() []Value {
	return slices.Clone(v.items)
}

func (v Value) Field(k string) (Value, bool) {
	f, ok := v.fields[k]
	return f, ok
}

// AsBool returns boolean content.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns numeric content.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns string content.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Clone returns deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		out := Value{kind: KindMap, keys: slices.Clone(v.keys), fields: make(map[string]Value, len(v.fields))}
		for k, f := range v.fields {
			out.fields[k] = f.Clone()
		}
		return out
	case KindSeq:
		out := Value{kind: KindSeq, items: make([]Value, len(v.items))}
		for i, it := range v.items {
			out.items[i] = it.Clone()
		}
		return out
	}
	return v
}

// With returns copy of the map with key set to val, new keys go last.
// Non map values are replaced by a map.
func (v Value) With(key string, val Value) Value {
	out := v.Clone()
	if out.kind != KindMap {
		out = EmptyMap()
	}
	if _, ok := out.fields[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.fields[key] = val.Clone()
	return out
}

// Without returns copy of the map without key.
func (v Value) Without(key string) Value {
	out := v.Clone()
	if out.kind != KindMap {
		return out
	}
	if _, ok := out.fields[key]; ok {
		delete(out.fields, key)
		out.keys = slices.DeleteFunc(out.keys, func(k string) bool { return k == key })
	}
	return out
}

// Set returns copy of the value with val stored under dotted path, creating
// intermediate maps as necessary.
func (v Value) Set(path string, val Value) Value {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return v.With(head, val)
	}
	child, _ := v.Field(head)
	return v.With(head, child.Set(rest, val))
}

// Lookup finds value by dotted path. At every level the longest literal key
// matching the path prefix is tried first, so "format.columns" stored as a
// single key wins over nested "format" -> "columns".
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	if v.kind != KindMap {
		return Value{}, false
	}
	parts := strings.Split(path, ".")
	for i := len(parts); i > 0; i-- {
		child, ok := v.fields[strings.Join(parts[:i], ".")]
		if !ok {
			continue
		}
		if i == len(parts) {
			return child, true
		}
		if found, ok := child.Lookup(strings.Join(parts[i:], ".")); ok {
			return found, true
		}
	}
	return Value{}, false
}

// Equal compares values deeply, map key order is not significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindSeq:
		return slices.EqualFunc(v.items, o.items, Value.Equal)
	}
	return maps.EqualFunc(v.fields, o.fields, Value.Equal)
}

// Merge overlays b on top of a: keys present in b win, nested maps are merged
// recursively, scalars and sequences are replaced as a whole and keys absent
// from b keep values of a.
func Merge(a, b Value) Value {
	if a.kind != KindMap || b.kind != KindMap {
		return b.Clone()
	}
	out := a.Clone()
	for _, k := range b.keys {
		bf := b.fields[k]
		if af, ok := out.fields[k]; ok {
			out.fields[k] = Merge(af, bf)
			continue
		}
		out.keys = append(out.keys, k)
		out.fields[k] = bf.Clone()
	}
	return out
}

// MergeAll folds values left to right, null values (layers never loaded)
// are skipped.
func MergeAll(vals ...Value) Value {
	out := EmptyMap()
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		out = Merge(out, v)
	}
	return out
}

// ExpandDotted rewrites literal dotted keys of maps into nested maps so that
// documents mixing both spellings merge predictably. Keys are processed in
// order, later definitions of the same path win.
func ExpandDotted(v Value) Value {
	switch v.kind {
	case KindSeq:
		out := Value{kind: KindSeq, items: make([]Value, len(v.items))}
		for i, it := range v.items {
			out.items[i] = ExpandDotted(it)
		}
		return out
	case KindMap:
	default:
		return v
	}
	out := EmptyMap()
	for _, k := range v.keys {
		f := ExpandDotted(v.fields[k])
		if !strings.Contains(k, ".") || strings.HasPrefix(k, ".") || strings.HasSuffix(k, ".") || strings.Contains(k, "..") {
			out = Merge(out, EmptyMap().With(k, f))
			continue
		}
		out = Merge(out, EmptyMap().Set(k, f))
	}
	return out
}

// Parse decodes JSON or YAML document. Empty input produces an empty map.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return EmptyMap(), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 0 {
		return EmptyMap(), nil
	}
	return fromNode(&doc)
}

func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		out := Value{kind: KindSeq, items: make([]Value, 0, len(n.Content))}
		for _, c := range n.Content {
			it, err := fromNode(c)
			if err != nil {
				return Value{}, err
			}
			out.items = append(out.items, it)
		}
		return out, nil
	case yaml.MappingNode:
		out := EmptyMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			kn, vn := n.Content[i], n.Content[i+1]
			if kn.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: map key must be a scalar", kn.Line)
			}
			f, err := fromNode(vn)
			if err != nil {
				return Value{}, err
			}
			if _, ok := out.fields[kn.Value]; !ok {
				out.keys = append(out.keys, kn.Value)
			}
			out.fields[kn.Value] = f
		}
		return out, nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Number(f), nil
	}
	return String(n.Value), nil
}

// MarshalJSON keeps map key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		b, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindSeq:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			if err := v.fields[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(b)
}
