// Package rawjson wraps untrusted provider JSON in accessors that never panic.
//
// Every accessor is total: a missing key, a wrong type or a malformed document
// yields the zero value and false instead of an error. Verification and
// canonicalization are built entirely on these combinators.
package rawjson

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Node is one position in an untyped JSON tree.
type Node struct {
	r gjson.Result
}

// Parse wraps a raw JSON document. Invalid input yields a Node that does not exist.
func Parse(data []byte) Node {
	if !gjson.ValidBytes(data) {
		return Node{}
	}
	return Node{r: gjson.ParseBytes(data)}
}

// ParseString is Parse for strings.
func ParseString(s string) Node {
	return Parse([]byte(s))
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return gjson.ValidBytes(data)
}

// Exists reports whether the node holds a value, including null.
func (n Node) Exists() bool {
	return n.r.Exists()
}

// Get descends along a dot-separated path. An empty path returns n.
func (n Node) Get(path string) Node {
	if path == "" {
		return n
	}
	if !n.r.IsObject() && !n.r.IsArray() {
		return Node{}
	}
	return Node{r: n.r.Get(path)}
}

// IsObject reports whether the node is a JSON object.
func (n Node) IsObject() bool { return n.r.IsObject() }

// IsArray reports whether the node is a JSON array.
func (n Node) IsArray() bool { return n.r.IsArray() }

// IsString reports whether the node is a JSON string.
func (n Node) IsString() bool { return n.r.Type == gjson.String }

// Text returns the node's value if it is a string.
func (n Node) Text() (string, bool) {
	if n.r.Type != gjson.String {
		return "", false
	}
	return n.r.Str, true
}

// String returns the string at path.
func (n Node) String(path string) (string, bool) {
	return n.Get(path).Text()
}

// Items returns the elements of an array node, or nil for anything else.
func (n Node) Items() []Node {
	if !n.r.IsArray() {
		return nil
	}
	arr := n.r.Array()
	out := make([]Node, 0, len(arr))
	for _, v := range arr {
		out = append(out, Node{r: v})
	}
	return out
}

// List returns the array at path.
func (n Node) List(path string) ([]Node, bool) {
	child := n.Get(path)
	if !child.r.IsArray() {
		return nil, false
	}
	return child.Items(), true
}

// Object returns the object at path.
func (n Node) Object(path string) (Node, bool) {
	child := n.Get(path)
	if !child.r.IsObject() {
		return Node{}, false
	}
	return child, true
}

// Has reports whether an object node carries key, whatever its value.
func (n Node) Has(key string) bool {
	if !n.r.IsObject() {
		return false
	}
	found := false
	n.r.ForEach(func(k, _ gjson.Result) bool {
		if k.Str == key {
			found = true
			return false
		}
		return true
	})
	return found
}

// Each calls fn for every key/value of an object node in document order.
// Iteration stops when fn returns false.
func (n Node) Each(fn func(key string, value Node) bool) {
	if !n.r.IsObject() {
		return
	}
	n.r.ForEach(func(k, v gjson.Result) bool {
		return fn(k.Str, Node{r: v})
	})
}

// Int returns the integer at path if it is a number.
func (n Node) Int(path string) (int64, bool) {
	child := n.Get(path)
	if child.r.Type != gjson.Number {
		return 0, false
	}
	return child.r.Int(), true
}

// Bool returns the boolean at path.
func (n Node) Bool(path string) (bool, bool) {
	child := n.Get(path)
	switch child.r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	}
	return false, false
}

// NonEmpty reports whether the node holds something: a non-blank string, a
// non-empty array or object, a number or true.
func (n Node) NonEmpty() bool {
	switch n.r.Type {
	case gjson.String:
		return strings.TrimSpace(n.r.Str) != ""
	case gjson.Number, gjson.True:
		return true
	case gjson.JSON:
		if n.r.IsArray() {
			return len(n.r.Array()) > 0
		}
		nonEmpty := false
		n.r.ForEach(func(_, _ gjson.Result) bool {
			nonEmpty = true
			return false
		})
		return nonEmpty
	}
	return false
}

// Raw returns the node's JSON text, or "" when the node does not exist.
func (n Node) Raw() string {
	return n.r.Raw
}

// Value returns the node decoded into plain Go values.
func (n Node) Value() any {
	return n.r.Value()
}

// Indent renders the node as indented JSON, falling back to the raw text.
func (n Node) Indent() string {
	if !n.r.Exists() {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(n.r.Raw), "", "  "); err != nil {
		return n.r.Raw
	}
	return buf.String()
}

// MarshalJSON emits the node verbatim so it can be embedded in log documents.
func (n Node) MarshalJSON() ([]byte, error) {
	if !n.r.Exists() || n.r.Raw == "" {
		return []byte("null"), nil
	}
	return []byte(n.r.Raw), nil
}
