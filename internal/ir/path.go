package ir

import (
	"fmt"
	"strings"
)

// Field type names accepted in configuration fields and capability args.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeArray  = "array"
	TypeObject = "object"
	TypeAny    = "any"
)

// ValidFieldTypes lists the accepted field type names.
var ValidFieldTypes = map[string]bool{
	TypeString: true,
	TypeInt:    true,
	TypeBool:   true,
	TypeArray:  true,
	TypeObject: true,
	TypeAny:    true,
}

// TypeName returns the field type name of v, or "null" for IRNull.
func TypeName(v IRValue) string {
	switch v.(type) {
	case IRString:
		return TypeString
	case IRInt:
		return TypeInt
	case IRBool:
		return TypeBool
	case IRArray:
		return TypeArray
	case IRObject:
		return TypeObject
	case IRNull:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// MatchesType reports whether v satisfies the field type t.
// "any" accepts every non-null value.
func MatchesType(v IRValue, t string) bool {
	if v == nil {
		return false
	}
	if _, isNull := v.(IRNull); isNull {
		return false
	}
	if t == TypeAny {
		return true
	}
	return TypeName(v) == t
}

// SplitPath splits a dotted configuration path ("ctx.user.id").
// Empty paths and empty segments are rejected.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	segs := strings.Split(path, ".")
	for i, s := range segs {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("path %q: empty segment at position %d", path, i)
		}
	}
	return segs, nil
}

// Lookup resolves a dotted path. It returns false when any segment is
// missing or an intermediate value is not an object.
func (obj IRObject) Lookup(path string) (IRValue, bool) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	var cur IRValue = obj
	for _, s := range segs {
		o, ok := cur.(IRObject)
		if !ok {
			return nil, false
		}
		cur, ok = o[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath returns a copy of obj with value stored at path, creating
// intermediate objects as needed. It fails when an existing intermediate
// value is not an object. obj is not modified.
func (obj IRObject) SetPath(path string, value IRValue) (IRObject, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	root := obj.Clone()
	cur := root
	for i, s := range segs[:len(segs)-1] {
		next, ok := cur[s]
		if !ok {
			child := IRObject{}
			cur[s] = child
			cur = child
			continue
		}
		child, ok := next.(IRObject)
		if !ok {
			return nil, fmt.Errorf("path %q: %s is %s, not object",
				path, strings.Join(segs[:i+1], "."), TypeName(next))
		}
		cur = child
	}
	cur[segs[len(segs)-1]] = Clone(value)
	return root, nil
}

// DeepMerge overlays overlay onto base. Objects merge key by key; any other
// overlay value replaces the base value. Neither input is modified.
func DeepMerge(base, overlay IRObject) IRObject {
	out := base.Clone()
	for k, v := range overlay {
		if ov, ok := v.(IRObject); ok {
			if bv, ok := out[k].(IRObject); ok {
				out[k] = DeepMerge(bv, ov)
				continue
			}
		}
		out[k] = Clone(v)
	}
	return out
}
