//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package task

import (
	"fmt"
	"strconv"

	"github.com/markkurossi/mpsi/retcode"
	"gopkg.in/yaml.v3"
)

// VarType defines parameter value types.
type VarType int

// Parameter value types.
const (
	Int32 VarType = iota
	Int64
	String
)

var varTypeNames = map[VarType]string{
	Int32:  "INT32",
	Int64:  "INT64",
	String: "STRING",
}

func (t VarType) String() string {
	name, ok := varTypeNames[t]
	if ok {
		return name
	}
	return fmt.Sprintf("{VarType %d}", t)
}

// ParamValue implements a typed parameter value. Array values are
// stored in Int32Array or Int64Array depending on the Type.
type ParamValue struct {
	Type       VarType
	IsArray    bool
	Int32      int32
	Int64      int64
	Str        string
	Int32Array []int32
	Int64Array []int64
}

// NewInt32 creates an int32 parameter value.
func NewInt32(v int32) ParamValue {
	return ParamValue{
		Type:  Int32,
		Int32: v,
	}
}

// NewString creates a string parameter value.
func NewString(v string) ParamValue {
	return ParamValue{
		Type: String,
		Str:  v,
	}
}

// NewInt32Array creates an int32 array parameter value.
func NewInt32Array(v ...int32) ParamValue {
	return ParamValue{
		Type:       Int32,
		IsArray:    true,
		Int32Array: v,
	}
}

// NewInt64Array creates an int64 array parameter value.
func NewInt64Array(v ...int64) ParamValue {
	return ParamValue{
		Type:       Int64,
		IsArray:    true,
		Int64Array: v,
	}
}

func (v ParamValue) String() string {
	switch v.Type {
	case Int32:
		if v.IsArray {
			return fmt.Sprintf("%v", v.Int32Array)
		}
		return strconv.Itoa(int(v.Int32))
	case Int64:
		if v.IsArray {
			return fmt.Sprintf("%v", v.Int64Array)
		}
		return strconv.FormatInt(v.Int64, 10)
	default:
		return v.Str
	}
}

func (v ParamValue) clone() ParamValue {
	if v.Int32Array != nil {
		v.Int32Array = append([]int32(nil), v.Int32Array...)
	}
	if v.Int64Array != nil {
		v.Int64Array = append([]int64(nil), v.Int64Array...)
	}
	return v
}

// Params define the task parameter map.
type Params map[string]ParamValue

// Int32 returns the int32 parameter value. The function returns
// false if the parameter is not set.
func (p Params) Int32(key string) (int32, bool, error) {
	v, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	if v.Type != Int32 || v.IsArray {
		return 0, true, retcode.Configf("parameter %s: expected INT32, got %v",
			key, v.typeName())
	}
	return v.Int32, true, nil
}

// Text returns the string parameter value. The function returns
// false if the parameter is not set.
func (p Params) Text(key string) (string, bool, error) {
	v, ok := p[key]
	if !ok {
		return "", false, nil
	}
	if v.Type != String {
		return "", true, retcode.Configf("parameter %s: expected STRING, got %v",
			key, v.typeName())
	}
	return v.Str, true, nil
}

// Int32s returns the parameter as an int32 array. Scalar int32
// values are returned as a single element array.
func (p Params) Int32s(key string) ([]int32, bool, error) {
	v, ok := p[key]
	if !ok {
		return nil, false, nil
	}
	if v.Type != Int32 {
		return nil, true, retcode.Configf(
			"parameter %s: expected INT32 or INT32 array, got %v",
			key, v.typeName())
	}
	if v.IsArray {
		return append([]int32(nil), v.Int32Array...), true, nil
	}
	return []int32{v.Int32}, true, nil
}

func (v ParamValue) typeName() string {
	if v.IsArray {
		return v.Type.String() + "[]"
	}
	return v.Type.String()
}

// UnmarshalYAML decodes parameter values from YAML. Integer scalars
// are INT32 values, integer sequences INT32 arrays, and everything
// else strings. Explicit !int64 tags select INT64 values.
func (v *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!int":
			var i int32
			if err := node.Decode(&i); err != nil {
				return err
			}
			*v = NewInt32(i)
		case "!int64":
			i, err := strconv.ParseInt(node.Value, 0, 64)
			if err != nil {
				return err
			}
			*v = ParamValue{
				Type:  Int64,
				Int64: i,
			}
		default:
			*v = NewString(node.Value)
		}
		return nil

	case yaml.SequenceNode:
		if node.ShortTag() == "!int64" {
			var arr []int64
			if err := node.Decode(&arr); err != nil {
				return err
			}
			*v = NewInt64Array(arr...)
			return nil
		}
		var arr []int32
		if err := node.Decode(&arr); err != nil {
			return err
		}
		*v = NewInt32Array(arr...)
		return nil

	default:
		return fmt.Errorf("line %d: invalid parameter value", node.Line)
	}
}

// MarshalYAML encodes parameter values to YAML.
func (v ParamValue) MarshalYAML() (interface{}, error) {
	switch v.Type {
	case Int32:
		if v.IsArray {
			return v.Int32Array, nil
		}
		return v.Int32, nil

	case Int64:
		node := &yaml.Node{
			Tag: "!int64",
		}
		if v.IsArray {
			node.Kind = yaml.SequenceNode
			node.Style = yaml.FlowStyle
			for _, i := range v.Int64Array {
				node.Content = append(node.Content, &yaml.Node{
					Kind:  yaml.ScalarNode,
					Tag:   "!!int",
					Value: strconv.FormatInt(i, 10),
				})
			}
		} else {
			node.Kind = yaml.ScalarNode
			node.Value = strconv.FormatInt(v.Int64, 10)
		}
		return node, nil

	default:
		return v.Str, nil
	}
}
