// Package rosmsg decodes ROS1-serialized messages using the message definition text that
// bag connections carry, without generated types.
package rosmsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrDefinition = errors.New("rosmsg: invalid message definition")

var primitives = map[string]int{
	"bool": 1, "int8": 1, "uint8": 1, "byte": 1, "char": 1,
	"int16": 2, "uint16": 2,
	"int32": 4, "uint32": 4, "float32": 4,
	"int64": 8, "uint64": 8, "float64": 8,
	"time": 8, "duration": 8,
	"string": -1,
}

type Field struct {
	Name    string
	Type    string
	IsArray bool
	// Len is the fixed array length, or -1 for a length-prefixed array.
	Len int
}

type MsgSpec struct {
	Name   string
	Fields []Field
}

// Schema is a parsed root message type together with every type it references.
type Schema struct {
	Root  *MsgSpec
	specs map[string]*MsgSpec
}

// Parse builds a schema for typeName from a concatenated ROS1 definition
// (root first, dependencies after "MSG: pkg/Type" separators).
func Parse(typeName, definition string) (*Schema, error) {
	s := &Schema{specs: make(map[string]*MsgSpec)}

	name := typeName
	var lines []string
	flush := func() error {
		spec, err := parseSpec(name, lines)
		if err != nil {
			return err
		}
		if _, dup := s.specs[spec.Name]; !dup {
			s.specs[spec.Name] = spec
		}
		if s.Root == nil {
			s.Root = spec
		}
		return nil
	}

	for _, line := range strings.Split(definition, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 3 && strings.Trim(trimmed, "=") == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			name, lines = "", nil
			continue
		}
		if name == "" && strings.HasPrefix(trimmed, "MSG:") {
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "MSG:"))
			continue
		}
		lines = append(lines, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	for _, spec := range s.specs {
		for _, f := range spec.Fields {
			if _, ok := primitives[f.Type]; ok {
				continue
			}
			if _, ok := s.specs[f.Type]; !ok {
				return nil, fmt.Errorf("%w: %s references unknown type %s", ErrDefinition, spec.Name, f.Type)
			}
		}
	}
	return s, nil
}

func parseSpec(name string, lines []string) (*MsgSpec, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: section without MSG: name", ErrDefinition)
	}
	pkg := ""
	if i := strings.Index(name, "/"); i >= 0 {
		pkg = name[:i]
	}

	spec := &MsgSpec{Name: name}
	for _, line := range lines {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "=") {
			// blank or constant
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) < 2 {
			return nil, fmt.Errorf("%w: %s: %q", ErrDefinition, name, line)
		}
		f, err := parseField(pkg, tokens[0], tokens[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		spec.Fields = append(spec.Fields, f)
	}
	return spec, nil
}

func parseField(pkg, typ, name string) (Field, error) {
	f := Field{Name: name, Len: -1}
	if open := strings.IndexByte(typ, '['); open >= 0 {
		if !strings.HasSuffix(typ, "]") {
			return f, fmt.Errorf("%w: bad array type %q", ErrDefinition, typ)
		}
		f.IsArray = true
		bound := typ[open+1 : len(typ)-1]
		typ = typ[:open]
		if bound != "" && !strings.HasPrefix(bound, "<=") {
			n, err := strconv.Atoi(bound)
			if err != nil || n < 0 {
				return f, fmt.Errorf("%w: bad array length %q", ErrDefinition, bound)
			}
			f.Len = n
		}
	}
	f.Type = resolveType(pkg, typ)
	return f, nil
}

func resolveType(pkg, typ string) string {
	if _, ok := primitives[typ]; ok {
		return typ
	}
	if typ == "Header" {
		return "std_msgs/Header"
	}
	if strings.Contains(typ, "/") || pkg == "" {
		return typ
	}
	return pkg + "/" + typ
}
