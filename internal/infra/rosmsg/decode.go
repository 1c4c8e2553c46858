package rosmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrShortBuffer = errors.New("rosmsg: message shorter than its definition")

const maxDepth = 32

// Time is a ROS time or duration value.
type Time struct {
	Sec  int64
	Nsec int64
}

func (t Time) Seconds() float64 {
	return float64(t.Sec) + float64(t.Nsec)/1e9
}

func (t Time) IsZero() bool {
	return t.Sec == 0 && t.Nsec == 0
}

// Decode deserializes data into nested maps keyed by field name. uint8/byte/char arrays are
// returned as []byte slices aliasing data; other arrays as []any.
func (s *Schema) Decode(data []byte) (map[string]any, error) {
	d := &decoder{buf: data}
	return d.message(s, s.Root, 0)
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.buf)-d.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortBuffer, n, d.off, len(d.buf))
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) message(s *Schema, spec *MsgSpec, depth int) (map[string]any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrDefinition, maxDepth)
	}
	out := make(map[string]any, len(spec.Fields))
	for _, f := range spec.Fields {
		v, err := d.field(s, f, depth)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", spec.Name, f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (d *decoder) field(s *Schema, f Field, depth int) (any, error) {
	if !f.IsArray {
		return d.value(s, f.Type, depth)
	}

	n := f.Len
	if n < 0 {
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		n = int(binary.LittleEndian.Uint32(b))
	}

	switch f.Type {
	case "uint8", "byte", "char":
		return d.take(n)
	}
	if n > len(d.buf)-d.off {
		// every element occupies at least one byte
		return nil, fmt.Errorf("%w: array of %d elements", ErrShortBuffer, n)
	}
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.value(s, f.Type, depth)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (d *decoder) value(s *Schema, typ string, depth int) (any, error) {
	size, primitive := primitives[typ]
	if !primitive {
		return d.message(s, s.specs[typ], depth+1)
	}
	if typ == "string" {
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		str, err := d.take(int(binary.LittleEndian.Uint32(b)))
		if err != nil {
			return nil, err
		}
		return string(str), nil
	}

	b, err := d.take(size)
	if err != nil {
		return nil, err
	}
	switch typ {
	case "bool":
		return b[0] != 0, nil
	case "int8":
		return int8(b[0]), nil
	case "uint8", "byte", "char":
		return b[0], nil
	case "int16":
		return int16(binary.LittleEndian.Uint16(b)), nil
	case "uint16":
		return binary.LittleEndian.Uint16(b), nil
	case "int32":
		return int32(binary.LittleEndian.Uint32(b)), nil
	case "uint32":
		return binary.LittleEndian.Uint32(b), nil
	case "float32":
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case "int64":
		return int64(binary.LittleEndian.Uint64(b)), nil
	case "uint64":
		return binary.LittleEndian.Uint64(b), nil
	case "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case "time":
		return Time{
			Sec:  int64(binary.LittleEndian.Uint32(b[0:4])),
			Nsec: int64(binary.LittleEndian.Uint32(b[4:8])),
		}, nil
	default: // duration
		return Time{
			Sec:  int64(int32(binary.LittleEndian.Uint32(b[0:4]))),
			Nsec: int64(int32(binary.LittleEndian.Uint32(b[4:8]))),
		}, nil
	}
}
