// Package testutil builds ROS bag fixtures and serialized messages for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/pierrec/lz4/v4"
)

type bagConn struct {
	id         uint32
	topic      string
	typ        string
	definition string
}

type bagMsg struct {
	conn uint32
	t    time.Time
	data []byte
}

// Bag accumulates connections and messages and serializes them as a ROS bag v2.0 file
// with a single chunk followed by an index section.
type Bag struct {
	conns []bagConn
	msgs  []bagMsg
	// Compression is the chunk compression: "none" (default) or "lz4".
	Compression string
	// Unindexed writes index_pos=0 and omits the index section.
	Unindexed bool
}

func NewBag() *Bag {
	return &Bag{Compression: "none"}
}

func (b *Bag) AddConnection(topic, typ, definition string) uint32 {
	id := uint32(len(b.conns))
	b.conns = append(b.conns, bagConn{id: id, topic: topic, typ: typ, definition: definition})
	return id
}

func (b *Bag) AddMessage(conn uint32, t time.Time, data []byte) {
	b.msgs = append(b.msgs, bagMsg{conn: conn, t: t, data: append([]byte(nil), data...)})
}

func (b *Bag) WriteFile(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *Bag) Bytes() ([]byte, error) {
	var chunkBody bytes.Buffer
	for _, c := range b.conns {
		writeConnection(&chunkBody, c)
	}
	for _, m := range b.msgs {
		writeRecord(&chunkBody, [][2][]byte{
			field("op", []byte{0x02}),
			field("conn", u32(m.conn)),
			field("time", stamp(m.t)),
		}, m.data)
	}

	payload := chunkBody.Bytes()
	switch b.Compression {
	case "", "none":
	case "lz4":
		var out bytes.Buffer
		zw := lz4.NewWriter(&out)
		if _, err := zw.Write(payload); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		payload = out.Bytes()
	default:
		return nil, fmt.Errorf("testutil: unsupported compression %q", b.Compression)
	}

	var body bytes.Buffer
	writeRecord(&body, [][2][]byte{
		field("op", []byte{0x05}),
		field("compression", []byte(nonEmpty(b.Compression))),
		field("size", u32(uint32(chunkBody.Len()))),
	}, payload)
	for _, c := range b.conns {
		writeRecord(&body, [][2][]byte{
			field("op", []byte{0x04}),
			field("ver", u32(1)),
			field("conn", u32(c.id)),
			field("count", u32(0)),
		}, nil)
	}

	headerLen := bagHeaderLen()
	chunkPos := uint64(len("#ROSBAG V2.0\n") + headerLen)
	indexPos := chunkPos + uint64(body.Len())

	if !b.Unindexed {
		for _, c := range b.conns {
			writeConnection(&body, c)
		}
		writeRecord(&body, [][2][]byte{
			field("op", []byte{0x06}),
			field("ver", u32(1)),
			field("chunk_pos", u64(chunkPos)),
			field("start_time", stamp(time.Unix(0, 0))),
			field("end_time", stamp(time.Unix(0, 0))),
			field("count", u32(0)),
		}, nil)
	} else {
		indexPos = 0
	}

	var out bytes.Buffer
	out.WriteString("#ROSBAG V2.0\n")
	writeRecord(&out, [][2][]byte{
		field("op", []byte{0x03}),
		field("index_pos", u64(indexPos)),
		field("conn_count", u32(uint32(len(b.conns)))),
		field("chunk_count", u32(1)),
	}, nil)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func nonEmpty(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func bagHeaderLen() int {
	var b bytes.Buffer
	writeRecord(&b, [][2][]byte{
		field("op", []byte{0x03}),
		field("index_pos", u64(0)),
		field("conn_count", u32(0)),
		field("chunk_count", u32(0)),
	}, nil)
	return b.Len()
}

func writeConnection(w *bytes.Buffer, c bagConn) {
	var data bytes.Buffer
	writeFields(&data, [][2][]byte{
		field("topic", []byte(c.topic)),
		field("type", []byte(c.typ)),
		field("md5sum", []byte("*")),
		field("message_definition", []byte(c.definition)),
	})
	writeRecord(w, [][2][]byte{
		field("op", []byte{0x07}),
		field("conn", u32(c.id)),
		field("topic", []byte(c.topic)),
	}, data.Bytes())
}

func writeRecord(w *bytes.Buffer, header [][2][]byte, data []byte) {
	var h bytes.Buffer
	writeFields(&h, header)
	w.Write(u32(uint32(h.Len())))
	w.Write(h.Bytes())
	w.Write(u32(uint32(len(data))))
	w.Write(data)
}

func writeFields(w *bytes.Buffer, fields [][2][]byte) {
	for _, f := range fields {
		w.Write(u32(uint32(len(f[0]) + 1 + len(f[1]))))
		w.Write(f[0])
		w.WriteByte('=')
		w.Write(f[1])
	}
}

func field(name string, value []byte) [2][]byte {
	return [2][]byte{[]byte(name), value}
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func stamp(t time.Time) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], uint32(t.Unix()))
	binary.LittleEndian.PutUint32(b[4:8], uint32(t.Nanosecond()))
	return b
}
