package rosbag

import (
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

const magic = "#ROSBAG V2.0\n"

var ErrNotBag = errors.New("rosbag: not a ROS bag v2.0 file")

// Connection is the metadata of one channel in the bag.
type Connection struct {
	ID                uint32
	Topic             string
	Type              string
	MD5Sum            string
	MessageDefinition string
	CallerID          string
}

// Reader reads a ROS bag v2.0 from a seekable stream.
type Reader struct {
	rs         io.ReadSeeker
	closer     io.Closer
	indexPos   int64
	dataStart  int64
	size       int64
	connCount  uint32
	chunkCount uint32
}

// Open opens the bag at path. The caller must Close the reader.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bag: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader validates the file magic and the bag header record.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek bag end: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek bag start: %w", err)
	}
	br := bufio.NewReader(rs)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil || string(head) != magic {
		return nil, ErrNotBag
	}

	rec, err := readRecordHeader(br)
	if err != nil {
		return nil, fmt.Errorf("read bag header: %w", noEOF(err))
	}
	if rec.op != opBagHeader {
		return nil, fmt.Errorf("%w: first record op 0x%02x", ErrNotBag, rec.op)
	}
	indexPos, err := rec.uint64Field("index_pos")
	if err != nil {
		return nil, err
	}
	r := &Reader{rs: rs, indexPos: int64(indexPos), size: size}
	r.connCount, _ = rec.uint32Field("conn_count")
	r.chunkCount, _ = rec.uint32Field("chunk_count")

	// magic + header_len + header + data_len + padding
	r.dataStart = int64(len(magic)) + 4 + int64(rec.headerLen) + 4 + int64(rec.dataLen)
	return r, nil
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Connections lists the bag's connections in id order of appearance. It reads the index
// section when the bag has one and falls back to a linear scan otherwise.
func (r *Reader) Connections() ([]*Connection, error) {
	if r.indexPos > r.dataStart {
		conns, err := r.indexedConnections()
		if err == nil && len(conns) > 0 {
			return conns, nil
		}
	}

	it, err := r.Messages(func(*Connection) bool { return false })
	if err != nil {
		return nil, err
	}
	for {
		if _, err := it.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return it.Connections(), err
		}
	}
	return it.Connections(), nil
}

func (r *Reader) indexedConnections() ([]*Connection, error) {
	if _, err := r.rs.Seek(r.indexPos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek index: %w", err)
	}
	br := &io.LimitedReader{R: bufio.NewReader(r.rs), N: r.size - r.indexPos}

	var conns []*Connection
	seen := make(map[uint32]bool)
	for {
		rec, err := readRecordHeader(br)
		if errors.Is(err, io.EOF) {
			return conns, nil
		}
		if err != nil {
			return conns, err
		}
		if rec.op != opConnection {
			if err := skip(br, rec.dataLen); err != nil {
				return conns, err
			}
			continue
		}
		conn, err := readConnection(rec, br)
		if err != nil {
			return conns, err
		}
		if !seen[conn.ID] {
			seen[conn.ID] = true
			conns = append(conns, conn)
		}
	}
}

func readConnection(rec *record, r *io.LimitedReader) (*Connection, error) {
	id, err := rec.uint32Field("conn")
	if err != nil {
		return nil, err
	}
	data, err := readData(r, rec.dataLen, nil)
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		ID:                id,
		Topic:             string(rec.header["topic"]),
		Type:              string(fields["type"]),
		MD5Sum:            string(fields["md5sum"]),
		MessageDefinition: string(fields["message_definition"]),
		CallerID:          string(fields["callerid"]),
	}
	if conn.Topic == "" {
		conn.Topic = string(fields["topic"])
	}
	return conn, nil
}

func decompressor(compression string, r io.Reader) (io.Reader, error) {
	switch compression {
	case "", "none":
		return r, nil
	case "bz2":
		return bzip2.NewReader(r), nil
	case "lz4":
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("rosbag: unsupported chunk compression %q", compression)
	}
}
