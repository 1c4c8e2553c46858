package rosbag

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

// MessageIterator walks the bag's records once, front to back, descending into chunks as they
// are met. Only the current message payload is held in memory.
type MessageIterator struct {
	top    *io.LimitedReader
	chunk  *io.LimitedReader
	rawCh  *io.LimitedReader
	conns  map[uint32]*Connection
	order  []*Connection
	wanted map[uint32]bool
	filter func(*Connection) bool
	buf    []byte

	SkippedChunks int
}

// Messages starts a pass over the bag. filter selects the connections whose messages are
// returned; nil selects all of them. Connection records are always collected.
func (r *Reader) Messages(filter func(*Connection) bool) (*MessageIterator, error) {
	if _, err := r.rs.Seek(r.dataStart, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek first record: %w", err)
	}
	return &MessageIterator{
		top:    &io.LimitedReader{R: bufio.NewReaderSize(r.rs, 1<<16), N: r.size - r.dataStart},
		conns:  make(map[uint32]*Connection),
		wanted: make(map[uint32]bool),
		filter: filter,
	}, nil
}

// Connections returns the connections seen so far in order of first appearance.
func (it *MessageIterator) Connections() []*Connection {
	return it.order
}

// Next returns the next selected message, or io.EOF at the end of the bag.
// The returned Data is only valid until the following call.
func (it *MessageIterator) Next() (*entity.RawMessage, error) {
	for {
		if it.chunk != nil {
			rec, err := readRecordHeader(it.chunk)
			if errors.Is(err, io.EOF) {
				if err := it.endChunk(); err != nil {
					return nil, err
				}
				continue
			}
			if err != nil {
				// A damaged chunk costs its own messages only.
				it.SkippedChunks++
				if err := it.endChunk(); err != nil {
					return nil, err
				}
				continue
			}
			msg, err := it.handle(rec, it.chunk)
			if err != nil {
				it.SkippedChunks++
				if err := it.endChunk(); err != nil {
					return nil, err
				}
				continue
			}
			if msg != nil {
				return msg, nil
			}
			continue
		}

		rec, err := readRecordHeader(it.top)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read record: %w", err)
		}

		if rec.op == opChunk {
			raw := &io.LimitedReader{R: it.top, N: int64(rec.dataLen)}
			chunk, err := openChunk(rec, raw)
			if err != nil {
				it.SkippedChunks++
				if err := skip(raw, rec.dataLen); err != nil {
					return nil, err
				}
				continue
			}
			it.rawCh = raw
			it.chunk = chunk
			continue
		}

		msg, err := it.handle(rec, it.top)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}

func (it *MessageIterator) endChunk() error {
	raw := it.rawCh
	it.chunk = nil
	it.rawCh = nil
	if _, err := io.Copy(io.Discard, raw); err != nil {
		return fmt.Errorf("drain chunk: %w", err)
	}
	if raw.N > 0 {
		return fmt.Errorf("drain chunk: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

// openChunk returns the decompressed records of a chunk, bounded by the uncompressed size the
// chunk declares.
func openChunk(rec *record, raw io.Reader) (*io.LimitedReader, error) {
	compression := string(rec.header["compression"])
	size, err := chunkSize(rec, compression)
	if err != nil {
		return nil, err
	}
	dec, err := decompressor(compression, raw)
	if err != nil {
		return nil, err
	}
	return &io.LimitedReader{R: bufio.NewReader(dec), N: size}, nil
}

// An uncompressed chunk cannot hold more than its own data.
func chunkSize(rec *record, compression string) (int64, error) {
	size, err := rec.uint32Field("size")
	uncompressed := compression == "" || compression == "none"
	switch {
	case err != nil && uncompressed:
		return int64(rec.dataLen), nil
	case err != nil:
		return 0, err
	case uncompressed && size > rec.dataLen:
		return int64(rec.dataLen), nil
	}
	return int64(size), nil
}

func (it *MessageIterator) handle(rec *record, r *io.LimitedReader) (*entity.RawMessage, error) {
	switch rec.op {
	case opConnection:
		conn, err := readConnection(rec, r)
		if err != nil {
			return nil, err
		}
		if _, ok := it.conns[conn.ID]; !ok {
			it.conns[conn.ID] = conn
			it.order = append(it.order, conn)
			it.wanted[conn.ID] = it.filter == nil || it.filter(conn)
		}
		return nil, nil

	case opMessageData:
		id, err := rec.uint32Field("conn")
		if err != nil {
			return nil, err
		}
		conn, ok := it.conns[id]
		if !ok || !it.wanted[id] {
			return nil, skip(r, rec.dataLen)
		}
		ts, err := rec.timeField("time")
		if err != nil {
			return nil, err
		}

		data, err := readData(r, rec.dataLen, it.buf)
		if err != nil {
			return nil, err
		}
		it.buf = data
		return &entity.RawMessage{
			ChannelID:  conn.ID,
			Topic:      conn.Topic,
			Type:       conn.Type,
			Definition: conn.MessageDefinition,
			Timestamp:  ts,
			Data:       data,
		}, nil

	default:
		return nil, skip(r, rec.dataLen)
	}
}
