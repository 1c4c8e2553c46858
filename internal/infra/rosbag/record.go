package rosbag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	opMessageData = 0x02
	opBagHeader   = 0x03
	opIndexData   = 0x04
	opChunk       = 0x05
	opChunkInfo   = 0x06
	opConnection  = 0x07
)

const maxHeaderLen = 16 << 20

var errBadRecord = errors.New("rosbag: malformed record")

type record struct {
	op        byte
	header    map[string][]byte
	headerLen uint32
	dataLen   uint32
}

// readRecordHeader reads the header and data length of the next record, leaving the data unread.
// A clean end of stream before the first byte returns io.EOF.
func readRecordHeader(r io.Reader) (*record, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	headerLen := binary.LittleEndian.Uint32(lenBuf[:])
	if headerLen > maxHeaderLen {
		return nil, fmt.Errorf("%w: header length %d", errBadRecord, headerLen)
	}

	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, noEOF(err)
	}
	fields, err := parseFields(raw)
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, noEOF(err)
	}

	op, ok := fields["op"]
	if !ok || len(op) != 1 {
		return nil, fmt.Errorf("%w: missing op", errBadRecord)
	}

	return &record{
		op:        op[0],
		header:    fields,
		headerLen: headerLen,
		dataLen:   binary.LittleEndian.Uint32(lenBuf[:]),
	}, nil
}

// parseFields splits a run of <len><name>=<value> entries.
func parseFields(raw []byte) (map[string][]byte, error) {
	fields := make(map[string][]byte)
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, fmt.Errorf("%w: truncated field length", errBadRecord)
		}
		n := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint64(n) > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: field overruns header", errBadRecord)
		}
		field := raw[:n]
		raw = raw[n:]

		eq := bytes.IndexByte(field, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: field without '='", errBadRecord)
		}
		fields[string(field[:eq])] = field[eq+1:]
	}
	return fields, nil
}

func (rec *record) uint32Field(name string) (uint32, error) {
	v, ok := rec.header[name]
	if !ok || len(v) != 4 {
		return 0, fmt.Errorf("%w: field %q", errBadRecord, name)
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (rec *record) uint64Field(name string) (uint64, error) {
	v, ok := rec.header[name]
	if !ok || len(v) != 8 {
		return 0, fmt.Errorf("%w: field %q", errBadRecord, name)
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (rec *record) timeField(name string) (time.Time, error) {
	v, ok := rec.header[name]
	if !ok || len(v) != 8 {
		return time.Time{}, fmt.Errorf("%w: field %q", errBadRecord, name)
	}
	sec := binary.LittleEndian.Uint32(v[0:4])
	nsec := binary.LittleEndian.Uint32(v[4:8])
	return time.Unix(int64(sec), int64(nsec)).UTC(), nil
}

// readData reads the n data bytes of a record from r, reusing buf when it is large enough.
// Lengths beyond the bytes left in r are malformed. Past cap(buf) memory grows with the
// bytes actually read, so a corrupt length inside a compressed chunk cannot force a large
// allocation either.
func readData(r *io.LimitedReader, n uint32, buf []byte) ([]byte, error) {
	if int64(n) > r.N {
		return nil, fmt.Errorf("%w: data length %d exceeds %d remaining bytes", errBadRecord, n, r.N)
	}
	if int(n) <= cap(buf) {
		data := buf[:n]
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, noEOF(err)
		}
		return data, nil
	}
	b := bytes.NewBuffer(buf[:0])
	got, err := b.ReadFrom(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if got < int64(n) {
		return nil, io.ErrUnexpectedEOF
	}
	return b.Bytes(), nil
}

func skip(r io.Reader, n uint32) error {
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(n))
	return noEOF(err)
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
