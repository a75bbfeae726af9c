package tokenstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
)

const recordFormatVersion = 1

// record is the persisted form of one token.
type record struct {
	Owner     uuid.UUID
	ExpiresAt int64 // unix milliseconds, 0 = never
	Tags      Tags
}

// encodeRecord writes a versioned binary form:
//
//	version(1) owner(16) expires(8) ntags(2) { nlen(2) name vlen(4) value }*
func encodeRecord(r *record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersion)
	buf.Write(r.Owner[:])
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	if len(r.Tags) > 0xFFFF {
		return nil, errors.New("too many tags")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.Tags))); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(r.Tags))
	for name := range r.Tags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(name) > 0xFFFF {
			return nil, errors.New("tag name too long")
		}
		value := r.Tags[name]
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(name))); err != nil {
			return nil, err
		}
		buf.WriteString(name)
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(value))); err != nil {
			return nil, err
		}
		buf.Write(value)
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if version != recordFormatVersion {
		return nil, fmt.Errorf("%w: unknown record version %d", ErrTokenInvalid, version)
	}

	r := &record{}
	if _, err := io.ReadFull(reader, r.Owner[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	var count uint16
	if err := binary.Read(reader, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if count > 0 {
		r.Tags = make(Tags, count)
	}
	for i := 0; i < int(count); i++ {
		var nameLen uint16
		if err := binary.Read(reader, binary.BigEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(reader, name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		var valueLen uint32
		if err := binary.Read(reader, binary.BigEndian, &valueLen); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		if int64(valueLen) > int64(reader.Len()) {
			return nil, fmt.Errorf("%w: tag value truncated", ErrTokenInvalid)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(reader, value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		r.Tags[string(name)] = value
	}

	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrTokenInvalid)
	}
	return r, nil
}
