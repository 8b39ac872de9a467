// Package recordindex implements the point-lookup index backing C10 in
// SPEC_FULL.md: a sorted table of records (length-prefixed document ID, byte
// offset, length) that a binary search resolves directly to an on-disk byte
// range, without running the inverted index at all. It is adapted from
// friggdb's record encoding and finder (friggdb/encoding/record.go,
// friggdb/backend/finder.go), generalized from friggdb's fixed 128-bit
// trace ID to an arbitrary-length document ID.
package recordindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// fixedFieldsLength is the encoded size of a Record's Start and Length
// fields (64-bit offset + 32-bit length); the ID itself is variable-length
// and is length-prefixed ahead of them.
const fixedFieldsLength = 8 + 4

// Record is one entry in a split's point-lookup index: the byte range
// within the split's document store holding the document identified by ID.
type Record struct {
	ID     []byte
	Start  uint64
	Length uint32
}

// MarshalRecords encodes records, which must already be sorted by ID
// ascending (see SortRecords), into the index's on-disk byte layout.
func MarshalRecords(records []Record) []byte {
	var out []byte
	for _, r := range records {
		out = appendRecord(out, r)
	}
	return out
}

func appendRecord(buf []byte, r Record) []byte {
	var lenPrefix [2]byte
	binary.LittleEndian.PutUint16(lenPrefix[:], uint16(len(r.ID)))
	buf = append(buf, lenPrefix[:]...)
	buf = append(buf, r.ID...)

	var fixed [fixedFieldsLength]byte
	binary.LittleEndian.PutUint64(fixed[:8], r.Start)
	binary.LittleEndian.PutUint32(fixed[8:], r.Length)
	buf = append(buf, fixed[:]...)
	return buf
}

// SortRecords sorts records by ID ascending in place, the order
// UnmarshalRecords and FindRecord require.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].ID, records[j].ID) < 0
	})
}

// UnmarshalRecords decodes a full index produced by MarshalRecords.
func UnmarshalRecords(buf []byte) ([]Record, error) {
	var out []Record
	for len(buf) > 0 {
		r, rest, err := decodeOne(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		buf = rest
	}
	return out, nil
}

func decodeOne(buf []byte) (Record, []byte, error) {
	if len(buf) < 2 {
		return Record{}, nil, fmt.Errorf("recordindex: truncated length prefix")
	}
	idLen := int(binary.LittleEndian.Uint16(buf[:2]))
	buf = buf[2:]
	if len(buf) < idLen+fixedFieldsLength {
		return Record{}, nil, fmt.Errorf("recordindex: truncated record")
	}
	id := append([]byte(nil), buf[:idLen]...)
	buf = buf[idLen:]
	start := binary.LittleEndian.Uint64(buf[:8])
	length := binary.LittleEndian.Uint32(buf[8:12])
	buf = buf[fixedFieldsLength:]
	return Record{ID: id, Start: start, Length: length}, buf, nil
}

// FindRecord binary-searches records (sorted by ID ascending, as
// UnmarshalRecords returns them from a MarshalRecords encoding) for id. It
// returns ok=false if id is not present.
//
// Unlike friggdb's fixed-28-byte-stride binary search over the raw bytes,
// records here are variable-length (the ID length is not known up front),
// so the search runs over a table that UnmarshalRecords has already decoded
// in full.
func FindRecord(id []byte, records []Record) (Record, bool) {
	i := sort.Search(len(records), func(i int) bool {
		return bytes.Compare(records[i].ID, id) >= 0
	})
	if i < len(records) && bytes.Equal(records[i].ID, id) {
		return records[i], true
	}
	return Record{}, false
}
