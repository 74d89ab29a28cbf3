package journal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Field is one KEY=VALUE element of an entry. Values are binary-safe.
type Field struct {
	Name  string
	Value []byte
}

// Entry is a single journal record: addressing metadata plus an
// ordered field list. Field order is preserved through serialization.
type Entry struct {
	Seqnum    uint64
	Cursor    string
	Realtime  uint64 // usec since epoch
	Monotonic uint64 // usec since boot
	Fields    []Field
}

// Value returns the value of the named field.
func (e *Entry) Value(name string) ([]byte, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// approxSize is the entry's contribution to Usage accounting.
func (e *Entry) approxSize() uint64 {
	n := uint64(len(e.Cursor)) + 16
	for _, f := range e.Fields {
		n += uint64(len(f.Name)) + uint64(len(f.Value)) + 2
	}
	return n
}

// deriveCursor builds a cursor for an entry that arrived without one.
// The sequence number makes it unique and ordered; the content hash
// ties it to the entry's bytes.
func deriveCursor(seq uint64, fields []Field) string {
	h := xxh3.New()
	for _, f := range fields {
		h.WriteString(f.Name)
		h.Write([]byte{'='})
		h.Write(f.Value)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("i=%x;x=%016x", seq, h.Sum64())
}

// cursorSeqnum extracts the sequence number from a cursor string of
// the form "i=<hex>;...". It fails on anything else.
func cursorSeqnum(cursor string) (uint64, error) {
	for _, part := range strings.Split(cursor, ";") {
		if v, ok := strings.CutPrefix(part, "i="); ok {
			seq, err := strconv.ParseUint(v, 16, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
			}
			return seq, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
}
