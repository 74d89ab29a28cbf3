package journal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// The journal's native export framing: one KEY=VALUE line per text
// field, or for binary values a bare KEY line followed by a little-
// endian 64-bit length, the raw bytes, and a newline. Entries are
// separated by an empty line. The addressing fields __CURSOR,
// __REALTIME_TIMESTAMP, and __MONOTONIC_TIMESTAMP lead each entry.

const (
	fieldCursor    = "__CURSOR"
	fieldRealtime  = "__REALTIME_TIMESTAMP"
	fieldMonotonic = "__MONOTONIC_TIMESTAMP"
)

// WriteExport serializes one entry in export framing.
func WriteExport(w io.Writer, e *Entry) error {
	var buf bytes.Buffer

	writeText := func(name, value string) {
		buf.WriteString(name)
		buf.WriteByte('=')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}

	writeText(fieldCursor, e.Cursor)
	writeText(fieldRealtime, strconv.FormatUint(e.Realtime, 10))
	writeText(fieldMonotonic, strconv.FormatUint(e.Monotonic, 10))

	for _, f := range e.Fields {
		if bytes.IndexByte(f.Value, '\n') < 0 {
			buf.WriteString(f.Name)
			buf.WriteByte('=')
			buf.Write(f.Value)
			buf.WriteByte('\n')
			continue
		}
		buf.WriteString(f.Name)
		buf.WriteByte('\n')
		var sz [8]byte
		binary.LittleEndian.PutUint64(sz[:], uint64(len(f.Value)))
		buf.Write(sz[:])
		buf.Write(f.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// ExportDecoder reads entries from an export-format stream.
type ExportDecoder struct {
	r *bufio.Reader
}

func NewExportDecoder(r io.Reader) *ExportDecoder {
	return &ExportDecoder{r: bufio.NewReader(r)}
}

// Next decodes the next entry. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when the stream stops inside a field.
// A final entry that lacks only its separator line is returned as is.
func (d *ExportDecoder) Next() (*Entry, error) {
	e := &Entry{}
	started := false

	for {
		line, err := d.r.ReadBytes('\n')
		if err == io.EOF {
			if len(line) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			if started {
				// Trailing entry without separator line.
				return e, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		line = line[:len(line)-1]

		if len(line) == 0 {
			if !started {
				continue // stray separator
			}
			return e, nil
		}
		started = true

		var f Field
		if eq := bytes.IndexByte(line, '='); eq >= 0 {
			f = Field{Name: string(line[:eq]), Value: append([]byte(nil), line[eq+1:]...)}
		} else {
			f.Name = string(line)
			var sz [8]byte
			if _, err := io.ReadFull(d.r, sz[:]); err != nil {
				return nil, unexpected(err)
			}
			n := binary.LittleEndian.Uint64(sz[:])
			if n > 1<<31 {
				return nil, fmt.Errorf("binary field %s: implausible size %d", f.Name, n)
			}
			f.Value = make([]byte, n)
			if _, err := io.ReadFull(d.r, f.Value); err != nil {
				return nil, unexpected(err)
			}
			if nl, err := d.r.ReadByte(); err != nil {
				return nil, unexpected(err)
			} else if nl != '\n' {
				return nil, fmt.Errorf("binary field %s: missing terminator", f.Name)
			}
		}

		switch f.Name {
		case fieldCursor:
			e.Cursor = string(f.Value)
		case fieldRealtime:
			e.Realtime, _ = strconv.ParseUint(string(f.Value), 10, 64)
		case fieldMonotonic:
			e.Monotonic, _ = strconv.ParseUint(string(f.Value), 10, 64)
		default:
			e.Fields = append(e.Fields, f)
		}
	}
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
