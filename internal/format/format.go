// Package format renders journal entries in the four wire
// representations the gateway serves: a human-readable short form, a
// structured JSON form, the same JSON wrapped as server-sent events,
// and the journal's native export framing.
package format

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/kevingruber/journal-gateway/internal/journal"
)

// Mode selects an output representation.
type Mode int

const (
	Short Mode = iota
	JSON
	JSONSSE
	Export
)

const (
	MIMEShort   = "text/plain"
	MIMEJSON    = "application/json"
	MIMEJSONSSE = "text/event-stream"
	MIMEExport  = "application/vnd.fdo.journal"
)

// MIME returns the content type of the mode.
func (m Mode) MIME() string {
	switch m {
	case JSON:
		return MIMEJSON
	case JSONSSE:
		return MIMEJSONSSE
	case Export:
		return MIMEExport
	default:
		return MIMEShort
	}
}

// ModeFromAccept maps an Accept header to a mode. Only exact matches
// of the known types select anything other than Short.
func ModeFromAccept(accept string) Mode {
	switch accept {
	case MIMEJSON:
		return JSON
	case MIMEJSONSSE:
		return JSONSSE
	case MIMEExport:
		return Export
	default:
		return Short
	}
}

// WriteEntry appends one entry to buf in the given mode.
func WriteEntry(buf *bytes.Buffer, e *journal.Entry, m Mode) error {
	switch m {
	case JSON:
		writeJSONEntry(buf, e)
		buf.WriteByte('\n')
	case JSONSSE:
		buf.WriteString("data: ")
		writeJSONEntry(buf, e)
		buf.WriteString("\n\n")
	case Export:
		return journal.WriteExport(buf, e)
	default:
		writeShortEntry(buf, e)
	}
	return nil
}

// writeShortEntry renders the classic syslog-style line:
// "MMM _d HH:MM:SS host ident[pid]: message". Full width, no
// ellipsizing; single-digit days are space-padded.
func writeShortEntry(buf *bytes.Buffer, e *journal.Entry) {
	start := buf.Len()

	ts := time.UnixMicro(int64(e.Realtime))
	buf.WriteString(ts.Format("Jan _2 15:04:05"))

	if host, ok := e.Value("_HOSTNAME"); ok {
		buf.WriteByte(' ')
		buf.Write(host)
	}

	buf.WriteByte(' ')
	if ident, ok := e.Value("SYSLOG_IDENTIFIER"); ok {
		buf.Write(ident)
	} else if comm, ok := e.Value("_COMM"); ok {
		buf.Write(comm)
	} else {
		buf.WriteString("unknown")
	}
	if pid, ok := e.Value("_PID"); ok {
		buf.WriteByte('[')
		buf.Write(pid)
		buf.WriteByte(']')
	}
	buf.WriteString(": ")
	indent := buf.Len() - start

	if msg, ok := e.Value("MESSAGE"); ok {
		if utf8.Valid(msg) {
			// Continuation lines stay aligned under the header.
			for i, line := range bytes.Split(msg, []byte{'\n'}) {
				if i > 0 {
					buf.WriteByte('\n')
					buf.Write(bytes.Repeat([]byte{' '}, indent))
				}
				buf.Write(line)
			}
		} else {
			fmt.Fprintf(buf, "[%d blob data]", len(msg))
		}
	}
	buf.WriteByte('\n')
}

// writeJSONEntry renders one object per entry, addressing fields
// first and payload fields in journal order. Timestamps stay decimal
// strings so 64-bit values survive JSON consumers.
func writeJSONEntry(buf *bytes.Buffer, e *journal.Entry) {
	buf.WriteString("{ \"__CURSOR\" : ")
	appendJSONString(buf, e.Cursor)
	buf.WriteString(", \"__REALTIME_TIMESTAMP\" : \"")
	buf.WriteString(strconv.FormatUint(e.Realtime, 10))
	buf.WriteString("\", \"__MONOTONIC_TIMESTAMP\" : \"")
	buf.WriteString(strconv.FormatUint(e.Monotonic, 10))
	buf.WriteByte('"')

	for _, f := range e.Fields {
		buf.WriteString(", ")
		appendJSONString(buf, f.Name)
		buf.WriteString(" : ")
		appendJSONValue(buf, f.Value)
	}
	buf.WriteString(" }")
}

// WriteField appends one unique-value record. The data is raw
// field=value bytes as the store enumerates them; an entry without
// '=' violates the store contract.
func WriteField(buf *bytes.Buffer, data []byte, m Mode) error {
	eq := bytes.IndexByte(data, '=')
	if eq < 0 {
		return fmt.Errorf("malformed field data %q", data)
	}

	if m == JSON {
		buf.WriteString("{ \"")
		buf.Write(data[:eq])
		buf.WriteString("\" : ")
		appendJSONValue(buf, data[eq+1:])
		buf.WriteString(" }\n")
		return nil
	}

	buf.Write(data[eq+1:])
	buf.WriteByte('\n')
	return nil
}

func appendJSONString(buf *bytes.Buffer, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		// Strings always marshal; keep the stream well formed anyway.
		buf.WriteString(`""`)
		return
	}
	buf.Write(b)
}

// appendJSONValue emits text values as JSON strings and binary values
// as arrays of byte numbers, matching the journal's JSON convention.
func appendJSONValue(buf *bytes.Buffer, v []byte) {
	if utf8.Valid(v) {
		appendJSONString(buf, string(v))
		return
	}
	buf.WriteByte('[')
	for i, b := range v {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(strconv.Itoa(int(b)))
	}
	buf.WriteByte(']')
}
