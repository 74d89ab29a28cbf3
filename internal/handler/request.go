package handler

import (
	"bytes"

	"github.com/kevingruber/journal-gateway/internal/format"
	"github.com/kevingruber/journal-gateway/internal/journal"
)

// requestState is the per-request record behind a streaming response.
// The parser fills in the window (cursor, skip, count, flags); the
// stream generators own the scratch buffer and the offset bookkeeping.
// A request is served by exactly one goroutine, so nothing here is
// locked.
type requestState struct {
	journal journal.Journal

	mode format.Mode

	cursor string
	nSkip  int64

	nEntries    uint64
	nEntriesSet bool

	follow   bool
	discrete bool

	// scratch holds the serialization of the current entry or field
	// value; delta is the absolute offset of its first byte within
	// the response, size its length. delta+size is the first byte not
	// yet produced.
	scratch bytes.Buffer
	delta   uint64
	size    uint64

	nFields    uint64
	nFieldsSet bool
}

// Close releases the journal handle. Safe before the journal is open.
func (st *requestState) Close() {
	if st.journal != nil {
		st.journal.Close()
		st.journal = nil
	}
}
