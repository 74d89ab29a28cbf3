package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevingruber/journal-gateway/internal/format"
)

const (
	// streamChunkSize is the slice the response loop asks for per
	// read; bodies are chunked at this granularity.
	streamChunkSize = 4 * 1024

	// followWaitSlice bounds each blocking wait in follow mode so a
	// closed connection is noticed between slices.
	followWaitSlice = 250 * time.Millisecond
)

// errStreamAbort cuts the body mid-stream after headers are out; the
// HTTP layer can only close the connection at that point.
var errStreamAbort = errors.New("stream aborted")

// entryStream produces the serialized-entry byte stream for a
// request. Reads are answered at monotonically non-decreasing
// absolute offsets while the journal underneath advances one entry at
// a time: the current entry's serialization sits in the request
// scratch buffer, and (delta, size) translate absolute offsets into
// scratch-relative ones. The journal steps to the next entry exactly
// when the caller has consumed the current one.
type entryStream struct {
	st     *requestState
	ctx    context.Context
	logger zerolog.Logger

	pos     uint64
	entries int64
}

func (s *entryStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.read(s.pos, p)
	s.pos += uint64(n)
	return n, err
}

func (s *entryStream) read(pos uint64, p []byte) (int, error) {
	st := s.st

	if pos < st.delta {
		// Reads never go backwards.
		s.logger.Error().Uint64("pos", pos).Uint64("delta", st.delta).Msg("non-monotonic read offset")
		return 0, errStreamAbort
	}
	rel := pos - st.delta

	for rel >= st.size {
		// Current scratch is consumed; serialize the next entry.

		if st.nEntriesSet && st.nEntries == 0 {
			return 0, io.EOF
		}

		var ok bool
		var err error
		switch {
		case st.nSkip < 0:
			ok, err = st.journal.PreviousSkip(uint64(-st.nSkip) + 1)
		case st.nSkip > 0:
			ok, err = st.journal.NextSkip(uint64(st.nSkip) + 1)
		default:
			ok, err = st.journal.Next()
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to advance journal pointer")
			return 0, errStreamAbort
		}
		if !ok {
			if st.follow {
				if _, err := st.journal.Wait(s.ctx, followWaitSlice); err != nil {
					// The request went away while we slept.
					return 0, io.EOF
				}
				continue
			}
			return 0, io.EOF
		}

		if st.discrete {
			match, err := st.journal.TestCursor(st.cursor)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to test cursor")
				return 0, errStreamAbort
			}
			if !match {
				return 0, io.EOF
			}
		}

		rel -= st.size
		st.delta += st.size
		if st.nEntriesSet {
			st.nEntries--
		}
		st.nSkip = 0

		entry, err := st.journal.Entry()
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to read journal entry")
			return 0, errStreamAbort
		}
		st.scratch.Reset()
		if err := format.WriteEntry(&st.scratch, entry, st.mode); err != nil {
			s.logger.Error().Err(err).Msg("failed to serialize entry")
			return 0, errStreamAbort
		}
		st.size = uint64(st.scratch.Len())
		s.entries++
	}

	return copy(p, st.scratch.Bytes()[rel:st.size]), nil
}

// fieldStream is the reduced variant enumerating the unique values of
// one field. Same offset bookkeeping, no window, no follow, no
// discrete.
type fieldStream struct {
	st     *requestState
	logger zerolog.Logger

	pos    uint64
	fields int64
}

func (s *fieldStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.read(s.pos, p)
	s.pos += uint64(n)
	return n, err
}

func (s *fieldStream) read(pos uint64, p []byte) (int, error) {
	st := s.st

	if pos < st.delta {
		s.logger.Error().Uint64("pos", pos).Uint64("delta", st.delta).Msg("non-monotonic read offset")
		return 0, errStreamAbort
	}
	rel := pos - st.delta

	for rel >= st.size {
		if st.nFieldsSet && st.nFields == 0 {
			return 0, io.EOF
		}

		data, ok, err := st.journal.EnumerateUnique()
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to advance field index")
			return 0, errStreamAbort
		}
		if !ok {
			return 0, io.EOF
		}

		rel -= st.size
		st.delta += st.size
		if st.nFieldsSet {
			st.nFields--
		}

		st.scratch.Reset()
		if err := format.WriteField(&st.scratch, data, st.mode); err != nil {
			s.logger.Error().Err(err).Msg("failed to serialize field value")
			return 0, errStreamAbort
		}
		st.size = uint64(st.scratch.Len())
		s.fields++
	}

	return copy(p, st.scratch.Bytes()[rel:st.size]), nil
}
