package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileSource serves journals loaded from an export-format file. With
// watching enabled it tails the file and appends entries as they are
// written, which feeds follow-mode requests.
type FileSource struct {
	store   *Store
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}

	offset  int64
	pending []byte
}

// NewFileSource loads the journal at path. When watch is true the
// source keeps tailing the file until Close.
func NewFileSource(path string, watch bool, logger zerolog.Logger) (*FileSource, error) {
	s := &FileSource{
		store:  NewStore(),
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := s.ingest(); err != nil {
		return nil, fmt.Errorf("load journal %s: %w", path, err)
	}

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("watch journal %s: %w", path, err)
		}
		if err := w.Add(path); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch journal %s: %w", path, err)
		}
		s.watcher = w
		go s.tail()
	}

	return s, nil
}

// Open implements Source.
func (s *FileSource) Open() (Journal, error) {
	return s.store.Open()
}

// Close stops tailing. Already-open journals keep working against the
// loaded entries.
func (s *FileSource) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Store exposes the backing store, letting the process append its own
// entries alongside the file's.
func (s *FileSource) Store() *Store {
	return s.store
}

func (s *FileSource) tail() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) {
				if err := s.ingest(); err != nil {
					s.logger.Error().Err(err).Str("path", s.path).Msg("failed to ingest journal growth")
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Str("path", s.path).Msg("journal watch error")
		}
	}
}

// ingest reads new bytes past the last consumed offset and appends
// every complete entry found. Partial trailing entries stay pending
// until the writer finishes them.
func (s *FileSource) ingest() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() < s.offset {
		// Truncated underneath us; entries already served stay, the
		// rewritten file is read from the start.
		s.offset = 0
		s.pending = s.pending[:0]
	}

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	s.offset += int64(len(data))
	s.pending = append(s.pending, data...)

	for {
		n := completeEntryLen(s.pending)
		if n < 0 {
			return nil
		}
		chunk := s.pending[:n]
		s.pending = s.pending[n:]

		e, err := NewExportDecoder(bytes.NewReader(chunk)).Next()
		if err == io.EOF {
			continue // separator-only chunk
		}
		if err != nil {
			return fmt.Errorf("decode entry: %w", err)
		}
		s.store.AppendEntry(e)
	}
}

// completeEntryLen returns the byte length of the first fully framed
// entry in p, including its separator line, or -1 if p ends mid-entry.
// It walks the line structure so that binary values containing empty
// lines do not terminate the entry early.
func completeEntryLen(p []byte) int {
	i := 0
	started := false
	for {
		nl := bytes.IndexByte(p[i:], '\n')
		if nl < 0 {
			return -1
		}
		line := p[i : i+nl]
		i += nl + 1

		if len(line) == 0 {
			if started {
				return i
			}
			return i // stray separator, consumed on its own
		}
		started = true

		if bytes.IndexByte(line, '=') >= 0 {
			continue
		}
		// Binary field: size, payload, terminating newline.
		if len(p) < i+8 {
			return -1
		}
		n := binary.LittleEndian.Uint64(p[i : i+8])
		if n > 1<<31 {
			return -1
		}
		i += 8 + int(n) + 1
		if len(p) < i {
			return -1
		}
	}
}
