package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Entries handles GET /entries: parse the window, seek the journal,
// then stream serialized entries in the negotiated representation.
func (g *Gateway) Entries(c *gin.Context) {
	st := &requestState{}
	defer st.Close()

	j, err := g.source.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to open journal: %s\n", err)
		return
	}
	st.journal = j

	st.parseAccept(c.GetHeader("Accept"))

	if err := st.parseRange(c.GetHeader("Range")); err != nil {
		respondError(c, http.StatusBadRequest, "Failed to parse Range header.\n")
		return
	}

	if err := st.parseArguments(c.Request.URL.Query(), g.sys.BootID); err != nil {
		respondError(c, http.StatusBadRequest, "Failed to parse URL arguments.\n")
		return
	}

	if st.discrete {
		if st.cursor == "" {
			respondError(c, http.StatusBadRequest, "Discrete seeks require a cursor specification.\n")
			return
		}
		// Serve at most the one entry the cursor names.
		st.nEntries = 1
		st.nEntriesSet = true
	}

	switch {
	case st.cursor != "":
		err = j.SeekCursor(st.cursor)
	case st.nSkip >= 0:
		err = j.SeekHead()
	default:
		err = j.SeekTail()
	}
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to seek in journal.\n")
		return
	}

	c.Header("Content-Type", st.mode.MIME())
	stream := &entryStream{st: st, ctx: c.Request.Context(), logger: g.logger}
	g.stream(c, stream)
	g.metrics.EntriesStreamed.Add(c.Request.Context(), stream.entries)
}

// stream drives a body generator, flushing after every chunk so
// follow-mode and SSE clients see entries as they arrive.
func (g *Gateway) stream(c *gin.Context, r io.Reader) {
	c.Status(http.StatusOK)
	buf := make([]byte, streamChunkSize)

	c.Stream(func(w io.Writer) bool {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return false
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				g.metrics.StreamAborts.Add(c.Request.Context(), 1)
				g.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("response body aborted")
			}
			return false
		}
		return true
	})
}
