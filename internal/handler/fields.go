package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kevingruber/journal-gateway/internal/format"
)

// Fields handles GET /fields/<name>: enumerate the distinct values
// the named field takes across the journal, one per line.
func (g *Gateway) Fields(c *gin.Context) {
	field := c.Param("field")

	st := &requestState{}
	defer st.Close()

	j, err := g.source.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to open journal: %s\n", err)
		return
	}
	st.journal = j

	st.parseAccept(c.GetHeader("Accept"))

	if err := j.QueryUnique(field); err != nil {
		respondError(c, http.StatusBadRequest, "Failed to query unique fields.\n")
		return
	}

	// Only a JSON accept selects JSON here; every other mode,
	// including SSE and export, collapses to plain text.
	mime := format.MIMEShort
	if st.mode == format.JSON {
		mime = format.MIMEJSON
	}
	c.Header("Content-Type", mime)

	stream := &fieldStream{st: st, logger: g.logger}
	g.stream(c, stream)
	g.metrics.FieldsStreamed.Add(c.Request.Context(), stream.fields)
}
