package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

const browseTarget = "/browse"

// Redirect handles GET /: a permanent redirect to the browser, with a
// minimal HTML body carrying the link for clients that ignore the
// Location header.
func (g *Gateway) Redirect(c *gin.Context) {
	body := `<html><body>Please continue to the <a href="` + browseTarget + `">journal browser</a>.</body></html>`
	c.Header("Location", browseTarget)
	c.Data(http.StatusMovedPermanently, "text/html", []byte(body))
}

// Browse serves the static browser asset.
func (g *Gateway) Browse(c *gin.Context) {
	f, err := os.Open(g.browseFile)
	if err != nil {
		respondError(c, http.StatusNotFound, "Failed to open file %s: %s\n", g.browseFile, err)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to stat file: %s\n", err)
		return
	}

	c.DataFromReader(http.StatusOK, st.Size(), "text/html", f, nil)
}
