package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Every failure body is plain text with a trailing newline, shaped
// here and nowhere else.

func respondError(c *gin.Context, code int, format string, args ...any) {
	c.Data(code, "text/plain", []byte(fmt.Sprintf(format, args...)))
	c.Abort()
}

// NotFound is the catch-all for unknown URLs.
func NotFound(c *gin.Context) {
	respondError(c, http.StatusNotFound, "Not found.\n")
}

func respondOOM(c *gin.Context) {
	c.Data(http.StatusServiceUnavailable, "text/plain", []byte("Out of memory.\n"))
	c.Abort()
}
