package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// bodyCacheWriter buffers the response body so its hash can be computed
// before anything is sent.
type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCacheWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bodyCacheWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// ETagCache tags successful GET responses with a strong ETag and answers a
// matching If-None-Match with 304. maxAge is the Cache-Control max-age in
// seconds.
func ETagCache(maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		bcw := &bodyCacheWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = bcw
		c.Next()
		c.Writer = bcw.ResponseWriter

		body := bcw.body.Bytes()
		if c.Writer.Status() == http.StatusOK && len(body) > 0 {
			etag := fmt.Sprintf(`"%x"`, sha256.Sum256(body))
			c.Header("ETag", etag)
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d, must-revalidate", maxAge))

			if c.GetHeader("If-None-Match") == etag {
				c.Writer.WriteHeader(http.StatusNotModified)
				c.Writer.WriteHeaderNow()
				return
			}
		}

		_, _ = c.Writer.Write(body)
	}
}
