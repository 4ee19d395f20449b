package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies. Multipart uploads get maxUpload, every other
// body gets maxBody. A declared Content-Length over the cap is refused with
// 413 up front; a body that runs past it fails on read with
// *http.MaxBytesError.
func BodyLimit(maxBody, maxUpload int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		limit := maxBody
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = maxUpload
		}
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			abortWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
