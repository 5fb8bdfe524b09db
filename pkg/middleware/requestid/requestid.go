package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header carries the id in both directions.
	Header    = "X-Request-ID"
	ginKey    = "request_id"
	maxLength = 128
)

type ctxKey struct{}

// Middleware tags every request with an id. An inbound X-Request-ID is reused
// when it is short and printable; anything else is replaced by a fresh UUID.
// The id is also attached to the request context so services and background
// jobs spawned from the request can log it.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}

		c.Set(ginKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, id))
		c.Writer.Header().Set(Header, id)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if id := c.GetString(ginKey); id != "" {
		return id
	}
	return FromContext(c.Request.Context())
}

// FromContext returns the request id carried by ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
