package actuator

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterGin registers the endpoints on a gin router or group.
func (a *Actuator) RegisterGin(r gin.IRouter) {
	for _, rt := range a.routes {
		r.GET(rt.path, gin.WrapH(rt.handler))
	}
}

// GinMiddleware records request metrics labelled with the gin route
// template. Unmatched requests fall back to the URL path.
func (a *Actuator) GinMiddleware() gin.HandlerFunc {
	if a.metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			status := c.Writer.Status()
			v := recover()
			if v != nil {
				status = http.StatusInternalServerError
			}
			endpoint := c.FullPath()
			if endpoint == "" {
				endpoint = c.Request.URL.Path
			}
			a.metrics.RecordRequest(c.Request.Context(), c.Request.Method, endpoint, status, time.Since(start))
			if v != nil {
				panic(v)
			}
		}()
		c.Next()
	}
}
