// Package middleware provides caller identity and rate limiting for the
// HTTP surface.
package middleware

import "github.com/gin-gonic/gin"

// CallerIDHeader identifies the caller; the gateway sets it. Requests
// without it fall back to the client IP.
const CallerIDHeader = "X-Caller-ID"

// CallerID returns the rate-limit identity of a request.
func CallerID(c *gin.Context) string {
	if id := c.GetHeader(CallerIDHeader); id != "" {
		return id
	}
	return c.ClientIP()
}
