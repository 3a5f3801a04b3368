package mw

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ActorHeader carries the ID of the user performing the request. It is set
// by the authenticating proxy in front of the service.
const ActorHeader = "X-Actor-ID"

const actorKey = "actorID"

// Actor requires a numeric actor ID and stores it on the context.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ActorHeader + " header is required"})
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid " + ActorHeader + " header"})
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the actor stored by Actor.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}
