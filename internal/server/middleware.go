package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/retailops/incidentd/internal/actorcontext"
)

const (
	HeaderActorID     = "X-Actor-Id"
	contextActorIDKey = "actor_id"
)

// ActorRequired resolves the acting user from the X-Actor-Id header and
// stores it in the request context for services and audit logging.
// Mutating routes refuse requests without one.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actorID, err := snowflake.ParseString(raw)
		if err != nil || actorID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actorcontext.WithActor(c.Request.Context(), "user", actorID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorIDKey, actorID.String())
		c.Next()
	}
}

// actorID returns the authenticated actor for the request. Handlers
// behind ActorRequired can rely on it being set.
func actorID(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetString(contextActorIDKey))
	if raw == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return parsed, true
}
