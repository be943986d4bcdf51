package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/medvault/medvault-api/pkg/errors"
)

// ActorKey is the context key the actor middleware stores the caller's
// user code under.
const ActorKey = "actor_code"

// Actor returns the caller's user code from the request context, or ""
// when the X-User-Code header was absent.
func Actor(c *gin.Context) string {
	return c.GetString(ActorKey)
}

// RespondError maps a service error onto the response envelope using the
// AppError status taxonomy.
func RespondError(c *gin.Context, err error) {
	c.JSON(apperrors.Status(err), NewErrorResponse(apperrors.Message(err)))
}
