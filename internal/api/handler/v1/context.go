package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/evermeet/events-api/internal/api/handler/v1/response"
	"github.com/evermeet/events-api/internal/api/middleware"
)

// getCallerID reads the identity the JWT middleware resolved. A missing or
// mistyped value means the route was mounted without the authenticator.
func getCallerID(ctx *gin.Context) (uint, *response.Err) {
	value, exists := ctx.Get(middleware.ContextKeyUserID)
	if !exists {
		return 0, response.ErrUnauthorized("missing caller identity")
	}

	userID, ok := value.(uint)
	if !ok || userID == 0 {
		return 0, response.ErrUnauthorized("invalid caller identity")
	}

	return userID, nil
}
