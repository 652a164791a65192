package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/halaqa/passport/middleware"
)

// getParticipantID extracts the authenticated participant id set by the auth
// middleware.
func getParticipantID(ctx *gin.Context) (string, bool) {
	id := ctx.GetString(middleware.ContextParticipantIDKey)
	return id, id != ""
}
