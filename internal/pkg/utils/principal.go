package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const principalCtxKey string = "principal"

// Principal is the authenticated user attached to a request or socket.
type Principal struct {
	UserId   string
	Email    string
	Username string
}

func SetPrincipalCtx(principal Principal, ctx *gin.Context) {
	ctx.Set(principalCtxKey, principal)
}

// GetPrincipal returns the principal if the request carried a valid token.
func GetPrincipal(ctx *gin.Context) (Principal, bool) {
	value, exists := ctx.Get(principalCtxKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

// GetUserId must only be used behind the VerifyAuthToken middleware.
func GetUserId(ctx *gin.Context) string {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return ""
	}
	return principal.UserId
}
