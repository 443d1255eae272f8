package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/ratelimit"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
)

type authHandler struct {
	auth     *AuthService
	verifier IdTokenVerifier
}

// RegisterRoutes mounts the account endpoints. The federated sign-in route only exists
// when verifier is not nil.
func RegisterRoutes(
	rg *gin.RouterGroup,
	service *AuthService,
	authenticator *middleware.Authenticator,
	verifier IdTokenVerifier,
	loginLimiter ratelimit.Limiter,
) {
	handler := &authHandler{auth: service, verifier: verifier}

	routes := rg.Group("/users")
	routes.POST("/register", middleware.RateLimit(loginLimiter), handler.register)
	routes.POST("/login", middleware.RateLimit(loginLimiter), handler.login)
	routes.POST("/refresh", handler.refresh)
	routes.PUT("/password", authenticator.VerifyAuthToken, handler.changePassword)
	if verifier != nil {
		routes.POST("/federated", middleware.RateLimit(loginLimiter), handler.federated)
	}
}

func (ah *authHandler) register(c *gin.Context) {
	body := RegisterRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	response, err := ah.auth.Register(c.Request.Context(), body)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (ah *authHandler) login(c *gin.Context) {
	body := LoginRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	response, err := ah.auth.Login(c.Request.Context(), body)
	if err != nil {
		log.Info().Str("clientIp", c.ClientIP()).Msg("Failed login attempt")
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (ah *authHandler) refresh(c *gin.Context) {
	body := RefreshTokenRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	response, err := ah.auth.Refresh(c.Request.Context(), body.RefreshToken)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (ah *authHandler) changePassword(c *gin.Context) {
	body := ChangePasswordRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	if err := ah.auth.ChangePassword(c.Request.Context(), utils.GetUserId(c), body); err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.Status(http.StatusNoContent)
}

func (ah *authHandler) federated(c *gin.Context) {
	body := IdTokenRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	response, err := ah.auth.ExchangeIdToken(c.Request.Context(), ah.verifier, body.IdToken)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, response)
}
