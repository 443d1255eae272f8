package profile

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
)

type profileHandler struct {
	profile *ProfileService
}

func RegisterRoutes(rg *gin.RouterGroup, service *ProfileService, auth *middleware.Authenticator) {
	handler := profileHandler{profile: service}

	routes := rg.Group("/users")
	routes.GET("/profile", auth.VerifyAuthToken, handler.getOwnProfile)
	routes.PUT("/profile", auth.VerifyAuthToken, handler.updateProfile)
	routes.GET("/:id", handler.getProfileById)
}

func (h profileHandler) getOwnProfile(c *gin.Context) {
	profile, err := h.profile.FindOwn(c.Request.Context(), utils.GetUserId(c))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h profileHandler) updateProfile(c *gin.Context) {
	body := UpdateProfileRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	profile, err := h.profile.Update(c.Request.Context(), utils.GetUserId(c), body)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h profileHandler) getProfileById(c *gin.Context) {
	profile, err := h.profile.FindPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, profile)
}
