package upload

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/ratelimit"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
)

type uploadHandler struct {
	uploads *UploadService
}

type DeleteFileRequest struct {
	FileUrl string `json:"fileUrl" binding:"required,url"`
}

func RegisterRoutes(rg *gin.RouterGroup, service *UploadService, auth *middleware.Authenticator, limiter ratelimit.Limiter) {
	handler := uploadHandler{uploads: service}

	routes := rg.Group("/upload", auth.VerifyAuthToken, middleware.RateLimit(limiter))
	routes.POST("/single", handler.uploadSingle)
	routes.POST("/multiple", handler.uploadMultiple)
	routes.POST("/avatar", handler.uploadAvatar)
	routes.DELETE("/file", handler.deleteFile)
}

func (h uploadHandler) uploadSingle(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	uploaded, problem := h.uploads.Upload(c.Request.Context(), utils.GetUserId(c), c.PostForm("folder"), file)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusCreated, uploaded)
}

func (h uploadHandler) uploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	uploaded, problem := h.uploads.UploadMany(c.Request.Context(), utils.GetUserId(c), c.PostForm("folder"), form.File["files"])
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"files": uploaded})
}

func (h uploadHandler) uploadAvatar(c *gin.Context) {
	file, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	uploaded, problem := h.uploads.UploadAvatar(c.Request.Context(), utils.GetUserId(c), file)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusCreated, uploaded)
}

func (h uploadHandler) deleteFile(c *gin.Context) {
	body := DeleteFileRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	if problem := h.uploads.Delete(c.Request.Context(), utils.GetUserId(c), body.FileUrl); problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.Status(http.StatusNoContent)
}
