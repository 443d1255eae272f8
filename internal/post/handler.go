package post

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"github.com/weplay-app/weplay-backend/internal/pkg/ws"
)

type Broadcaster interface {
	Publish(gameId string, msg ws.ServerMessage, sender *ws.Connection) int
}

type postHandler struct {
	posts       *PostService
	broadcaster Broadcaster
}

func RegisterRoutes(rg *gin.RouterGroup, posts *PostService, auth *middleware.Authenticator, broadcaster Broadcaster) {
	handler := postHandler{
		posts:       posts,
		broadcaster: broadcaster,
	}

	routes := rg.Group("/posts")
	routes.GET("/game/:gameId", handler.getPostsByGame)
	routes.GET("/:id", handler.getPost)
	routes.POST("", auth.VerifyAuthToken, handler.createPost)
}

func (ph *postHandler) getPostsByGame(c *gin.Context) {
	page, err := utils.NewPageRequest(c)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	posts, count, err := ph.posts.ListByGame(c.Request.Context(), c.Param("gameId"), page)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, utils.PageOf(posts, count, page))
}

func (ph *postHandler) getPost(c *gin.Context) {
	post, err := ph.posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (ph *postHandler) createPost(c *gin.Context) {
	body := CreatePostRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	post, err := ph.posts.CreatePost(c.Request.Context(), body.GameId, utils.GetUserId(c), body.PostFields)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	ph.broadcaster.Publish(post.GameId, ws.NewServerMessage(ws.EventNewPost, post.GameId, post), nil)
	c.JSON(http.StatusCreated, post)
}
