package game

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"github.com/weplay-app/weplay-backend/internal/pkg/ws"
)

// Broadcaster fans events out to the sockets watching a game.
type Broadcaster interface {
	Publish(gameId string, msg ws.ServerMessage, sender *ws.Connection) int
}

type gameHandler struct {
	games       *GameService
	broadcaster Broadcaster
}

func RegisterRoutes(rg *gin.RouterGroup, games *GameService, auth *middleware.Authenticator, broadcaster Broadcaster) {
	handler := gameHandler{
		games:       games,
		broadcaster: broadcaster,
	}

	routes := rg.Group("/games")
	routes.GET("", auth.OptionalAuthToken, handler.getGames)
	routes.GET("/:id", handler.getGame)
	routes.POST("", auth.VerifyAuthToken, handler.createGame)
	routes.PUT("/:id", auth.VerifyAuthToken, handler.updateGame)
	routes.DELETE("/:id", auth.VerifyAuthToken, handler.deleteGame)
}

func (gh *gameHandler) getGames(c *gin.Context) {
	page, err := utils.NewPageRequest(c)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	filter := GameFilter{Status: model.GameStatus(c.Query("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}
	if c.Query("mine") == "true" {
		principal, ok := utils.GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, reject.UnauthorizedProblem())
			return
		}
		filter.CreatedBy = principal.UserId
	}

	games, count, err := gh.games.ListGames(c.Request.Context(), page, filter)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, utils.PageOf(games, count, page))
}

func (gh *gameHandler) getGame(c *gin.Context) {
	game, err := gh.games.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, game)
}

func (gh *gameHandler) createGame(c *gin.Context) {
	body := CreateGameRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	game, err := gh.games.CreateGame(c.Request.Context(), utils.GetUserId(c), body)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusCreated, game)
}

func (gh *gameHandler) updateGame(c *gin.Context) {
	body := UpdateGameRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, utils.BindingProblem(err))
		return
	}

	gameId := c.Param("id")
	game, accepted, err := gh.games.UpdateGame(c.Request.Context(), gameId, utils.GetUserId(c), body)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	if !accepted.Empty() {
		msg := ws.NewServerMessage(ws.EventGameUpdate, gameId, accepted).WithVersion(game.Version)
		gh.broadcaster.Publish(gameId, msg, nil)
	}

	c.JSON(http.StatusOK, game)
}

func (gh *gameHandler) deleteGame(c *gin.Context) {
	err := gh.games.DeleteGame(c.Request.Context(), c.Param("id"), utils.GetUserId(c))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.Status(http.StatusNoContent)
}
