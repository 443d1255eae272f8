package profile

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/security"
	"github.com/weplay-app/weplay-backend/internal/pkg/testdb"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"gorm.io/gorm"
)

type testApi struct {
	router *gin.Engine
	db     *gorm.DB
	tokens *security.JWTManager
}

func newTestApi(t *testing.T) testApi {
	gin.SetMode(gin.TestMode)
	utils.RegisterValidators()

	db := testdb.Open(t)
	tokens := security.NewJWTManager(security.JWTConfig{
		SecretKey:            "test-secret",
		AccessTokenDuration:  time.Hour,
		RefreshTokenDuration: time.Hour,
	})
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), NewProfileService(db), middleware.NewAuthenticator(middleware.JWTVerifier{Manager: tokens}))

	for _, user := range []model.User{
		{Id: "u1", Username: "fan_1", Email: "fan1@weplay.app"},
		{Id: "u2", Username: "fan_2", Email: "fan2@weplay.app"},
	} {
		require.NoError(t, db.Create(&user).Error)
	}
	return testApi{router: router, db: db, tokens: tokens}
}

func (a testApi) do(t *testing.T, method, path, userId string, body any) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userId != "" {
		pair, err := a.tokens.IssuePair(userId, userId+"@weplay.app", userId)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestGetOwnProfile(t *testing.T) {
	api := newTestApi(t)

	w := api.do(t, http.MethodGet, "/api/v1/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/users/profile", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "fan_1", profile.Username)
	assert.Equal(t, "fan1@weplay.app", profile.Email)
}

func TestUpdateProfile(t *testing.T) {
	api := newTestApi(t)

	w := api.do(t, http.MethodPut, "/api/v1/users/profile", "u1", gin.H{"username": "fan_2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/users/profile", "u1", gin.H{"username": "no spaces"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/users/profile", "u1", gin.H{"avatar": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/users/profile", "u1", gin.H{
		"username": "slugger",
		"avatar":   "https://cdn.weplay.app/avatars/u1/a.png",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var stored model.User
	require.NoError(t, api.db.First(&stored, "id = ?", "u1").Error)
	assert.Equal(t, "slugger", stored.Username)
	assert.Equal(t, "https://cdn.weplay.app/avatars/u1/a.png", stored.Avatar)
}

func TestKeepingOwnUsernameIsNotAConflict(t *testing.T) {
	api := newTestApi(t)

	w := api.do(t, http.MethodPut, "/api/v1/users/profile", "u1", gin.H{"username": "fan_1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPublicProfile(t *testing.T) {
	api := newTestApi(t)
	require.NoError(t, api.db.Create(&model.Game{Title: "Finals", Status: model.GameWaiting, CreatedBy: "u2"}).Error)
	require.NoError(t, api.db.Create(&model.Post{GameId: "g", UserId: "u2", Type: model.PostCheer, Content: "Go!"}).Error)

	w := api.do(t, http.MethodGet, "/api/v1/users/u2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "fan2@weplay.app")

	var profile PublicProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, int64(1), profile.GamesCreated)
	assert.Equal(t, int64(1), profile.PostsCreated)

	w = api.do(t, http.MethodGet, "/api/v1/users/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
