package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
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

const baseUrl = "https://cdn.weplay.app"

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.failOn != "" && strings.Contains(key, m.failOn) {
		return "", errors.New("bucket unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return baseUrl + "/" + key, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) KeyFromUrl(url string) (string, bool) {
	key, found := strings.CutPrefix(url, baseUrl+"/")
	return key, found && key != ""
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type testApi struct {
	router *gin.Engine
	store  *memoryStore
	db     *gorm.DB
	tokens *security.JWTManager
}

func newTestApi(t *testing.T) testApi {
	gin.SetMode(gin.TestMode)
	utils.RegisterValidators()

	db := testdb.Open(t)
	require.NoError(t, db.Create(&model.User{Id: "u1", Username: "fan_1", Email: "fan1@weplay.app"}).Error)

	store := newMemoryStore()
	tokens := security.NewJWTManager(security.JWTConfig{
		SecretKey:            "test-secret",
		AccessTokenDuration:  time.Hour,
		RefreshTokenDuration: time.Hour,
	})
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), NewUploadService(store, db), middleware.NewAuthenticator(middleware.JWTVerifier{Manager: tokens}), nil)
	return testApi{router: router, store: store, db: db, tokens: tokens}
}

type part struct {
	field       string
	filename    string
	contentType string
	data        string
}

func (a testApi) upload(t *testing.T, path string, userId string, fields map[string]string, parts ...part) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		header.Set("Content-Type", p.contentType)
		w, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return a.send(t, req, userId)
}

func (a testApi) send(t *testing.T, req *http.Request, userId string) *httptest.ResponseRecorder {
	if userId != "" {
		pair, err := a.tokens.IssuePair(userId, userId+"@weplay.app", userId)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestUploadSingle(t *testing.T) {
	api := newTestApi(t)

	w := api.upload(t, "/api/v1/upload/single", "", nil, part{"file", "hit.jpg", "image/jpeg", "jpeg"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.upload(t, "/api/v1/upload/single", "u1", nil, part{"file", "Walk Off Hit.JPG", "image/jpeg", "jpeg"})
	require.Equal(t, http.StatusCreated, w.Code)

	var uploaded UploadedFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Regexp(t, `^posts/u1/\d+-walk-off-hit-[0-9a-f]{6}\.jpg$`, uploaded.Key)
	assert.Equal(t, baseUrl+"/"+uploaded.Key, uploaded.Url)
	assert.Equal(t, model.MediaImage, uploaded.MediaType)
	assert.Equal(t, 1, api.store.count())
}

func TestUploadRejectsBadInput(t *testing.T) {
	api := newTestApi(t)

	w := api.upload(t, "/api/v1/upload/single", "u1", nil, part{"file", "doc.pdf", "application/pdf", "pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), unsupportedType)

	w = api.upload(t, "/api/v1/upload/single", "u1", map[string]string{"folder": "secrets"}, part{"file", "a.png", "image/png", "png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), invalidFolder)

	w = api.upload(t, "/api/v1/upload/single", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, api.store.count())
}

func TestCheckFileSizeLimits(t *testing.T) {
	image := &multipart.FileHeader{Filename: "a.png", Size: MaxImageSize + 1, Header: textproto.MIMEHeader{"Content-Type": {"image/png"}}}
	_, problem := checkFile(image)
	require.NotNil(t, problem)
	assert.Equal(t, fileTooLarge, problem.Problem.Code)

	video := &multipart.FileHeader{Filename: "a.mp4", Size: MaxImageSize + 1, Header: textproto.MIMEHeader{"Content-Type": {"video/mp4"}}}
	mediaType, problem := checkFile(video)
	require.Nil(t, problem)
	assert.Equal(t, model.MediaVideo, mediaType)

	video.Size = MaxVideoSize + 1
	_, problem = checkFile(video)
	require.NotNil(t, problem)
}

func TestUploadMultiple(t *testing.T) {
	api := newTestApi(t)

	w := api.upload(t, "/api/v1/upload/multiple", "u1", nil,
		part{"files", "a.png", "image/png", "a"},
		part{"files", "b.mp4", "video/mp4", "b"},
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Files []UploadedFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Files, 2)
	assert.Equal(t, "a.png", response.Files[0].OriginalName)
	assert.Equal(t, model.MediaVideo, response.Files[1].MediaType)

	var parts []part
	for i := 0; i <= MaxFiles; i++ {
		parts = append(parts, part{"files", fmt.Sprintf("%d.png", i), "image/png", "x"})
	}
	w = api.upload(t, "/api/v1/upload/multiple", "u1", nil, parts...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), tooManyFiles)
}

func TestUploadMultipleRemovesPartialUploads(t *testing.T) {
	api := newTestApi(t)
	api.store.failOn = "broken"

	w := api.upload(t, "/api/v1/upload/multiple", "u1", nil,
		part{"files", "fine.png", "image/png", "a"},
		part{"files", "broken.png", "image/png", "b"},
	)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, api.store.count())
}

func TestUploadAvatar(t *testing.T) {
	api := newTestApi(t)

	w := api.upload(t, "/api/v1/upload/avatar", "u1", nil, part{"avatar", "clip.mp4", "video/mp4", "v"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.upload(t, "/api/v1/upload/avatar", "u1", nil, part{"avatar", "me.png", "image/png", "p"})
	require.Equal(t, http.StatusCreated, w.Code)

	var uploaded UploadedFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.True(t, strings.HasPrefix(uploaded.Key, "avatars/u1/"))

	var user model.User
	require.NoError(t, api.db.First(&user, "id = ?", "u1").Error)
	assert.Equal(t, uploaded.Url, user.Avatar)
}

func TestDeleteFileChecksOwnership(t *testing.T) {
	api := newTestApi(t)

	w := api.upload(t, "/api/v1/upload/single", "u1", nil, part{"file", "a.png", "image/png", "a"})
	require.Equal(t, http.StatusCreated, w.Code)
	var uploaded UploadedFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))

	deleteRequest := func(url string) *http.Request {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/upload/file", strings.NewReader(fmt.Sprintf(`{"fileUrl":%q}`, url)))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	w = api.send(t, deleteRequest(uploaded.Url), "u2")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.send(t, deleteRequest("https://elsewhere.example/posts/u1/a.png"), "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.send(t, deleteRequest(uploaded.Url), "u1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, api.store.count())
}
