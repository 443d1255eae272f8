package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("slugger_42"))
	assert.False(t, ValidUsername("ab"))
	assert.False(t, ValidUsername("has space"))
	assert.False(t, ValidUsername("way_too_long_username_here"))
}

func TestValidPassword(t *testing.T) {
	assert.True(t, ValidPassword("homerun9"))
	assert.False(t, ValidPassword("short1"))
	assert.False(t, ValidPassword("onlyletters"))
	assert.False(t, ValidPassword("12345678"))
}

func TestCustomTags(t *testing.T) {
	v := validator.New()
	RegisterValidatorsOn(v)

	type payload struct {
		Username string `validate:"username"`
		Password string `validate:"password"`
	}

	assert.NoError(t, v.Struct(payload{Username: "pitcher", Password: "fastball99"}))

	err := v.Struct(payload{Username: "x", Password: "nope"})
	require.Error(t, err)
	problem := BindingProblem(err)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Len(t, problem.Errors, 2)
}

func TestNewPageRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query     string
		size      int
		token     int
		offset    int
		wantError bool
	}{
		{query: "", size: DefaultPageSize, token: 0, offset: 0},
		{query: "page_size=10&page_token=3", size: 10, token: 3, offset: 30},
		{query: "page_size=500", size: MaxPageSize, token: 0, offset: 0},
		{query: "page_size=abc", wantError: true},
		{query: "page_token=-1", wantError: true},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)

			page, problem := NewPageRequest(c)
			if tc.wantError {
				require.NotNil(t, problem)
				assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
				return
			}
			require.Nil(t, problem)
			assert.Equal(t, tc.size, page.Size)
			assert.Equal(t, tc.token, page.Token)
			assert.Equal(t, tc.offset, page.Offset)
		})
	}
}

func TestNextToken(t *testing.T) {
	page := PageRequest{Size: 10, Token: 0, Offset: 0}
	assert.Equal(t, int64(1), page.NextToken(25))

	last := PageRequest{Size: 10, Token: 2, Offset: 20}
	assert.Equal(t, int64(0), last.NextToken(25))
}

func TestPageOf(t *testing.T) {
	page := PageOf[string](nil, 0, PageRequest{Size: 20})
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.NextPageToken)

	page = PageOf([]string{"a", "b"}, 5, PageRequest{Size: 2, Token: 0, Offset: 0})
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, int64(5), page.ItemCount)
	assert.Equal(t, int64(1), page.NextPageToken)
}
