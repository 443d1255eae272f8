package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	pageSizeInvalid  string = "error.request.page-size-invalid"
	pageTokenInvalid string = "error.request.page-token-invalid"
)

type PageRequest struct {
	Size   int
	Token  int
	Offset int
}

func NewPageRequest(c *gin.Context) (PageRequest, *reject.ProblemWithTrace) {
	pageSize := DefaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return PageRequest{}, reject.NewProblem().
				WithTitle("Page size must be a positive number").
				WithStatus(http.StatusBadRequest).
				WithCode(pageSizeInvalid).
				WithKind(reject.KindValidation).
				Trace(err)
		}
		pageSize = size
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	pageToken := 0
	if raw := c.Query("page_token"); raw != "" {
		token, err := strconv.Atoi(raw)
		if err != nil || token < 0 {
			return PageRequest{}, reject.NewProblem().
				WithTitle("Page token must be a non-negative number").
				WithStatus(http.StatusBadRequest).
				WithCode(pageTokenInvalid).
				WithKind(reject.KindValidation).
				Trace(err)
		}
		pageToken = token
	}

	return PageRequest{
		Size:   pageSize,
		Token:  pageToken,
		Offset: pageSize * pageToken,
	}, nil
}

// NextToken returns the token of the following page or zero when this one is the last.
func (p PageRequest) NextToken(total int64) int64 {
	if int64(p.Offset+p.Size) >= total {
		return 0
	}
	return int64(p.Token + 1)
}
