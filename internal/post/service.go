package post

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/pubsub"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/scoreboard"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"gorm.io/gorm"
)

const postCreatedTopic = "weplay.post.created"

type PostCreated struct {
	PostId    string         `json:"postId"`
	GameId    string         `json:"gameId"`
	UserId    string         `json:"userId"`
	Type      model.PostType `json:"type"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (PostCreated) GetEventTopicName() string {
	return postCreatedTopic
}

type CreatePostRequest struct {
	GameId string `json:"gameId" binding:"required"`
	scoreboard.PostFields
}

type PostService struct {
	db        *gorm.DB
	publisher pubsub.Publisher
}

func NewPostService(db *gorm.DB, publisher pubsub.Publisher) *PostService {
	return &PostService{db: db, publisher: publisher}
}

// CreatePost validates and stores a post for an existing game.
func (s *PostService) CreatePost(
	ctx context.Context,
	gameId string,
	userId string,
	fields scoreboard.PostFields,
) (*model.Post, *reject.ProblemWithTrace) {
	accepted, err := scoreboard.ValidatePost(fields)
	if err != nil {
		var verr *scoreboard.ValidationError
		if errors.As(err, &verr) {
			return nil, verr.Problem()
		}
		return nil, &reject.ProblemWithTrace{Problem: reject.RequestValidationProblem(), Cause: err}
	}

	var games int64
	if err := s.db.WithContext(ctx).Model(&model.Game{}).Where("id = ?", gameId).Count(&games).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}
	if games == 0 {
		problem := reject.NotFoundProblem()
		problem.Detail = "game " + gameId + " does not exist"
		return nil, &reject.ProblemWithTrace{Problem: problem, Cause: gorm.ErrRecordNotFound}
	}

	post := model.Post{
		GameId:    gameId,
		UserId:    userId,
		Type:      accepted.Type,
		Content:   accepted.Content,
		MediaUrl:  accepted.MediaUrl,
		MediaType: accepted.MediaType,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}

	s.publisher.Publish(ctx, PostCreated{
		PostId:    post.Id,
		GameId:    post.GameId,
		UserId:    post.UserId,
		Type:      post.Type,
		CreatedAt: post.CreatedAt,
	})
	log.Debug().Str("postId", post.Id).Str("gameId", gameId).Str("userId", userId).Msg("Post created")
	return &post, nil
}

// ListByGame returns the newest posts first.
func (s *PostService) ListByGame(
	ctx context.Context,
	gameId string,
	page utils.PageRequest,
) ([]model.Post, int64, *reject.ProblemWithTrace) {
	posts := []model.Post{}
	count := int64(0)

	query := s.db.WithContext(ctx).Model(&model.Post{}).Where("game_id = ?", gameId)
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, reject.StoreProblem(err)
	}

	err := query.
		Order("created_at DESC").
		Limit(page.Size).
		Offset(page.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, reject.StoreProblem(err)
	}
	return posts, count, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (*model.Post, *reject.ProblemWithTrace) {
	var post model.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reject.ProblemWithTrace{Problem: reject.NotFoundProblem(), Cause: err}
	}
	if err != nil {
		return nil, reject.StoreProblem(err)
	}
	return &post, nil
}
