package profile

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"gorm.io/gorm"
)

const usernameTaken string = "error.user.username-taken"

type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) FindOwn(ctx context.Context, userId string) (*Profile, *reject.ProblemWithTrace) {
	user, err := s.findUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	return toProfile(user), nil
}

func (s *ProfileService) FindPublic(ctx context.Context, userId string) (*PublicProfile, *reject.ProblemWithTrace) {
	user, problem := s.findUser(ctx, userId)
	if problem != nil {
		return nil, problem
	}

	profile := &PublicProfile{
		Id:        user.Id,
		Username:  user.Username,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Game{}).Where("created_by = ?", userId).Count(&profile.GamesCreated).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}
	if err := db.Model(&model.Post{}).Where("user_id = ?", userId).Count(&profile.PostsCreated).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, userId string, req UpdateProfileRequest) (*Profile, *reject.ProblemWithTrace) {
	user, problem := s.findUser(ctx, userId)
	if problem != nil {
		return nil, problem
	}

	updates := map[string]any{}
	if req.Username != nil && *req.Username != user.Username {
		var count int64
		err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("username = ? AND id <> ?", *req.Username, userId).
			Count(&count).Error
		if err != nil {
			return nil, reject.StoreProblem(err)
		}
		if count > 0 {
			conflict := reject.ConflictProblem("Username is already taken")
			conflict.Code = usernameTaken
			return nil, &reject.ProblemWithTrace{Problem: conflict, Cause: errors.New("username taken")}
		}
		updates["username"] = *req.Username
		user.Username = *req.Username
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
		user.Avatar = *req.Avatar
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{Id: userId}).Updates(updates).Error; err != nil {
			return nil, reject.StoreProblem(err)
		}
		log.Info().Str("userId", userId).Msg("Profile updated")
	}
	return toProfile(user), nil
}

func (s *ProfileService) findUser(ctx context.Context, userId string) (*model.User, *reject.ProblemWithTrace) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", userId).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reject.ProblemWithTrace{Problem: reject.NotFoundProblem(), Cause: err}
	}
	if err != nil {
		return nil, reject.StoreProblem(err)
	}
	return &user, nil
}

func toProfile(user *model.User) *Profile {
	return &Profile{
		Id:        user.Id,
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
	}
}
