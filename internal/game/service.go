package game

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/pubsub"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/scoreboard"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"gorm.io/gorm"
)

const maxWriteAttempts = 3

var errVersionConflict = errors.New("game was modified concurrently")

type GameService struct {
	db        *gorm.DB
	publisher pubsub.Publisher
}

func NewGameService(db *gorm.DB, publisher pubsub.Publisher) *GameService {
	return &GameService{db: db, publisher: publisher}
}

func (s *GameService) GetGame(ctx context.Context, id string) (*model.Game, *reject.ProblemWithTrace) {
	var game model.Game
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		problem := reject.NotFoundProblem()
		problem.Detail = "game " + id + " does not exist"
		return nil, &reject.ProblemWithTrace{Problem: problem, Cause: err}
	}
	if err != nil {
		return nil, reject.StoreProblem(err)
	}
	return &game, nil
}

func (s *GameService) ListGames(
	ctx context.Context,
	page utils.PageRequest,
	filter GameFilter,
) ([]model.Game, int64, *reject.ProblemWithTrace) {
	games := []model.Game{}
	count := int64(0)

	query := s.db.WithContext(ctx).Model(&model.Game{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}

	if err := query.Count(&count).Error; err != nil {
		return nil, 0, reject.StoreProblem(err)
	}

	err := query.
		Order("created_at DESC").
		Limit(page.Size).
		Offset(page.Offset).
		Find(&games).Error
	if err != nil {
		return nil, 0, reject.StoreProblem(err)
	}
	return games, count, nil
}

func (s *GameService) CreateGame(ctx context.Context, userId string, req CreateGameRequest) (*model.Game, *reject.ProblemWithTrace) {
	game := model.Game{
		Title:     req.Title,
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		Status:    model.GameWaiting,
		Inning:    scoreboard.MinInning,
		IsTopHalf: true,
		CreatedBy: userId,
	}
	if err := s.db.WithContext(ctx).Create(&game).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}

	log.Info().Str("gameId", game.Id).Str("userId", userId).Msg("Game created")
	return &game, nil
}

// ApplyScoreUpdate validates patch against the stored game and persists it with an
// optimistic version check. A concurrent write reloads and revalidates before retrying.
// It returns the updated game and the accepted patch.
func (s *GameService) ApplyScoreUpdate(
	ctx context.Context,
	gameId string,
	userId string,
	patch scoreboard.ScorePatch,
) (*model.Game, scoreboard.ScorePatch, *reject.ProblemWithTrace) {
	return s.mutate(ctx, gameId, userId, UpdateGameRequest{ScorePatch: patch})
}

// UpdateGame applies metadata edits and an optional scoreboard patch in one write.
func (s *GameService) UpdateGame(
	ctx context.Context,
	gameId string,
	userId string,
	req UpdateGameRequest,
) (*model.Game, scoreboard.ScorePatch, *reject.ProblemWithTrace) {
	return s.mutate(ctx, gameId, userId, req)
}

func (s *GameService) mutate(
	ctx context.Context,
	gameId string,
	userId string,
	req UpdateGameRequest,
) (*model.Game, scoreboard.ScorePatch, *reject.ProblemWithTrace) {
	metadata := req.metadata()
	b := &backoff.Backoff{
		Min:    20 * time.Millisecond,
		Max:    250 * time.Millisecond,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; ; attempt++ {
		game, problem := s.GetGame(ctx, gameId)
		if problem != nil {
			return nil, scoreboard.ScorePatch{}, problem
		}
		if game.CreatedBy != userId {
			return nil, scoreboard.ScorePatch{}, &reject.ProblemWithTrace{
				Problem: reject.ForbiddenProblem(),
				Cause:   errors.New("only the game creator can update it"),
			}
		}

		accepted, problem := validate(game, req.ScorePatch, metadata)
		if problem != nil {
			return nil, scoreboard.ScorePatch{}, problem
		}

		columns := scoreboard.Columns(accepted)
		for k, v := range metadata {
			columns[k] = v
		}
		now := time.Now()
		columns["version"] = game.Version + 1
		columns["updated_at"] = now

		result := s.db.WithContext(ctx).
			Model(&model.Game{}).
			Where("id = ? AND version = ?", gameId, game.Version).
			Updates(columns)
		if result.Error != nil {
			return nil, scoreboard.ScorePatch{}, reject.StoreProblem(result.Error)
		}

		if result.RowsAffected == 1 {
			scoreboard.Apply(game, accepted)
			req.applyMetadata(game)
			game.Version++
			game.UpdatedAt = now

			if !accepted.Empty() {
				s.publisher.Publish(ctx, ScoreUpdated{
					GameId:    gameId,
					UserId:    userId,
					Patch:     accepted,
					Version:   game.Version,
					UpdatedAt: game.UpdatedAt,
				})
			}
			return game, accepted, nil
		}

		if attempt == maxWriteAttempts {
			break
		}
		log.Debug().Str("gameId", gameId).Int("attempt", attempt).Msg("Version conflict, retrying game update")

		select {
		case <-ctx.Done():
			return nil, scoreboard.ScorePatch{}, reject.StoreProblem(ctx.Err())
		case <-time.After(b.Duration()):
		}
	}

	log.Warn().Str("gameId", gameId).Msg("Giving up on game update after repeated version conflicts")
	return nil, scoreboard.ScorePatch{}, &reject.ProblemWithTrace{
		Problem: reject.ConflictProblem("Game was updated concurrently, fetch it and retry"),
		Cause:   errVersionConflict,
	}
}

func validate(
	game *model.Game,
	patch scoreboard.ScorePatch,
	metadata map[string]any,
) (scoreboard.ScorePatch, *reject.ProblemWithTrace) {
	if patch.Empty() && len(metadata) > 0 {
		if game.Status == model.GameFinished {
			err := &scoreboard.ValidationError{Violations: []scoreboard.Violation{{
				Field:   "status",
				Code:    "game.finished",
				Message: "finished games cannot be modified",
			}}}
			return scoreboard.ScorePatch{}, err.Problem()
		}
		return scoreboard.ScorePatch{}, nil
	}

	accepted, err := scoreboard.Validate(game, patch)
	if err != nil {
		var verr *scoreboard.ValidationError
		if errors.As(err, &verr) {
			return scoreboard.ScorePatch{}, verr.Problem()
		}
		return scoreboard.ScorePatch{}, &reject.ProblemWithTrace{Problem: reject.RequestValidationProblem(), Cause: err}
	}
	return accepted, nil
}

// DeleteGame removes a game and its posts. Only the creator may delete it.
func (s *GameService) DeleteGame(ctx context.Context, gameId string, userId string) *reject.ProblemWithTrace {
	game, problem := s.GetGame(ctx, gameId)
	if problem != nil {
		return problem
	}
	if game.CreatedBy != userId {
		return &reject.ProblemWithTrace{
			Problem: reject.ForbiddenProblem(),
			Cause:   errors.New("only the game creator can delete it"),
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", gameId).Delete(&model.Post{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", gameId).Delete(&model.Game{}).Error
	})
	if err != nil {
		return reject.StoreProblem(err)
	}

	log.Info().Str("gameId", gameId).Str("userId", userId).Msg("Game deleted")
	return nil
}
