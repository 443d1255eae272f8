package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/security"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"gorm.io/gorm"
)

const (
	invalidCredentials   string = "error.auth.invalid-credentials"
	invalidRefreshToken  string = "error.auth.invalid-refresh-token"
	usernameTaken        string = "error.user.username-taken"
	emailTaken           string = "error.user.email-taken"
	federatedTokenFailed string = "error.auth.federated-token-invalid"
)

// IdTokenVerifier is satisfied by the firebase admin SDK wrapper.
type IdTokenVerifier interface {
	VerifyIdToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

type AuthResponse struct {
	User   model.User         `json:"user"`
	Tokens security.TokenPair `json:"tokens"`
}

type AuthService struct {
	db     *gorm.DB
	tokens *security.JWTManager
	hasher *security.PasswordHasher
}

func NewAuthService(db *gorm.DB, tokens *security.JWTManager, hasher *security.PasswordHasher) *AuthService {
	return &AuthService{db: db, tokens: tokens, hasher: hasher}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, *reject.ProblemWithTrace) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if problem := s.checkAvailable(ctx, req.Username, email); problem != nil {
		return nil, problem
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	user := model.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}

	log.Info().Str("userId", user.Id).Msg("User registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, *reject.ProblemWithTrace) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.StoreProblem(err)
	}

	if err != nil || user.PasswordHash == "" || !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, unauthorized("Invalid email or password", invalidCredentials, err)
	}
	return s.issue(user)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, *reject.ProblemWithTrace) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, unauthorized("Invalid refresh token", invalidRefreshToken, err)
	}

	user, problem := s.findUser(ctx, claims.UserId)
	if problem != nil {
		if problem.IsKind(reject.KindNotFound) {
			return nil, unauthorized("Invalid refresh token", invalidRefreshToken, problem)
		}
		return nil, problem
	}
	return s.issue(*user)
}

func (s *AuthService) ChangePassword(ctx context.Context, userId string, req ChangePasswordRequest) *reject.ProblemWithTrace {
	user, problem := s.findUser(ctx, userId)
	if problem != nil {
		return problem
	}
	if user.PasswordHash == "" || !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return unauthorized("Current password is incorrect", invalidCredentials, nil)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return reject.StoreProblem(err)
	}

	log.Info().Str("userId", userId).Msg("Password changed")
	return nil
}

// ExchangeIdToken signs in with a firebase ID token and returns a local token pair.
func (s *AuthService) ExchangeIdToken(ctx context.Context, verifier IdTokenVerifier, idToken string) (*AuthResponse, *reject.ProblemWithTrace) {
	token, err := verifier.VerifyIdToken(ctx, idToken)
	if err != nil {
		return nil, unauthorized("Cannot verify ID token", federatedTokenFailed, err)
	}

	user, problem := s.provision(ctx, token)
	if problem != nil {
		return nil, problem
	}
	return s.issue(*user)
}

// provision finds the local user behind a firebase identity, linking by email or
// creating an account on first sign-in.
func (s *AuthService) provision(ctx context.Context, token *fbauth.Token) (*model.User, *reject.ProblemWithTrace) {
	db := s.db.WithContext(ctx)

	var user model.User
	err := db.Where("external_id = ?", token.UID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.StoreProblem(err)
	}

	email, _ := token.Claims["email"].(string)
	email = strings.ToLower(email)
	if email == "" {
		return nil, unauthorized("ID token carries no email", federatedTokenFailed, nil)
	}

	externalId := token.UID
	err = db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if err := db.Model(&user).Update("external_id", externalId).Error; err != nil {
			return nil, reject.StoreProblem(err)
		}
		user.ExternalId = &externalId
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.StoreProblem(err)
	}

	name, _ := token.Claims["name"].(string)
	username, problem := s.freeUsername(ctx, name, email)
	if problem != nil {
		return nil, problem
	}
	picture, _ := token.Claims["picture"].(string)

	user = model.User{
		Username:   username,
		Email:      email,
		Avatar:     picture,
		ExternalId: &externalId,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, reject.StoreProblem(err)
	}

	log.Info().Str("userId", user.Id).Msg("User provisioned from federated identity")
	return &user, nil
}

func (s *AuthService) freeUsername(ctx context.Context, name string, email string) (string, *reject.ProblemWithTrace) {
	base := name
	if base == "" {
		base, _, _ = strings.Cut(email, "@")
	}
	base = strings.ReplaceAll(slug.Make(base), "-", "_")
	if len(base) > 14 {
		base = base[:14]
	}
	for len(base) < 3 {
		base += "_"
	}

	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", reject.StoreProblem(err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	}
	return "", &reject.ProblemWithTrace{
		Problem: reject.ConflictProblem("Cannot pick a free username"),
		Cause:   errors.New("username candidates exhausted"),
	}
}

func (s *AuthService) checkAvailable(ctx context.Context, username string, email string) *reject.ProblemWithTrace {
	var existing []model.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		Find(&existing).Error
	if err != nil {
		return reject.StoreProblem(err)
	}

	if len(existing) == 0 {
		return nil
	}

	code, title := emailTaken, "Email is already registered"
	for _, u := range existing {
		if u.Username == username {
			code, title = usernameTaken, "Username is already taken"
		}
	}
	problem := reject.ConflictProblem(title)
	problem.Code = code
	return &reject.ProblemWithTrace{Problem: problem, Cause: errors.New(title)}
}

func (s *AuthService) findUser(ctx context.Context, userId string) (*model.User, *reject.ProblemWithTrace) {
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

func (s *AuthService) issue(user model.User) (*AuthResponse, *reject.ProblemWithTrace) {
	pair, err := s.tokens.IssuePair(user.Id, user.Email, user.Username)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	return &AuthResponse{User: user, Tokens: pair}, nil
}

func unauthorized(title string, code string, cause error) *reject.ProblemWithTrace {
	return reject.NewProblem().
		WithTitle(title).
		WithStatus(http.StatusUnauthorized).
		WithCode(code).
		WithKind(reject.KindUnauthorized).
		Trace(cause)
}

// FederatedVerifier accepts firebase ID tokens as bearer tokens, provisioning the local
// user on first use.
type FederatedVerifier struct {
	Service  *AuthService
	Verifier IdTokenVerifier
}

func (v FederatedVerifier) Verify(ctx context.Context, token string) (utils.Principal, error) {
	idToken, err := v.Verifier.VerifyIdToken(ctx, token)
	if err != nil {
		return utils.Principal{}, err
	}
	user, problem := v.Service.provision(ctx, idToken)
	if problem != nil {
		return utils.Principal{}, problem
	}
	return utils.Principal{UserId: user.Id, Email: user.Email, Username: user.Username}, nil
}
