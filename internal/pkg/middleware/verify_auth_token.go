package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/security"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
)

const (
	accessTokenRequired string = "error.token.required"
	accessTokenInvalid  string = "error.token.invalid"
)

var ErrTokenRejected = errors.New("token rejected by every verifier")

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (utils.Principal, error)
}

// Authenticator tries each verifier in order and accepts the first success.
type Authenticator struct {
	verifiers []TokenVerifier
}

func NewAuthenticator(verifiers ...TokenVerifier) *Authenticator {
	return &Authenticator{verifiers: verifiers}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (utils.Principal, error) {
	var lastErr error = ErrTokenRejected
	for _, verifier := range a.verifiers {
		principal, err := verifier.Verify(ctx, token)
		if err == nil {
			return principal, nil
		}
		lastErr = err
	}
	return utils.Principal{}, lastErr
}

func (a *Authenticator) VerifyAuthToken(c *gin.Context) {
	token := tokenFromRequest(c)
	if token == "" {
		log.Debug().Str("path", c.FullPath()).Msg("Token missing: 401")
		c.AbortWithStatusJSON(
			http.StatusUnauthorized,
			reject.NewProblem().
				WithTitle("Missing access token").
				WithStatus(http.StatusUnauthorized).
				WithCode(accessTokenRequired).
				WithKind(reject.KindUnauthorized).
				Build())
		return
	}

	principal, err := a.Authenticate(c.Request.Context(), token)
	if err != nil {
		log.Info().Err(err).Msg("Error verifying token")
		c.AbortWithStatusJSON(
			http.StatusUnauthorized,
			reject.NewProblem().
				WithTitle("Cannot verify access token").
				WithStatus(http.StatusUnauthorized).
				WithCode(accessTokenInvalid).
				WithKind(reject.KindUnauthorized).
				WithDetail(err.Error()).
				Build())
		return
	}

	utils.SetPrincipalCtx(principal, c)
}

// OptionalAuthToken attaches a principal when a valid token is present and lets
// anonymous requests through otherwise.
func (a *Authenticator) OptionalAuthToken(c *gin.Context) {
	token := tokenFromRequest(c)
	if token == "" {
		return
	}
	principal, err := a.Authenticate(c.Request.Context(), token)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring invalid optional token")
		return
	}
	utils.SetPrincipalCtx(principal, c)
}

// Browsers cannot set headers on websocket upgrades, so the token may also come as a
// query parameter.
func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(c.Query("token"))
}

// JWTVerifier accepts locally issued access tokens.
type JWTVerifier struct {
	Manager *security.JWTManager
}

func (v JWTVerifier) Verify(_ context.Context, token string) (utils.Principal, error) {
	claims, err := v.Manager.ValidateAccessToken(token)
	if err != nil {
		return utils.Principal{}, err
	}
	return utils.Principal{
		UserId:   claims.UserId,
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}
