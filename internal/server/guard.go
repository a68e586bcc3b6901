package server

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"strings"

	"tasklist/internal/auth"
	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"

	"github.com/gin-gonic/gin"
)

const (
	identityKey  = "user"
	bearerPrefix = "Bearer "
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type ProfileResolver interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
}

// Guard resolves the bearer token of a request to a user.
type Guard struct {
	tokens      TokenVerifier
	users       ProfileResolver
	development bool
}

func NewGuard(tokens TokenVerifier, users ProfileResolver, development bool) *Guard {
	return &Guard{tokens: tokens, users: users, development: development}
}

// Require rejects the request with 401 unless it carries a valid token of an
// existing user.
func (g *Guard) Require() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, err := g.authenticate(ctx)
		if err != nil {
			if isAuthFailure(err) {
				fail(ctx, http.StatusUnauthorized, err.Error())
				return
			}
			log.Println("[ERROR] failed to resolve token owner:", err)
			body := Envelope{Success: false, Message: errors.ErrInternalServer.Error()}
			if g.development {
				body.Error = err.Error()
			}
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, body)
			return
		}
		attach(ctx, user)
		ctx.Next()
	}
}

// Optional attaches the user when the request authenticates and otherwise
// continues anonymously.
func (g *Guard) Optional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if user, err := g.authenticate(ctx); err == nil {
			attach(ctx, user)
		}
		ctx.Next()
	}
}

func (g *Guard) authenticate(ctx *gin.Context) (*models.User, error) {
	header := ctx.GetHeader("Authorization")
	if header == "" {
		return nil, errors.ErrMissingAuthHeader
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, errors.ErrMalformedAuthHeader
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, errors.ErrEmptyToken
	}

	userID, err := g.tokens.Verify(token)
	if err != nil {
		if stderrors.Is(err, errors.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}

	user, err := g.users.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrTokenUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func isAuthFailure(err error) bool {
	for _, target := range []error{
		errors.ErrMissingAuthHeader,
		errors.ErrMalformedAuthHeader,
		errors.ErrEmptyToken,
		errors.ErrTokenExpired,
		errors.ErrInvalidToken,
		errors.ErrTokenUserNotFound,
	} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

func attach(ctx *gin.Context, user *models.User) {
	ctx.Set(identityKey, user)
	ctx.Request = ctx.Request.WithContext(auth.ContextWithUserID(ctx.Request.Context(), user.ID))
}

// currentUser returns the identity attached by the guard, if any.
func currentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(identityKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
