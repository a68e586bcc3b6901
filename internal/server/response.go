package server

import (
	stderrors "errors"
	"log"
	"net/http"

	"tasklist/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  []errors.FieldError `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func respond(ctx *gin.Context, status int, message string, data any) {
	ctx.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func fail(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// writeError translates a service error into its HTTP status. Unknown errors
// surface as 500 with the detail shown only in development.
func (api *TaskAPI) writeError(ctx *gin.Context, err error) {
	var verr *errors.ValidationError
	switch {
	case stderrors.As(err, &verr):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
			Success: false,
			Message: errors.ErrValidationFailed.Error(),
			Errors:  verr.Fields,
		})
	case stderrors.Is(err, errors.ErrInvalidInput), stderrors.Is(err, errors.ErrBadRequest):
		fail(ctx, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrDuplicateEmail):
		fail(ctx, http.StatusBadRequest, errors.ErrDuplicateEmail.Error())
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		fail(ctx, http.StatusUnauthorized, errors.ErrInvalidCredentials.Error())
	case stderrors.Is(err, errors.ErrTokenExpired):
		fail(ctx, http.StatusUnauthorized, errors.ErrTokenExpired.Error())
	case stderrors.Is(err, errors.ErrInvalidToken):
		fail(ctx, http.StatusUnauthorized, errors.ErrInvalidToken.Error())
	case stderrors.Is(err, errors.ErrTaskNotFound):
		fail(ctx, http.StatusNotFound, errors.ErrTaskNotFound.Error())
	case stderrors.Is(err, errors.ErrUserNotFound):
		fail(ctx, http.StatusNotFound, errors.ErrUserNotFound.Error())
	default:
		log.Println("[ERROR]", ctx.Request.Method, ctx.Request.URL.Path, err)
		body := Envelope{Success: false, Message: errors.ErrInternalServer.Error()}
		if api.cfg.IsDevelopment() {
			body.Error = err.Error()
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}
